package service

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adsightlabs/adsight-core/internal/domain"
	"github.com/adsightlabs/adsight-core/internal/report"
	"github.com/adsightlabs/adsight-core/internal/repository"
	"github.com/adsightlabs/adsight-core/internal/vault"
)

// ReportClient is the slice of the platform client one collection pass uses.
type ReportClient interface {
	GetAdvertiserInfo(ctx context.Context, advertiserID string) *report.AdvertiserInfo
	GetCampaigns(ctx context.Context, advertiserID string) []report.Campaign
	GetAdReport(ctx context.Context, advertiserID, startDate, endDate string) report.AdReport
	GetAudienceReport(ctx context.Context, advertiserID, startDate, endDate string) report.AudienceReport
	Close()
}

// ClientFactory builds an authenticated report client for one access token.
type ClientFactory func(accessToken string) ReportClient

// Collector runs one collection cycle across all connected accounts of a
// platform. Scheduling of cycles belongs to the caller.
type Collector struct {
	platformName string
	accounts     repository.AccountRepository
	vault        *vault.Vault
	newClient    ClientFactory
	node         *snowflake.Node
	fanout       int
	logger       *zap.Logger
}

// NewCollector wires a Collector. fanout caps how many accounts are
// collected at once; values below 1 fall back to 4.
func NewCollector(
	platformName string,
	accounts repository.AccountRepository,
	tokenVault *vault.Vault,
	newClient ClientFactory,
	node *snowflake.Node,
	fanout int,
	logger *zap.Logger,
) *Collector {
	if fanout < 1 {
		fanout = 4
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Collector{
		platformName: platformName,
		accounts:     accounts,
		vault:        tokenVault,
		newClient:    newClient,
		node:         node,
		fanout:       fanout,
		logger:       logger,
	}
}

// RunCycle collects reports for every connected account over the date range
// (YYYY-MM-DD). A per-account failure is recorded in the result, never
// propagated: one broken account must not sink the batch.
func (c *Collector) RunCycle(ctx context.Context, startDate, endDate string) (domain.CollectionResult, []report.AccountSnapshot, error) {
	result := domain.CollectionResult{
		BatchID:   c.node.Generate().String(),
		StartedAt: time.Now().UTC(),
	}

	accounts, err := c.accounts.ListConnected(ctx, c.platformName)
	if err != nil {
		return result, nil, err
	}

	var (
		mu        sync.Mutex
		snapshots []report.AccountSnapshot
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)

	for _, account := range accounts {
		g.Go(func() error {
			snapshot, err := c.collectAccount(ctx, account, startDate, endDate)

			mu.Lock()
			defer mu.Unlock()
			result.Outcomes = append(result.Outcomes, domain.AccountOutcome{AccountID: account.ID, Err: err})
			if err != nil {
				result.Failed++
				c.logger.Warn("account collection failed",
					zap.String("batch_id", result.BatchID),
					zap.Int64("account_id", account.ID),
					zap.Error(err))
				return nil
			}
			result.Processed++
			snapshots = append(snapshots, snapshot)
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = time.Now().UTC()
	c.logger.Info("collection cycle finished",
		zap.String("batch_id", result.BatchID),
		zap.Int("processed", result.Processed),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)))
	return result, snapshots, nil
}

func (c *Collector) collectAccount(ctx context.Context, account domain.Account, startDate, endDate string) (report.AccountSnapshot, error) {
	accessToken, err := c.vault.GetValidToken(ctx, account.ID)
	if err != nil {
		return report.AccountSnapshot{}, err
	}

	client := c.newClient(accessToken)
	defer client.Close()

	return report.AccountSnapshot{
		AccountID:  account.ID,
		Advertiser: client.GetAdvertiserInfo(ctx, account.AdvertiserID),
		Campaigns:  client.GetCampaigns(ctx, account.AdvertiserID),
		AdReport:   client.GetAdReport(ctx, account.AdvertiserID, startDate, endDate),
		Audience:   client.GetAudienceReport(ctx, account.AdvertiserID, startDate, endDate),
	}, nil
}
