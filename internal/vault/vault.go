package vault

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adsightlabs/adsight-core/internal/domain"
	"github.com/adsightlabs/adsight-core/internal/domain/oauth"
	"github.com/adsightlabs/adsight-core/internal/repository"
)

// DefaultRefreshThreshold is how close to expiry a token may get before a
// refresh exchange is triggered.
const DefaultRefreshThreshold = 5 * time.Minute

// Refresher performs the outbound refresh-token exchange.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth.TokenResponse, error)
}

// RefreshLock serializes refresh exchanges across processes. Implementations
// are best-effort: the in-process single-flight already guarantees one
// refresh per account within a process.
type RefreshLock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Vault encrypts, persists, and refreshes per-account OAuth credentials.
// Plaintext tokens exist only in memory, for the duration of an outbound
// call or a refresh exchange.
type Vault struct {
	accounts  repository.AccountRepository
	sealer    *Sealer
	refresher Refresher
	lock      RefreshLock
	threshold time.Duration
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

// Option customizes a Vault.
type Option func(*Vault)

// WithRefreshThreshold overrides the default refresh threshold.
func WithRefreshThreshold(d time.Duration) Option {
	return func(v *Vault) { v.threshold = d }
}

// WithRefreshLock enables a cross-process refresh lock.
func WithRefreshLock(lock RefreshLock) Option {
	return func(v *Vault) { v.lock = lock }
}

// WithClock overrides the vault's time source.
func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

// New wires a Vault.
func New(accounts repository.AccountRepository, sealer *Sealer, refresher Refresher, logger *zap.Logger, opts ...Option) *Vault {
	if logger == nil {
		logger = zap.L()
	}
	v := &Vault{
		accounts:  accounts,
		sealer:    sealer,
		refresher: refresher,
		threshold: DefaultRefreshThreshold,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Store seals both tokens and persists them with the computed expiry.
func (v *Vault) Store(ctx context.Context, accountID int64, token *oauth.TokenResponse) error {
	sealedAccess, err := v.sealer.Seal(token.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	sealedRefresh, err := v.sealer.Seal(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	cred := repository.Credential{
		EncryptedAccessToken:  sealedAccess,
		EncryptedRefreshToken: sealedRefresh,
		TokenExpiresAt:        v.now().UTC().Add(time.Duration(token.ExpiresIn) * time.Second),
		TokenScope:            token.Scope,
		AdvertiserID:          token.AdvertiserID,
	}
	if err := v.accounts.SaveCredential(ctx, accountID, cred); err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	return nil
}

// GetValidToken returns a plaintext access token for the account, refreshing
// it first when it is within the refresh threshold of expiry. Concurrent
// calls for the same account share a single refresh exchange.
func (v *Vault) GetValidToken(ctx context.Context, accountID int64) (string, error) {
	account, err := v.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.EncryptedAccessToken == "" {
		return "", fmt.Errorf("account %d: %w", accountID, oauth.ErrTokenNotFound)
	}

	if !v.nearExpiry(account) {
		return v.open(account.EncryptedAccessToken, "access token")
	}

	token, err, _ := v.group.Do(strconv.FormatInt(accountID, 10), func() (any, error) {
		return v.refresh(ctx, accountID)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// Disconnect clears the stored credential for the account.
func (v *Vault) Disconnect(ctx context.Context, accountID int64) error {
	if err := v.accounts.ClearCredential(ctx, accountID); err != nil {
		return fmt.Errorf("disconnect account %d: %w", accountID, err)
	}
	return nil
}

func (v *Vault) nearExpiry(account domain.Account) bool {
	return !v.now().UTC().Add(v.threshold).Before(account.TokenExpiresAt)
}

// refresh runs inside the per-account single flight. It re-reads the account
// first: a flight that queued behind a finished refresh reuses its result
// instead of burning the new single-use refresh token.
func (v *Vault) refresh(ctx context.Context, accountID int64) (string, error) {
	account, err := v.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	if !v.nearExpiry(account) {
		return v.open(account.EncryptedAccessToken, "access token")
	}

	if v.lock != nil {
		release, err := v.waitRefreshLock(ctx, accountID)
		if err != nil {
			return "", err
		}
		if release == nil {
			// Another process refreshed while we waited.
			return v.refresh(ctx, accountID)
		}
		defer release()
	}

	refreshToken, err := v.open(account.EncryptedRefreshToken, "refresh token")
	if err != nil {
		return "", err
	}

	resp, err := v.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		v.logger.Warn("token refresh rejected, account needs re-authorization",
			zap.Int64("account_id", accountID), zap.Error(err))
		if markErr := v.accounts.MarkNeedsReauth(ctx, accountID); markErr != nil {
			v.logger.Error("failed to flag account for re-authorization",
				zap.Int64("account_id", accountID), zap.Error(markErr))
		}
		return "", fmt.Errorf("account %d: %w", accountID, oauth.ErrRefreshFailed)
	}
	if resp.RefreshToken == "" {
		// Platforms that do not rotate the refresh token omit it.
		resp.RefreshToken = refreshToken
	}
	if resp.Scope == "" {
		resp.Scope = account.TokenScope
	}
	if err := v.Store(ctx, accountID, resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// waitRefreshLock acquires the cross-process lock, polling while another
// holder refreshes. It returns a nil release func when the wait observed a
// finished refresh, meaning the caller should re-read instead of refreshing.
func (v *Vault) waitRefreshLock(ctx context.Context, accountID int64) (func(), error) {
	name := "token-refresh:" + strconv.FormatInt(accountID, 10)
	for {
		acquired, err := v.lock.Acquire(ctx, name, 30*time.Second)
		if err != nil {
			return nil, fmt.Errorf("acquire refresh lock: %w", err)
		}
		if acquired {
			return func() {
				if err := v.lock.Release(context.WithoutCancel(ctx), name); err != nil {
					v.logger.Warn("failed to release refresh lock", zap.Error(err))
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait refresh lock: %w", ctx.Err())
		case <-time.After(200 * time.Millisecond):
		}

		account, err := v.accounts.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if !v.nearExpiry(account) {
			return nil, nil
		}
	}
}

func (v *Vault) open(sealed, what string) (string, error) {
	plaintext, err := v.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", oauth.ErrDecryptionFailed, what, err)
	}
	return plaintext, nil
}
