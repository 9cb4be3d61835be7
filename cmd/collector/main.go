package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/adsightlabs/adsight-core/internal/adapter/cache"
	"github.com/adsightlabs/adsight-core/internal/config"
	httptransport "github.com/adsightlabs/adsight-core/internal/http"
	"github.com/adsightlabs/adsight-core/internal/http/handler"
	apimiddleware "github.com/adsightlabs/adsight-core/internal/middleware"
	"github.com/adsightlabs/adsight-core/internal/platform"
	"github.com/adsightlabs/adsight-core/internal/repository"
	"github.com/adsightlabs/adsight-core/internal/server"
	"github.com/adsightlabs/adsight-core/internal/service"
	"github.com/adsightlabs/adsight-core/internal/telemetry"
	"github.com/adsightlabs/adsight-core/internal/vault"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newOAuthStateRepository,
			newAccountRepository,
			newRedisClient,
			newRefreshLock,
			newSealer,
			newOAuthClient,
			newVault,
			newClientFactory,
			newConnectService,
			newCollector,
			newConnectHandler,
			newRateLimiter,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newOAuthStateRepository(pool *pgxpool.Pool) repository.OAuthStateRepository {
	return repository.NewPostgresOAuthStateRepo(pool)
}

func newAccountRepository(pool *pgxpool.Pool) repository.AccountRepository {
	return repository.NewPostgresAccountRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newRefreshLock(client redis.UniversalClient) vault.RefreshLock {
	return cacheadapter.NewRedisRefreshLock(client)
}

func newSealer(cfg config.Config) (*vault.Sealer, error) {
	return vault.NewSealer(cfg.EncryptionKey)
}

func newOAuthClient(cfg config.Config) platform.OAuthClient {
	return platform.NewHTTPOAuthClient(platform.OAuthConfig{
		AuthURL:      cfg.PlatformAuthURL,
		TokenURL:     cfg.PlatformTokenURL,
		ClientID:     cfg.PlatformClientID,
		ClientSecret: cfg.PlatformClientSecret,
		RedirectURI:  cfg.PlatformRedirectURI,
		Scopes:       cfg.PlatformScopes,
	}, nil)
}

func newVault(
	cfg config.Config,
	accounts repository.AccountRepository,
	sealer *vault.Sealer,
	oauthClient platform.OAuthClient,
	lock vault.RefreshLock,
	logger *zap.Logger,
) *vault.Vault {
	return vault.New(accounts, sealer, oauthClient, logger,
		vault.WithRefreshThreshold(cfg.TokenRefreshThreshold),
		vault.WithRefreshLock(lock),
	)
}

func newClientFactory(cfg config.Config, logger *zap.Logger) service.ClientFactory {
	return func(accessToken string) service.ReportClient {
		return platform.NewClient(platform.ClientConfig{
			BaseURL:     cfg.PlatformBaseURL,
			AccessToken: accessToken,
			Concurrency: cfg.APIConcurrency,
			Logger:      logger,
		})
	}
}

func newConnectService(
	states repository.OAuthStateRepository,
	accounts repository.AccountRepository,
	oauthClient platform.OAuthClient,
	tokenVault *vault.Vault,
	logger *zap.Logger,
) service.ConnectService {
	return service.NewConnectService(states, accounts, oauthClient, tokenVault, logger)
}

func newCollector(
	cfg config.Config,
	accounts repository.AccountRepository,
	tokenVault *vault.Vault,
	factory service.ClientFactory,
	node *snowflake.Node,
	logger *zap.Logger,
) *service.Collector {
	return service.NewCollector(cfg.PlatformName, accounts, tokenVault, factory, node, cfg.CollectorFanout, logger)
}

func newConnectHandler(connect service.ConnectService, collector *service.Collector, logger *zap.Logger) *handler.ConnectHandler {
	return handler.NewConnectHandler(connect, collector, logger)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func useTelemetry(*telemetry.Provider) {}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger, shutdowner fx.Shutdowner) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				addr := ":" + cfg.HTTPPort
				logger.Info("http server listening", zap.String("addr", addr))
				if err := srv.Run(ctx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
