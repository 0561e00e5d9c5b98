package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/rknoche6/manifold/internal/blob/s3"
	"github.com/rknoche6/manifold/internal/cache/redis"
	"github.com/rknoche6/manifold/internal/config"
	"github.com/rknoche6/manifold/internal/domain"
	"github.com/rknoche6/manifold/internal/league"
	"github.com/rknoche6/manifold/internal/metrics"
	"github.com/rknoche6/manifold/internal/service"
	"github.com/rknoche6/manifold/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	MarketStore   domain.MarketStore
	OrderStore    domain.OrderStore
	BetStore      domain.BetStore
	CommitStore   domain.CommitStore
	BalanceSource domain.BalanceSource
	LeagueStore   domain.LeagueStore

	// Cache layer
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter

	// Blob storage (nil when S3 is disabled)
	BlobWriter domain.BlobWriter

	// Services
	Trades  *service.TradeService
	Markets *service.MarketService
	Leagues *service.LeagueService

	Metrics *metrics.EngineMetrics
}

// Wire constructs the concrete dependency graph from the configuration and
// returns it with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// ── PostgreSQL ──
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.CommitStore = postgres.NewCommitStore(pool)
	deps.BalanceSource = postgres.NewBalanceStore(pool)
	deps.LeagueStore = postgres.NewLeagueStore(pool)

	// ── Redis ──
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// ── S3 blob storage ──
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         true,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// ── Services ──
	deps.Metrics = metrics.New()

	deps.Trades = service.NewTradeService(
		deps.MarketStore,
		deps.OrderStore,
		deps.CommitStore,
		deps.BalanceSource,
		deps.LockManager,
		deps.SignalBus,
		deps.Metrics,
		service.TradeConfig{
			Fees: domain.FeeSchedule{
				CreatorRate:  cfg.Engine.CreatorFeeRate,
				PlatformRate: cfg.Engine.PlatformFeeRate,
			},
			MaxSlippage:      cfg.Engine.MaxSlippage,
			ProtectionExpiry: cfg.Engine.ProtectionExpiry(),
			CommitLockTTL:    cfg.Engine.CommitLockTTL(),
		},
		logger,
	)

	deps.Markets = service.NewMarketService(deps.MarketStore, deps.BetStore)

	deps.Leagues = service.NewLeagueService(
		deps.LeagueStore,
		deps.BetStore,
		deps.MarketStore,
		league.New(cfg.League.DenylistSlugs, logger),
		cfg.League.SeasonDates,
		deps.Metrics,
		logger,
	)
	if deps.BlobWriter != nil {
		deps.Leagues.WithSnapshots(deps.BlobWriter)
	}

	return deps, cleanup, nil
}
