package indexer

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/runeboard/runeboardx/pkg/db"
	"github.com/runeboard/runeboardx/pkg/filler"
	"github.com/runeboard/runeboardx/pkg/logging"
	"github.com/runeboard/runeboardx/pkg/midgard"
	"github.com/runeboard/runeboardx/pkg/pricing"
	"github.com/runeboard/runeboardx/pkg/redis"
	"github.com/runeboard/runeboardx/pkg/scanner"
	"github.com/runeboard/runeboardx/pkg/thornode"
	"github.com/runeboard/runeboardx/pkg/utils"
	"go.uber.org/zap"
)

// App owns the ingest side: the cron-scheduled feed scanner and the
// always-on valuation backfill pool.
type App struct {
	DB      *db.DB
	Network string

	Scanner *scanner.Scanner
	Policy  *scanner.SyncPolicy
	Filler  *filler.Filler

	// Cron triggers incremental scans; the scanner itself rejects
	// overlapping runs.
	Cron     *cron.Cron
	CronSpec string

	RedisClient   *redis.Client
	SnapshotCache *pricing.RedisCache // nil when Redis is disabled

	Logger *zap.Logger
}

// Initialize wires every component from environment configuration.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	network := utils.Env("NETWORK", midgard.NetworkChaosnetMultichain)
	batchSize := utils.EnvInt("BATCH_SIZE", 50)
	maxFails := utils.EnvInt("MAX_FAILS", 5)

	ledgerDb, err := db.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	// Remote feed: transport + wire-format strategy for this network
	endpoints := strings.Split(utils.Env("MIDGARD_ENDPOINTS", "https://chaosnet-midgard.bepswap.com"), ",")
	pathTemplate, err := midgard.PathTemplateForNetwork(network)
	if err != nil {
		logger.Fatal("Unsupported network", zap.String("network", network), zap.Error(err))
	}
	parser, err := midgard.ParserForNetwork(network, logger)
	if err != nil {
		logger.Fatal("Unsupported network", zap.String("network", network), zap.Error(err))
	}
	feedClient := midgard.NewClient(midgard.Opts{
		Endpoints:       endpoints,
		PathTemplate:    pathTemplate,
		RPS:             utils.EnvInt("MIDGARD_RPS", 5),
		Burst:           utils.EnvInt("MIDGARD_BURST", 10),
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	})
	feed := midgard.NewFeed(feedClient, parser)

	// Resume the crawl where the local copy ends
	localCount, err := ledgerDb.TxCount(ctx, network)
	if err != nil {
		logger.Fatal("Unable to read local transaction count", zap.Error(err))
	}

	strategy := scanner.RecoverNearFrontier
	if utils.Env("RECOVERY_STRATEGY", "frontier") == "random" {
		strategy = scanner.RecoverRandom
	}
	policy := scanner.NewSyncPolicy(scanner.PolicyOpts{
		Store:         ledgerDb,
		Network:       network,
		BatchSize:     batchSize,
		Logger:        logger,
		FullScan:      utils.EnvBool("FULL_SCAN", false),
		OverscanPages: utils.EnvInt("OVERSCAN_PAGES", 10),
		Strategy:      strategy,
	})
	feedScanner := scanner.New(scanner.Opts{
		Source:     feed,
		Delegate:   policy,
		Logger:     logger,
		Offset:     int(localCount),
		BatchSize:  batchSize,
		MaxRetries: utils.EnvInt("SCAN_RETRIES", 5),
		RetryDelay: utils.EnvDuration("SCAN_RETRY_DELAY", 15*time.Second),
	})

	// Optional Redis layer: snapshot persistence + live progress events
	var redisClient *redis.Client
	var snapshotCache pricing.SnapshotCache = pricing.NewMemoryCache()
	var redisCache *pricing.RedisCache
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - snapshot persistence disabled", zap.Error(err))
			redisClient = nil
		} else {
			redisCache = pricing.NewRedisCache(pricing.RedisCacheOpts{
				Client: redisClient,
				Logger: logger,
			})
			snapshotCache = redisCache
		}
	}

	// Chain-side pool reserves with store-backed history
	chainClient := thornode.NewClient(thornode.Opts{
		Network: network,
		SeedURL: utils.Env("THORNODE_SEED", "https://chaosnet-seed.thorchain.info"),
		Logger:  logger,
	})
	snapshots := pricing.NewSnapshotSource(pricing.SnapshotSourceOpts{
		Network: network,
		Cache:   snapshotCache,
		Store:   ledgerDb,
		Chain:   chainClient,
		Logger:  logger,
	})

	oracle := pricing.NewOracle(pricing.OracleOpts{
		BaseURL: utils.Env("ORACLE_URL", ""),
		Logger:  logger,
	})
	var stablePools []string
	if raw := utils.Env("STABLE_POOLS", ""); raw != "" {
		stablePools = strings.Split(raw, ",")
	}
	resolver := pricing.NewResolver(pricing.ResolverOpts{
		StablePools: stablePools,
		Oracle:      oracle,
		Logger:      logger,
	})

	var notifier filler.Notifier
	if redisClient != nil {
		notifier = redisClient
	}
	valueFiller := filler.New(filler.Opts{
		Store:     ledgerDb,
		Source:    snapshots,
		Resolver:  resolver,
		Notifier:  notifier,
		Logger:    logger,
		Network:   network,
		Workers:   utils.EnvInt("FILL_WORKERS", 4),
		MaxFails:  maxFails,
		IdleDelay: utils.EnvDuration("FILL_IDLE_DELAY", 30*time.Second),
	})

	app := &App{
		DB:            ledgerDb,
		Network:       network,
		Scanner:       feedScanner,
		Policy:        policy,
		Filler:        valueFiller,
		CronSpec:      utils.Env("SCAN_CRON", "@every 5m"),
		RedisClient:   redisClient,
		SnapshotCache: redisCache,
		Logger:        logger,
	}

	if err := app.SetupScheduler(ctx, cron.DefaultLogger); err != nil {
		logger.Fatal("Unable to set up scheduler", zap.Error(err))
	}
	return app
}

// SetupScheduler registers the periodic scan on the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger) error {
	a.Cron = cron.New(cron.WithChain(cron.Recover(logger)))

	_, err := a.Cron.AddFunc(a.CronSpec, func() {
		if err := a.Scanner.Run(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("Scan run failed", zap.Error(err))
		}
	})
	return err
}

// Start launches the scheduler, an immediate first scan, and the backfill
// pool, then blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) {
	a.Cron.Start()
	a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))

	go func() {
		if err := a.Scanner.Run(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("Initial scan failed", zap.Error(err))
		}
	}()

	go a.Filler.Run(ctx)

	<-ctx.Done()
	a.Stop()
}

// Stop shuts down the scheduler and flushes buffered state.
func (a *App) Stop() {
	cronCtx := a.Cron.Stop()
	<-cronCtx.Done()

	if a.SnapshotCache != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.SnapshotCache.Flush(flushCtx)
		cancel()
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
