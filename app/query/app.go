package query

import (
	"context"

	"github.com/runeboard/runeboardx/app/query/types"
	"github.com/runeboard/runeboardx/pkg/db"
	"github.com/runeboard/runeboardx/pkg/logging"
	"github.com/runeboard/runeboardx/pkg/midgard"
	"github.com/runeboard/runeboardx/pkg/redis"
	"github.com/runeboard/runeboardx/pkg/utils"
	"go.uber.org/zap"
)

func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	ledgerDb, err := db.New(ctx, logger)
	if err != nil {
		logger.Fatal("Unable to initialize ledger database", zap.Error(err))
	}

	// Initialize Redis client for real-time WebSocket progress (optional)
	var redisClient *redis.Client
	if utils.EnvBool("REDIS_ENABLED", false) {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket progress events will be disabled",
				zap.Error(err))
			redisClient = nil
		}
	} else {
		logger.Info("Redis disabled - WebSocket progress events will not be available")
	}

	return &types.App{
		DB:          ledgerDb,
		Network:     utils.Env("NETWORK", midgard.NetworkChaosnetMultichain),
		MaxFails:    utils.EnvInt("MAX_FAILS", 5),
		RedisClient: redisClient,
		Logger:      logger,
	}
}
