package types

import (
	"context"
	"net/http"
	"time"

	"github.com/runeboard/runeboardx/pkg/db"
	"github.com/runeboard/runeboardx/pkg/redis"
	"go.uber.org/zap"
)

// User is one entry of the admin credential set.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

type App struct {
	// Database Client wrapper
	DB db.Store

	// Network served by this deployment
	Network string

	// Fail threshold used when deriving enrichment progress from counts
	MaxFails int

	// Redis Client (for WebSocket real-time progress events)
	RedisClient *redis.Client

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the application and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	if a.RedisClient != nil {
		a.Logger.Info("Closing Redis connection")
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	if a.DB != nil {
		a.Logger.Info("Closing database connection")
		if err := a.DB.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	a.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)
}
