package db

import (
	"context"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
)

// LeaderboardQuery bounds a leaderboard aggregate.
type LeaderboardQuery struct {
	Network  string
	FromDate int64
	ToDate   int64
	Offset   int
	Limit    int
	Currency string // "rune" or "usd"
}

// TxStore is the write/claim surface consumed by the sync policy and the
// valuation backfill engine.
type TxStore interface {
	// SaveUnique persists the transaction unless its hash is already known.
	// Returns true when a new row was written.
	SaveUnique(ctx context.Context, tx *ledger.Tx) (bool, error)
	// UpdateTx persists an enrichment result or a fail-count increment.
	UpdateTx(ctx context.Context, tx *ledger.Tx) error
	// SelectRandomUnfilled claims one unenriched, not permanently failed
	// transaction, or nil when none remain.
	SelectRandomUnfilled(ctx context.Context, network string, maxFails int) (*ledger.Tx, error)
	TxCount(ctx context.Context, network string) (uint64, error)
	UnfilledCount(ctx context.Context, network string, maxFails int) (uint64, error)
	StuckCount(ctx context.Context, network string, maxFails int) (uint64, error)
}

// PoolStore caches historical pool reserves.
type PoolStore interface {
	FindPools(ctx context.Context, network string, height uint64) ([]*ledger.PoolSnapshot, error)
	InsertPools(ctx context.Context, pools []*ledger.PoolSnapshot) error
}

// QueryStore is the read surface behind the leaderboard API.
type QueryStore interface {
	Leaderboard(ctx context.Context, q LeaderboardQuery) ([]ledger.LeaderboardRow, error)
	TotalVolume(ctx context.Context, q LeaderboardQuery) (float64, error)
	Participants(ctx context.Context, q LeaderboardQuery) (uint64, error)
}

// AdminStore carries the explicit administrative operations.
type AdminStore interface {
	// ClearVolumes resets enrichment for a network so the backfill engine
	// re-derives every valuation.
	ClearVolumes(ctx context.Context, network string) error
}

// Store is the full contract implemented by DB.
type Store interface {
	TxStore
	PoolStore
	QueryStore
	AdminStore
	DatabaseName() string
	Close() error
}
