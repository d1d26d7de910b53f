package pricing

import (
	"context"
	"fmt"

	"github.com/runeboard/runeboardx/pkg/db"
	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/retry"
	"go.uber.org/zap"
)

// ChainClient fetches pool snapshots for a block directly from the chain.
type ChainClient interface {
	PoolsAt(ctx context.Context, height uint64) ([]*ledger.PoolSnapshot, error)
}

// SnapshotSource resolves the pool snapshot set for a block, checking the
// cache, then the database, then the chain. Chain results are persisted to
// both layers so each block is fetched at most once.
type SnapshotSource struct {
	network string
	cache   SnapshotCache
	store   db.PoolStore
	chain   ChainClient
	retry   retry.Config
	logger  *zap.Logger
}

// SnapshotSourceOpts configures a SnapshotSource. Cache defaults to an
// in-process MemoryCache; Store may be nil when running without history.
type SnapshotSourceOpts struct {
	Network string
	Cache   SnapshotCache
	Store   db.PoolStore
	Chain   ChainClient
	Retry   retry.Config
	Logger  *zap.Logger
}

func NewSnapshotSource(o SnapshotSourceOpts) *SnapshotSource {
	if o.Cache == nil {
		o.Cache = NewMemoryCache()
	}
	if o.Retry.MaxRetries == 0 {
		o.Retry = retry.FixedConfig(3, 0)
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotSource{
		network: o.Network,
		cache:   o.Cache,
		store:   o.Store,
		chain:   o.Chain,
		retry:   o.Retry,
		logger:  logger,
	}
}

// PoolsAt returns the pool snapshots for the given block height.
func (s *SnapshotSource) PoolsAt(ctx context.Context, height uint64) ([]*ledger.PoolSnapshot, error) {
	if pools, ok := s.cache.Get(s.network, height); ok {
		return pools, nil
	}

	if s.store != nil {
		pools, err := s.store.FindPools(ctx, s.network, height)
		if err != nil {
			s.logger.Warn("Pool lookup failed, falling through to chain",
				zap.Uint64("height", height), zap.Error(err))
		} else if len(pools) > 0 {
			s.cache.Put(s.network, height, pools)
			return pools, nil
		}
	}

	var pools []*ledger.PoolSnapshot
	err := retry.WithBackoff(ctx, s.retry, s.logger, fmt.Sprintf("pools@%d", height), func() error {
		var fetchErr error
		pools, fetchErr = s.chain.PoolsAt(ctx, height)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pools at height %d: %w", height, err)
	}

	for _, p := range pools {
		p.Network = s.network
		p.BlockHeight = height
	}

	s.cache.Put(s.network, height, pools)
	if s.store != nil {
		if err := s.store.InsertPools(ctx, pools); err != nil {
			s.logger.Warn("Failed to persist pool snapshots",
				zap.Uint64("height", height), zap.Error(err))
		}
	}
	return pools, nil
}
