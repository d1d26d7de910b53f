package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	redisclient "github.com/runeboard/runeboardx/pkg/redis"
	"go.uber.org/zap"
)

// SnapshotCache caches pool snapshot sets per block. Snapshots are
// immutable once written, so implementations never replace an entry.
type SnapshotCache interface {
	Get(network string, height uint64) ([]*ledger.PoolSnapshot, bool)
	Put(network string, height uint64, pools []*ledger.PoolSnapshot)
}

func snapshotKey(network string, height uint64) string {
	return fmt.Sprintf("%s:%d", network, height)
}

// MemoryCache is an in-process snapshot cache safe for concurrent use by
// the enrichment workers.
type MemoryCache struct {
	entries *xsync.Map[string, []*ledger.PoolSnapshot]
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: xsync.NewMap[string, []*ledger.PoolSnapshot]()}
}

func (c *MemoryCache) Get(network string, height uint64) ([]*ledger.PoolSnapshot, bool) {
	return c.entries.Load(snapshotKey(network, height))
}

func (c *MemoryCache) Put(network string, height uint64, pools []*ledger.PoolSnapshot) {
	// Write-once: the first snapshot set for a block wins.
	c.entries.LoadOrStore(snapshotKey(network, height), pools)
}

// Size returns the number of cached blocks.
func (c *MemoryCache) Size() int {
	return c.entries.Size()
}

// RedisCache decorates an inner cache with Redis persistence so a restart
// does not re-fetch every block's pools from the chain. Writes are buffered
// and flushed in a single pipeline every flushEvery puts; reads fall back
// to Redis on an inner miss and promote the hit.
type RedisCache struct {
	inner      SnapshotCache
	client     *redisclient.Client
	logger     *zap.Logger
	keyPrefix  string
	ttl        time.Duration
	flushEvery int64
	pending    *xsync.Map[string, []*ledger.PoolSnapshot]
	puts       atomic.Int64
}

// RedisCacheOpts configures a RedisCache.
type RedisCacheOpts struct {
	Inner      SnapshotCache
	Client     *redisclient.Client
	Logger     *zap.Logger
	KeyPrefix  string        // default "runeboard:pools:"
	TTL        time.Duration // 0 keeps entries forever
	FlushEvery int64         // default 100
}

func NewRedisCache(o RedisCacheOpts) *RedisCache {
	if o.Inner == nil {
		o.Inner = NewMemoryCache()
	}
	if o.KeyPrefix == "" {
		o.KeyPrefix = "runeboard:pools:"
	}
	if o.FlushEvery <= 0 {
		o.FlushEvery = 100
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		inner:      o.Inner,
		client:     o.Client,
		logger:     logger,
		keyPrefix:  o.KeyPrefix,
		ttl:        o.TTL,
		flushEvery: o.FlushEvery,
		pending:    xsync.NewMap[string, []*ledger.PoolSnapshot](),
	}
}

func (c *RedisCache) Get(network string, height uint64) ([]*ledger.PoolSnapshot, bool) {
	if pools, ok := c.inner.Get(network, height); ok {
		return pools, true
	}

	key := snapshotKey(network, height)
	raw, err := c.client.Raw().Get(context.Background(), c.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var pools []*ledger.PoolSnapshot
	if err := json.Unmarshal(raw, &pools); err != nil {
		c.logger.Warn("Dropping corrupt cached snapshot",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	c.inner.Put(network, height, pools)
	return pools, true
}

func (c *RedisCache) Put(network string, height uint64, pools []*ledger.PoolSnapshot) {
	c.inner.Put(network, height, pools)
	c.pending.Store(snapshotKey(network, height), pools)
	if c.puts.Add(1)%c.flushEvery == 0 {
		c.Flush(context.Background())
	}
}

// Flush writes all buffered snapshots to Redis in one pipeline.
// Best-effort: failures are logged and the entries retried on the next
// flush since they remain pending until the pipeline succeeds.
func (c *RedisCache) Flush(ctx context.Context) {
	pipe := c.client.Raw().Pipeline()
	keys := make([]string, 0, int(c.flushEvery))
	c.pending.Range(func(key string, pools []*ledger.PoolSnapshot) bool {
		raw, err := json.Marshal(pools)
		if err != nil {
			c.logger.Warn("Failed to encode snapshot", zap.String("key", key), zap.Error(err))
			c.pending.Delete(key)
			return true
		}
		pipe.Set(ctx, c.keyPrefix+key, raw, c.ttl)
		keys = append(keys, key)
		return true
	})
	if len(keys) == 0 {
		return
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("Snapshot cache flush failed",
			zap.Int("entries", len(keys)), zap.Error(err))
		return
	}
	for _, key := range keys {
		c.pending.Delete(key)
	}
	c.logger.Debug("Flushed snapshot cache", zap.Int("entries", len(keys)))
}
