package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePoolStore struct {
	rows     map[uint64][]*ledger.PoolSnapshot
	inserted int
	finds    int
}

func (f *fakePoolStore) FindPools(_ context.Context, _ string, height uint64) ([]*ledger.PoolSnapshot, error) {
	f.finds++
	return f.rows[height], nil
}

func (f *fakePoolStore) InsertPools(_ context.Context, pools []*ledger.PoolSnapshot) error {
	f.inserted += len(pools)
	return nil
}

type fakeChain struct {
	pools   []*ledger.PoolSnapshot
	err     error
	fetches int
}

func (f *fakeChain) PoolsAt(context.Context, uint64) ([]*ledger.PoolSnapshot, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.pools, nil
}

func chainPools() []*ledger.PoolSnapshot {
	return []*ledger.PoolSnapshot{
		{Pool: "BNB.BNB", BalanceAsset: 100 * 1e8, BalanceRune: 1000 * 1e8},
	}
}

func TestMemoryCacheWriteOnce(t *testing.T) {
	c := NewMemoryCache()
	first := chainPools()
	c.Put("net", 10, first)
	c.Put("net", 10, []*ledger.PoolSnapshot{{Pool: "OTHER"}})

	got, ok := c.Get("net", 10)
	require.True(t, ok)
	assert.Equal(t, first, got, "first snapshot set wins")

	_, ok = c.Get("net", 11)
	assert.False(t, ok)
	_, ok = c.Get("other-net", 10)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Size())
}

func TestSnapshotSourcePrefersStore(t *testing.T) {
	store := &fakePoolStore{rows: map[uint64][]*ledger.PoolSnapshot{
		20: {{Pool: "BTC.BTC", BalanceAsset: 1, BalanceRune: 1}},
	}}
	chain := &fakeChain{pools: chainPools()}
	src := NewSnapshotSource(SnapshotSourceOpts{
		Network: "net",
		Store:   store,
		Chain:   chain,
		Logger:  zaptest.NewLogger(t),
	})

	pools, err := src.PoolsAt(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, "BTC.BTC", pools[0].Pool)
	assert.Zero(t, chain.fetches)

	// Second lookup comes from cache
	_, err = src.PoolsAt(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 1, store.finds)
}

func TestSnapshotSourceFallsThroughToChain(t *testing.T) {
	store := &fakePoolStore{rows: map[uint64][]*ledger.PoolSnapshot{}}
	chain := &fakeChain{pools: chainPools()}
	src := NewSnapshotSource(SnapshotSourceOpts{
		Network: "net",
		Store:   store,
		Chain:   chain,
		Logger:  zaptest.NewLogger(t),
	})

	pools, err := src.PoolsAt(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	assert.Equal(t, 1, chain.fetches)

	// Chain results are stamped and persisted
	assert.Equal(t, "net", pools[0].Network)
	assert.Equal(t, uint64(30), pools[0].BlockHeight)
	assert.Equal(t, 1, store.inserted)

	// And cached for the next lookup
	_, err = src.PoolsAt(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 1, chain.fetches)
}

func TestSnapshotSourceChainFailure(t *testing.T) {
	chain := &fakeChain{err: errors.New("no node")}
	src := NewSnapshotSource(SnapshotSourceOpts{
		Network: "net",
		Chain:   chain,
		Retry:   retry.FixedConfig(2, 0),
		Logger:  zaptest.NewLogger(t),
	})

	_, err := src.PoolsAt(context.Background(), 40)
	require.Error(t, err)
	assert.Equal(t, 2, chain.fetches, "bounded retry")
}
