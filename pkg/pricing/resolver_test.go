package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func snapshots() []*ledger.PoolSnapshot {
	return []*ledger.PoolSnapshot{
		// 1 RUNE = 2 BUSD, deep pool
		{Pool: "BNB.BUSD-BD1", BalanceAsset: 2000 * 1e8, BalanceRune: 1000 * 1e8},
		// 1 RUNE = 4 USDT, shallow pool (weights the mean toward BUSD)
		{Pool: "ETH.USDT-0XDAC17F958D2EE523A2206206994597C13D831EC7", BalanceAsset: 400 * 1e8, BalanceRune: 100 * 1e8},
		// Not a stable pool, must be ignored
		{Pool: "BNB.BNB", BalanceAsset: 100 * 1e8, BalanceRune: 1000 * 1e8},
	}
}

func TestUsdPerRuneWeightedMean(t *testing.T) {
	r := NewResolver(ResolverOpts{Logger: zaptest.NewLogger(t)})

	rate, ok := r.UsdPerRune(snapshots())
	require.True(t, ok)
	// (2*1000 + 4*100) / (1000 + 100)
	assert.InDelta(t, 2400.0/1100.0, rate, 1e-9)
}

func TestUsdPerRuneSkipsDrainedPools(t *testing.T) {
	r := NewResolver(ResolverOpts{Logger: zaptest.NewLogger(t)})

	pools := []*ledger.PoolSnapshot{
		{Pool: "BNB.BUSD-BD1", BalanceAsset: 0, BalanceRune: 1000 * 1e8},
		{Pool: "ETH.USDT-0XDAC17F958D2EE523A2206206994597C13D831EC7", BalanceAsset: 300 * 1e8, BalanceRune: 100 * 1e8},
	}
	rate, ok := r.UsdPerRune(pools)
	require.True(t, ok)
	assert.InDelta(t, 3.0, rate, 1e-9, "drained pool contributes nothing")
}

func TestUsdPerRuneNoStablePools(t *testing.T) {
	r := NewResolver(ResolverOpts{Logger: zaptest.NewLogger(t)})

	_, ok := r.UsdPerRune([]*ledger.PoolSnapshot{
		{Pool: "BNB.BNB", BalanceAsset: 100 * 1e8, BalanceRune: 1000 * 1e8},
	})
	assert.False(t, ok)
}

func TestUsdPerRuneCustomStableSet(t *testing.T) {
	r := NewResolver(ResolverOpts{
		StablePools: []string{"BNB.BNB"},
		Logger:      zaptest.NewLogger(t),
	})

	rate, ok := r.UsdPerRune(snapshots())
	require.True(t, ok)
	assert.InDelta(t, 0.1, rate, 1e-9)
}

func TestUsdPerRuneAtOracleFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"prices": [[1600000000000, 1.75], [1600003600000, 1.80]]}`))
	}))
	defer srv.Close()

	oracle := NewOracle(OracleOpts{BaseURL: srv.URL, Logger: zaptest.NewLogger(t)})
	r := NewResolver(ResolverOpts{Oracle: oracle, Logger: zaptest.NewLogger(t)})

	rate, err := r.UsdPerRuneAt(context.Background(), nil, 1600000000)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, rate, 1e-9)
}

func TestUsdPerRuneAtUnpriceable(t *testing.T) {
	r := NewResolver(ResolverOpts{Logger: zaptest.NewLogger(t)})

	_, err := r.UsdPerRuneAt(context.Background(), nil, 1600000000)
	require.ErrorIs(t, err, ErrUnpriceable)
}

func TestRunesPerAsset(t *testing.T) {
	r := NewResolver(ResolverOpts{Logger: zaptest.NewLogger(t)})
	pools := snapshots()

	rate, err := r.RunesPerAsset("BNB.BNB", pools)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, rate, 1e-9)

	rate, err = r.RunesPerAsset(ledger.NativeAsset, pools)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)

	rate, err = r.RunesPerAsset("THOR.RUNE", pools)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)

	_, err = r.RunesPerAsset("BTC.BTC", pools)
	require.ErrorIs(t, err, ledger.ErrNoPoolDepth)
}

func TestUsdPerAsset(t *testing.T) {
	r := NewResolver(ResolverOpts{Logger: zaptest.NewLogger(t)})

	price, err := r.UsdPerAsset("BNB.BNB", snapshots(), 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, price, 1e-9)
}
