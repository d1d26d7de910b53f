package pricing

import (
	"context"
	"errors"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/utils"
	"go.uber.org/zap"
)

// ErrUnpriceable signals that neither the on-chain stable pools nor the
// oracle could produce a USD rate for the requested moment.
var ErrUnpriceable = errors.New("no usd rate available")

// Resolver derives USD and native-token rates from pool snapshots, falling
// back to the external oracle when the snapshots carry no usable stable
// pool depth.
type Resolver struct {
	stablePools map[string]struct{}
	oracle      *Oracle
	logger      *zap.Logger
}

// ResolverOpts configures a Resolver. StablePools defaults to
// ledger.DefaultStablePools when empty.
type ResolverOpts struct {
	StablePools []string
	Oracle      *Oracle
	Logger      *zap.Logger
}

func NewResolver(o ResolverOpts) *Resolver {
	pools := o.StablePools
	if len(pools) == 0 {
		pools = ledger.DefaultStablePools
	}
	set := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		set[p] = struct{}{}
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{stablePools: set, oracle: o.Oracle, logger: logger}
}

// UsdPerRune computes the USD value of one native token as the mean of the
// stable pool implied rates, weighted by each pool's native-side depth.
// Pools with zero depth on either side contribute nothing. The boolean is
// false when no stable pool in the snapshot set is usable.
func (r *Resolver) UsdPerRune(pools []*ledger.PoolSnapshot) (float64, bool) {
	var rates, weights []float64
	for _, p := range pools {
		if _, ok := r.stablePools[p.Pool]; !ok {
			continue
		}
		if p.BalanceAsset == 0 || p.BalanceRune == 0 {
			continue
		}
		rates = append(rates, p.AssetsPerRune())
		weights = append(weights, float64(p.BalanceRune))
	}
	return utils.WeightedMean(rates, weights)
}

// UsdPerRuneAt resolves the USD rate for a block whose pools are given,
// falling back to the oracle at ts when the snapshots cannot price it.
// Returns ErrUnpriceable when both paths fail.
func (r *Resolver) UsdPerRuneAt(ctx context.Context, pools []*ledger.PoolSnapshot, ts int64) (float64, error) {
	if rate, ok := r.UsdPerRune(pools); ok {
		return rate, nil
	}
	if r.oracle == nil {
		return 0, ErrUnpriceable
	}
	rate, err := r.oracle.PriceAt(ctx, ts)
	if err != nil {
		r.logger.Debug("oracle fallback failed", zap.Int64("ts", ts), zap.Error(err))
		return 0, ErrUnpriceable
	}
	return rate, nil
}

// RunesPerAsset returns how many native tokens one unit of asset is worth
// according to the given snapshot set. The native placeholder itself is
// worth exactly one.
func (r *Resolver) RunesPerAsset(asset string, pools []*ledger.PoolSnapshot) (float64, error) {
	if ledger.IsRune(asset) {
		return 1.0, nil
	}
	for _, p := range pools {
		if p.Pool != asset {
			continue
		}
		if p.BalanceAsset == 0 || p.BalanceRune == 0 {
			return 0, ledger.ErrNoPoolDepth
		}
		return p.RunesPerAsset(), nil
	}
	return 0, ledger.ErrNoPoolDepth
}

// UsdPerAsset prices one unit of asset in USD given the block's usdPerRune
// rate.
func (r *Resolver) UsdPerAsset(asset string, pools []*ledger.PoolSnapshot, usdPerRune float64) (float64, error) {
	perRune, err := r.RunesPerAsset(asset, pools)
	if err != nil {
		return 0, err
	}
	return perRune * usdPerRune, nil
}
