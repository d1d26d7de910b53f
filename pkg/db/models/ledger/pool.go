package ledger

import "fmt"

const PoolSnapshotsTableName = "pool_snapshots"

// PoolSnapshot is the state of one liquidity pool at one historical height.
// Keyed by (network, block_height, pool); reserves at a past height never
// change, so rows are written once and read forever.
type PoolSnapshot struct {
	Network     string `ch:"network" json:"network"`
	BlockHeight uint64 `ch:"block_height" json:"block_height"`
	Pool        string `ch:"pool" json:"pool"`

	// Reserves in protocol base units.
	BalanceAsset uint64 `ch:"balance_asset" json:"balance_asset"`
	BalanceRune  uint64 `ch:"balance_rune" json:"balance_rune"`
	PoolUnits    uint64 `ch:"pool_units" json:"pool_units"`

	Status string `ch:"status" json:"status"`
}

// AssetsPerRune is the pool's exchange rate: units of the paired asset per
// one unit of native token.
func (p *PoolSnapshot) AssetsPerRune() float64 {
	if p.BalanceRune == 0 {
		return 0
	}
	return float64(p.BalanceAsset) / float64(p.BalanceRune)
}

// RunesPerAsset is the inverse rate.
func (p *PoolSnapshot) RunesPerAsset() float64 {
	if p.BalanceAsset == 0 {
		return 0
	}
	return float64(p.BalanceRune) / float64(p.BalanceAsset)
}

func (p *PoolSnapshot) String() string {
	return fmt.Sprintf("PoolSnapshot(#%d, %.2f %s vs %.2f R, %s)",
		p.BlockHeight,
		float64(p.BalanceAsset)/Divider, p.Pool,
		float64(p.BalanceRune)/Divider,
		p.Status)
}

// PoolMap indexes snapshots by pool symbol.
func PoolMap(pools []*PoolSnapshot) map[string]*PoolSnapshot {
	m := make(map[string]*PoolSnapshot, len(pools))
	for _, p := range pools {
		m[p.Pool] = p
	}
	return m
}
