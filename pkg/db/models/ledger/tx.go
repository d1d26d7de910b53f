package ledger

import (
	"errors"
	"fmt"
)

const TxsTableName = "txs"

// Divider converts raw integer amounts (protocol base units) to decimals.
const Divider = 100_000_000.0

// Canonical transaction types. The feed's legacy generation used a handful of
// aliases that are rewritten to these during normalization.
const (
	TypeSwap         = "swap"
	TypeAddLiquidity = "addLiquidity"
	TypeWithdraw     = "withdraw"
	TypeDonate       = "donate"
	TypeRefund       = "refund"
	TypeSwitch       = "switch"

	// Deprecated aliases (legacy feed only).
	TypeStake      = "stake"
	TypeUnstake    = "unstake"
	TypeDoubleSwap = "doubleSwap"
	TypeAdd        = "add"
)

// CanonicalType rewrites deprecated aliases to their canonical type.
// Unknown types are returned unchanged for the caller to reject.
func CanonicalType(t string) string {
	switch t {
	case TypeStake:
		return TypeAddLiquidity
	case TypeUnstake:
		return TypeWithdraw
	case TypeDoubleSwap:
		return TypeSwap
	case TypeAdd:
		return TypeDonate
	default:
		return t
	}
}

// KnownType reports whether t is one of the six canonical types.
func KnownType(t string) bool {
	switch t {
	case TypeSwap, TypeAddLiquidity, TypeWithdraw, TypeDonate, TypeRefund, TypeSwitch:
		return true
	default:
		return false
	}
}

// ErrNoPoolDepth is returned by FillVolumes when a populated non-native slot
// has no pool (or a drained pool) at the transaction's height.
var ErrNoPoolDepth = errors.New("no pool depth for asset")

// Tx is the canonical persisted transaction record.
//
// Asset slots hold NativeAsset ("") when that side is the native token.
// ProcessFlags encodes enrichment state the way the reference store does:
// 0 = unenriched, >0 = enriched, <0 = failed (-ProcessFlags) times.
// Call sites must go through Enriched/FailCount/SetEnriched/IncreaseFailCount
// rather than touching the sign logic directly.
type Tx struct {
	Hash    string `ch:"hash" json:"hash"`
	Network string `ch:"network" json:"network"`
	Type    string `ch:"type" json:"type"`

	BlockHeight uint64 `ch:"block_height" json:"block_height"`
	Date        int64  `ch:"date" json:"date"` // unix seconds

	UserAddress string `ch:"user_address" json:"user_address"`

	Asset1    string  `ch:"asset1" json:"asset1"`
	Amount1   float64 `ch:"amount1" json:"amount1"`
	UsdPrice1 float64 `ch:"usd_price1" json:"usd_price1"`

	Asset2    string  `ch:"asset2" json:"asset2"`
	Amount2   float64 `ch:"amount2" json:"amount2"`
	UsdPrice2 float64 `ch:"usd_price2" json:"usd_price2"`

	RuneVolume float64 `ch:"rune_volume" json:"rune_volume"`
	UsdVolume  float64 `ch:"usd_volume" json:"usd_volume"`

	Fee      float64 `ch:"fee" json:"fee"`
	Slip     float64 `ch:"slip" json:"slip"`
	LiqUnits float64 `ch:"liq_units" json:"liq_units"`

	ProcessFlags int32 `ch:"process_flags" json:"process_flags"`
}

func (t *Tx) Enriched() bool { return t.ProcessFlags > 0 }

func (t *Tx) FailCount() int {
	if t.ProcessFlags < 0 {
		return int(-t.ProcessFlags)
	}
	return 0
}

func (t *Tx) SetEnriched() { t.ProcessFlags = 1 }

func (t *Tx) IncreaseFailCount() { t.ProcessFlags-- }

func (t *Tx) String() string {
	a1, a2 := t.Asset1, t.Asset2
	if a1 == NativeAsset {
		a1 = "Rune"
	}
	if a2 == NativeAsset {
		a2 = "Rune"
	}
	return fmt.Sprintf("%s(#%d, %s: %g %s -> %g %s)",
		t.Type, t.BlockHeight, t.UserAddress, t.Amount1, a1, t.Amount2, a2)
}

// slotRuneVolume converts one asset slot to native-token units.
func slotRuneVolume(asset string, amount float64, pools map[string]*PoolSnapshot) (float64, error) {
	if amount <= 0 {
		return 0, nil
	}
	if asset == NativeAsset {
		return amount, nil
	}
	pool, ok := pools[asset]
	if !ok || pool.BalanceAsset == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoPoolDepth, asset)
	}
	return amount * pool.RunesPerAsset(), nil
}

// FillVolumes computes the historical valuation of the transaction from the
// pool reserves at its block height and the USD price of the native token at
// that moment. Swap-like types count only the first slot (the value moved);
// liquidity-changing types count both legs.
func (t *Tx) FillVolumes(pools map[string]*PoolSnapshot, usdPerRune float64) error {
	vol1, err := slotRuneVolume(t.Asset1, t.Amount1, pools)
	if err != nil {
		return err
	}
	vol2, err := slotRuneVolume(t.Asset2, t.Amount2, pools)
	if err != nil {
		return err
	}

	switch t.Type {
	case TypeSwap, TypeRefund, TypeSwitch:
		t.RuneVolume = vol1
	case TypeAddLiquidity, TypeWithdraw, TypeDonate:
		t.RuneVolume = vol1 + vol2
	default:
		return fmt.Errorf("unknown tx type: %q", t.Type)
	}
	t.UsdVolume = t.RuneVolume * usdPerRune

	t.UsdPrice1 = slotUsdPrice(t.Asset1, pools, usdPerRune)
	t.UsdPrice2 = slotUsdPrice(t.Asset2, pools, usdPerRune)

	t.SetEnriched()
	return nil
}

func slotUsdPrice(asset string, pools map[string]*PoolSnapshot, usdPerRune float64) float64 {
	if asset == NativeAsset {
		return usdPerRune
	}
	if pool, ok := pools[asset]; ok && pool.BalanceAsset > 0 {
		return pool.RunesPerAsset() * usdPerRune
	}
	return 0
}
