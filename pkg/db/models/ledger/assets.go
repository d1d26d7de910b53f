package ledger

// NativeAsset is the placeholder stored in an asset slot when that side of a
// transaction is denominated in the chain's own settlement token. The feed
// spells the native token several ways across generations; the canonical
// record never stores a literal symbol for it.
const NativeAsset = ""

var runeAssets = map[string]struct{}{
	"RUNE":         {},
	"THOR.RUNE":    {},
	"BNB.RUNE-B1A": {},
	"BNB.RUNE-67C": {},
}

// IsRune reports whether the asset symbol denotes the native token.
// The empty placeholder counts as native.
func IsRune(asset string) bool {
	if asset == NativeAsset {
		return true
	}
	_, ok := runeAssets[asset]
	return ok
}

// DefaultStablePools are the USD-pegged pools used as the reference for
// native-to-USD conversion when no override is configured.
var DefaultStablePools = []string{
	"BNB.BUSD-BD1",
	"ETH.USDC-0XA0B86991C6218B36C1D19D4A2E9EB0CE3606EB48",
	"ETH.USDT-0XDAC17F958D2EE523A2206206994597C13D831EC7",
}
