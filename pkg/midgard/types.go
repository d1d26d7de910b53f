package midgard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"go.uber.org/zap"
)

// Network identifiers. The deployment generation decides both the URL
// template and the wire format of the feed.
const (
	NetworkChaosnetBEP2       = "chaosnet-bep2"
	NetworkTestnetMultichain  = "testnet-multichain"
	NetworkChaosnetMultichain = "chaosnet-multichain"
)

// ParseResult is the outcome of normalizing one feed page.
type ParseResult struct {
	Txs []*ledger.Tx
	// TotalCount is the remote's reported (approximate) total row count.
	TotalCount int
	// RawCount is the page size before filtering; zero means the feed is
	// exhausted at this offset, regardless of how many events survived
	// normalization.
	RawCount int
	Network  string
}

func (r ParseResult) TxCount() int { return len(r.Txs) }

// Parser normalizes one raw feed page into canonical transactions.
// Implementations must skip malformed individual entries and fail only when
// the page itself is structurally unreadable.
type Parser interface {
	Parse(raw []byte) (ParseResult, error)
	Network() string
}

// ParserForNetwork selects the wire-format strategy once per network id.
func ParserForNetwork(network string, logger *zap.Logger) (Parser, error) {
	switch network {
	case NetworkChaosnetBEP2:
		return &ParserV1{network: network, Logger: logger}, nil
	case NetworkTestnetMultichain, NetworkChaosnetMultichain:
		return &ParserV2{network: network, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported network id: %q", network)
	}
}

// flexInt tolerates both quoted and bare JSON numbers; the feed is not
// consistent about this across generations.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		// Some fields arrive as floats in scientific notation.
		fl, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil {
			return err
		}
		n = int64(fl)
	}
	*f = flexInt(n)
	return nil
}

// flexFloat is the same for fractional fields (V1 slip).
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	fl, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(fl)
	return nil
}

// Coin is one asset amount, already converted to decimal scale.
type Coin struct {
	Asset  string
	Amount float64
}

type rawCoin struct {
	Asset  string  `json:"asset"`
	Amount flexInt `json:"amount"`
}

func (c rawCoin) toCoin() Coin {
	return Coin{Asset: c.Asset, Amount: float64(c.Amount) / ledger.Divider}
}

// SubTx is one leg (inbound or outbound) of a raw event.
type SubTx struct {
	Address string
	Coins   []Coin
}

type rawSubTx struct {
	Address string    `json:"address"`
	Coins   []rawCoin `json:"coins"`
	TxID    string    `json:"txID"`
	Memo    string    `json:"memo"`
}

func (s rawSubTx) toSubTx() SubTx {
	coins := make([]Coin, 0, len(s.Coins))
	for _, c := range s.Coins {
		coins = append(coins, c.toCoin())
	}
	return SubTx{Address: s.Address, Coins: coins}
}

func (s SubTx) FirstAsset() string {
	if len(s.Coins) == 0 {
		return ""
	}
	return s.Coins[0].Asset
}

func (s SubTx) FirstAmount() float64 {
	if len(s.Coins) == 0 {
		return 0
	}
	return s.Coins[0].Amount
}

// RuneCoin returns the native-token coin of the leg, if present.
func (s SubTx) RuneCoin() (Coin, bool) {
	for _, c := range s.Coins {
		if ledger.IsRune(c.Asset) {
			return c, true
		}
	}
	return Coin{}, false
}

// NonRuneCoins returns the leg's coins that are not the native token.
func (s SubTx) NonRuneCoins() []Coin {
	var out []Coin
	for _, c := range s.Coins {
		if !ledger.IsRune(c.Asset) {
			out = append(out, c)
		}
	}
	return out
}

// JoinSubTxs collapses multiple legs into one, summing amounts per asset.
// The first non-empty address wins. Order of distinct assets follows first
// appearance, which keeps the result deterministic for tests.
func JoinSubTxs(legs []SubTx) SubTx {
	amounts := map[string]float64{}
	var order []string
	address := ""
	for _, leg := range legs {
		if address == "" && leg.Address != "" {
			address = leg.Address
		}
		for _, c := range leg.Coins {
			if _, seen := amounts[c.Asset]; !seen {
				order = append(order, c.Asset)
			}
			amounts[c.Asset] += c.Amount
		}
	}
	coins := make([]Coin, 0, len(order))
	for _, asset := range order {
		coins = append(coins, Coin{Asset: asset, Amount: amounts[asset]})
	}
	return SubTx{Address: address, Coins: coins}
}

// decodeEntries splits a page body into individually decodable entries so a
// single malformed event cannot poison the page.
func decodeEntries(raw json.RawMessage) []json.RawMessage {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}
