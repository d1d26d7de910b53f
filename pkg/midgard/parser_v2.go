package midgard

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/utils"
	"go.uber.org/zap"
)

// ParserV2 normalizes the multi-chain actions feed: explicit inbound and
// outbound leg lists, a pools list, and a metadata object holding swap
// slip/fee or liquidity-unit deltas.
type ParserV2 struct {
	network string
	Logger  *zap.Logger
}

func (p *ParserV2) Network() string { return p.network }

func (p *ParserV2) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

type v2Page struct {
	Count   flexInt         `json:"count"`
	Actions json.RawMessage `json:"actions"`
}

type v2Action struct {
	Status   string     `json:"status"`
	Type     string     `json:"type"`
	Pools    []string   `json:"pools"`
	Date     flexInt    `json:"date"` // nanoseconds
	Height   flexInt    `json:"height"`
	In       []rawSubTx `json:"in"`
	Out      []rawSubTx `json:"out"`
	Metadata struct {
		Swap struct {
			LiquidityFee flexInt `json:"liquidityFee"`
			TradeSlip    flexInt `json:"tradeSlip"`
		} `json:"swap"`
		AddLiquidity struct {
			LiquidityUnits flexInt `json:"liquidityUnits"`
		} `json:"addLiquidity"`
		Withdraw struct {
			LiquidityUnits flexInt `json:"liquidityUnits"`
		} `json:"withdraw"`
	} `json:"metadata"`
}

func (p *ParserV2) Parse(raw []byte) (ParseResult, error) {
	var page v2Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return ParseResult{}, fmt.Errorf("unreadable v2 page: %w", err)
	}

	entries := decodeEntries(page.Actions)
	txs := make([]*ledger.Tx, 0, len(entries))

	for _, entry := range entries {
		var ac v2Action
		if err := json.Unmarshal(entry, &ac); err != nil {
			p.logger().Warn("skipping malformed v2 action", zap.Error(err))
			continue
		}
		if !strings.EqualFold(ac.Status, "success") {
			continue
		}

		tx, err := p.normalize(&ac)
		if err != nil {
			p.logger().Warn("skipping v2 action", zap.String("type", ac.Type), zap.Error(err))
			continue
		}
		txs = append(txs, tx)
	}

	return ParseResult{
		Txs:        txs,
		TotalCount: int(page.Count),
		RawCount:   len(entries),
		Network:    p.network,
	}, nil
}

func (p *ParserV2) normalize(ac *v2Action) (*ledger.Tx, error) {
	txType := ledger.CanonicalType(ac.Type)
	if !ledger.KnownType(txType) {
		return nil, fmt.Errorf("unknown tx type: %q", ac.Type)
	}

	in := make([]SubTx, 0, len(ac.In))
	for _, leg := range ac.In {
		in = append(in, leg.toSubTx())
	}
	out := make([]SubTx, 0, len(ac.Out))
	for _, leg := range ac.Out {
		out = append(out, leg.toSubTx())
	}
	if len(in) == 0 {
		return nil, fmt.Errorf("action without inbound legs")
	}

	tx := &ledger.Tx{
		Network:     p.network,
		Type:        txType,
		BlockHeight: uint64(ac.Height),
		Date:        int64(ac.Date) / 1_000_000_000,
		UserAddress: in[0].Address,
		Hash:        ac.In[0].TxID,
	}

	switch txType {
	case ledger.TypeSwap:
		if len(in) > 1 || len(out) > 1 {
			p.logger().Warn("swap with multiple legs, joining",
				zap.Int("in", len(in)), zap.Int("out", len(out)))
		}
		joinedIn, joinedOut := JoinSubTxs(in), JoinSubTxs(out)
		tx.Asset1, tx.Amount1 = joinedIn.FirstAsset(), joinedIn.FirstAmount()
		tx.Asset2, tx.Amount2 = joinedOut.FirstAsset(), joinedOut.FirstAmount()
		if ledger.IsRune(tx.Asset1) {
			tx.Asset1 = ledger.NativeAsset
		} else if ledger.IsRune(tx.Asset2) {
			tx.Asset2 = ledger.NativeAsset
		}
		tx.Slip = float64(ac.Metadata.Swap.TradeSlip) / 10000.0
		tx.Fee = float64(ac.Metadata.Swap.LiquidityFee) / ledger.Divider

	case ledger.TypeAddLiquidity, ledger.TypeDonate:
		tx.Asset1, tx.Amount1 = in[0].FirstAsset(), in[0].FirstAmount()
		if ledger.IsRune(tx.Asset1) {
			tx.Asset1 = ledger.NativeAsset
			if len(ac.Pools) > 0 {
				tx.Asset2 = ac.Pools[0]
			}
		}
		if len(in) >= 2 {
			tx.Asset2, tx.Amount2 = in[1].FirstAsset(), in[1].FirstAmount()
			if ledger.IsRune(tx.Asset2) {
				tx.Asset2 = ledger.NativeAsset
				if len(ac.Pools) > 0 {
					tx.Asset1 = ac.Pools[0]
				}
				tx.UserAddress = in[1].Address
			}
		}
		if txType == ledger.TypeAddLiquidity {
			tx.LiqUnits = float64(ac.Metadata.AddLiquidity.LiquidityUnits) / ledger.Divider
		}

	case ledger.TypeWithdraw:
		if len(ac.Pools) > 0 {
			tx.Asset1 = ac.Pools[0]
		}
		joinedOut := JoinSubTxs(out)
		if nonRune := joinedOut.NonRuneCoins(); len(nonRune) > 0 {
			tx.Amount1 = nonRune[0].Amount
		}
		tx.Asset2 = ledger.NativeAsset
		if runeCoin, ok := joinedOut.RuneCoin(); ok {
			tx.Amount2 = runeCoin.Amount
		}
		tx.LiqUnits = float64(ac.Metadata.Withdraw.LiquidityUnits) / ledger.Divider

	case ledger.TypeRefund:
		tx.Asset1, tx.Amount1 = in[0].FirstAsset(), in[0].FirstAmount()
		if len(out) > 0 {
			tx.Asset2, tx.Amount2 = out[0].FirstAsset(), out[0].FirstAmount()
		}
		if ledger.IsRune(tx.Asset1) {
			tx.Asset1 = ledger.NativeAsset
		}
		if ledger.IsRune(tx.Asset2) {
			tx.Asset2 = ledger.NativeAsset
		}

	case ledger.TypeSwitch:
		tx.Amount1 = in[0].FirstAmount()
		if len(out) > 0 {
			tx.Amount2 = out[0].FirstAmount()
		}
		// Token migration events may carry no native tx id; synthesize a
		// deterministic one so uniqueness holds.
		if tx.Hash == "" {
			tx.Hash = utils.SyntheticTxHash(
				strconv.FormatUint(tx.BlockHeight, 10),
				strconv.FormatFloat(tx.Amount1, 'f', -1, 64),
				tx.UserAddress,
			)
		}
	}

	return tx, nil
}
