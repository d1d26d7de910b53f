package midgard

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"go.uber.org/zap"
)

// ParserV1 normalizes the legacy single-chain feed format:
// one inbound leg per event, a list of outbound legs, and an `events` object
// carrying fee/slip/stake-unit figures.
type ParserV1 struct {
	network string
	Logger  *zap.Logger
}

func (p *ParserV1) Network() string { return p.network }

func (p *ParserV1) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

type v1Page struct {
	Count flexInt         `json:"count"`
	Txs   json.RawMessage `json:"txs"`
}

type v1Event struct {
	Status string     `json:"status"`
	Type   string     `json:"type"`
	In     rawSubTx   `json:"in"`
	Out    []rawSubTx `json:"out"`
	Events struct {
		Fee        flexInt   `json:"fee"`
		Slip       flexFloat `json:"slip"`
		StakeUnits flexInt   `json:"stakeUnits"`
	} `json:"events"`
	Height flexInt `json:"height"`
	Date   flexInt `json:"date"`
	Pool   string  `json:"pool"`
}

func (p *ParserV1) Parse(raw []byte) (ParseResult, error) {
	var page v1Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return ParseResult{}, fmt.Errorf("unreadable v1 page: %w", err)
	}

	entries := decodeEntries(page.Txs)
	txs := make([]*ledger.Tx, 0, len(entries))

	for _, entry := range entries {
		var ev v1Event
		if err := json.Unmarshal(entry, &ev); err != nil {
			p.logger().Warn("skipping malformed v1 event", zap.Error(err))
			continue
		}
		if !strings.EqualFold(ev.Status, "success") {
			continue
		}

		tx, err := p.normalize(&ev)
		if err != nil {
			p.logger().Warn("skipping v1 event", zap.Error(err))
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

func (p *ParserV1) normalize(ev *v1Event) (*ledger.Tx, error) {
	txType := ledger.CanonicalType(ev.Type)
	if !ledger.KnownType(txType) {
		return nil, fmt.Errorf("unknown tx type: %q", ev.Type)
	}

	in := ev.In.toSubTx()
	out := make([]SubTx, 0, len(ev.Out))
	for _, o := range ev.Out {
		out = append(out, o.toSubTx())
	}

	tx := &ledger.Tx{
		Hash:        ev.In.TxID,
		Network:     p.network,
		Type:        txType,
		BlockHeight: uint64(ev.Height),
		Date:        int64(ev.Date),
		UserAddress: in.Address,
		Fee:         float64(ev.Events.Fee) / ledger.Divider,
		Slip:        float64(ev.Events.Slip),
	}

	switch txType {
	case ledger.TypeSwap:
		joinedOut := JoinSubTxs(out)
		tx.Asset1, tx.Amount1 = in.FirstAsset(), in.FirstAmount()
		tx.Asset2, tx.Amount2 = joinedOut.FirstAsset(), joinedOut.FirstAmount()
		// Single-hop swaps have exactly one native side; a double swap
		// (rewritten doubleSwap alias) keeps both assets populated.
		if ledger.IsRune(tx.Asset1) {
			tx.Asset1 = ledger.NativeAsset
		} else if ledger.IsRune(tx.Asset2) {
			tx.Asset2 = ledger.NativeAsset
		}

	case ledger.TypeWithdraw:
		joinedOut := JoinSubTxs(out)
		if nonRune := joinedOut.NonRuneCoins(); len(nonRune) > 0 {
			tx.Asset1, tx.Amount1 = nonRune[0].Asset, nonRune[0].Amount
		} else {
			tx.Asset1 = ev.Pool
		}
		tx.Asset2 = ledger.NativeAsset
		if runeCoin, ok := joinedOut.RuneCoin(); ok {
			tx.Amount2 = runeCoin.Amount
		}
		tx.LiqUnits = -float64(ev.Events.StakeUnits) / ledger.Divider

	case ledger.TypeAddLiquidity, ledger.TypeDonate:
		// The legacy feed carries both sides as coins of the single
		// inbound leg. Non-native asset goes to slot 1.
		if nonRune := in.NonRuneCoins(); len(nonRune) > 0 {
			tx.Asset1, tx.Amount1 = nonRune[0].Asset, nonRune[0].Amount
		} else {
			tx.Asset1 = ev.Pool
		}
		tx.Asset2 = ledger.NativeAsset
		if runeCoin, ok := in.RuneCoin(); ok {
			tx.Amount2 = runeCoin.Amount
		}
		if txType == ledger.TypeAddLiquidity {
			tx.LiqUnits = float64(ev.Events.StakeUnits) / ledger.Divider
		}

	case ledger.TypeRefund:
		tx.Asset1, tx.Amount1 = in.FirstAsset(), in.FirstAmount()
		if len(out) > 0 {
			tx.Asset2, tx.Amount2 = out[0].FirstAsset(), out[0].FirstAmount()
		}
		if ledger.IsRune(tx.Asset1) {
			tx.Asset1 = ledger.NativeAsset
		}
		if ledger.IsRune(tx.Asset2) {
			tx.Asset2 = ledger.NativeAsset
		}

	default:
		// Switch does not exist in the legacy feed.
		return nil, fmt.Errorf("unexpected v1 tx type: %q", txType)
	}

	return tx, nil
}
