package midgard

import (
	"testing"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newV1Parser(t *testing.T) *ParserV1 {
	t.Helper()
	return &ParserV1{network: NetworkChaosnetBEP2, Logger: zaptest.NewLogger(t)}
}

func TestParserV1Swap(t *testing.T) {
	raw := []byte(`{
		"count": "120340",
		"txs": [{
			"status": "Success",
			"type": "swap",
			"pool": "BNB.BNB",
			"height": "2000000",
			"date": "1598000000",
			"in": {
				"address": "bnb1user",
				"txID": "AAA111",
				"coins": [{"asset": "BNB.RUNE-B1A", "amount": "12500000000"}]
			},
			"out": [{
				"address": "bnb1user",
				"coins": [{"asset": "BNB.BNB", "amount": "2274318077"}]
			}],
			"events": {"fee": "30000000", "slip": "0.0025", "stakeUnits": "0"}
		}]
	}`)

	res, err := newV1Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())
	assert.Equal(t, 120340, res.TotalCount)

	tx := res.Txs[0]
	assert.Equal(t, "AAA111", tx.Hash)
	assert.Equal(t, ledger.TypeSwap, tx.Type)
	assert.Equal(t, uint64(2000000), tx.BlockHeight)
	assert.Equal(t, int64(1598000000), tx.Date, "legacy dates are already seconds")

	assert.Equal(t, ledger.NativeAsset, tx.Asset1)
	assert.InDelta(t, 125.0, tx.Amount1, 1e-9)
	assert.Equal(t, "BNB.BNB", tx.Asset2)
	assert.InDelta(t, 22.74318077, tx.Amount2, 1e-9)

	assert.InDelta(t, 0.0025, tx.Slip, 1e-9, "legacy slip is already fractional")
	assert.InDelta(t, 0.3, tx.Fee, 1e-9)
}

func TestParserV1DoubleSwapAlias(t *testing.T) {
	raw := []byte(`{
		"count": 1,
		"txs": [{
			"status": "success",
			"type": "doubleSwap",
			"pool": "BNB.BNB",
			"height": "2000001",
			"date": "1598000060",
			"in": {
				"address": "bnb1user",
				"txID": "BBB222",
				"coins": [{"asset": "BNB.BNB", "amount": "100000000"}]
			},
			"out": [{
				"address": "bnb1user",
				"coins": [{"asset": "BNB.BUSD-BD1", "amount": "1700000000"}]
			}],
			"events": {"fee": "0", "slip": "0.01", "stakeUnits": "0"}
		}]
	}`)

	res, err := newV1Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	assert.Equal(t, ledger.TypeSwap, tx.Type)
	assert.Equal(t, "BNB.BNB", tx.Asset1)
	assert.Equal(t, "BNB.BUSD-BD1", tx.Asset2)
	assert.InDelta(t, 1.0, tx.Amount1, 1e-9)
	assert.InDelta(t, 17.0, tx.Amount2, 1e-9)
}

func TestParserV1StakeAlias(t *testing.T) {
	raw := []byte(`{
		"count": 1,
		"txs": [{
			"status": "success",
			"type": "stake",
			"pool": "BNB.BNB",
			"height": "2000002",
			"date": "1598000120",
			"in": {
				"address": "bnb1provider",
				"txID": "CCC333",
				"coins": [
					{"asset": "BNB.BNB", "amount": "200000000"},
					{"asset": "BNB.RUNE-B1A", "amount": "5000000000"}
				]
			},
			"out": [],
			"events": {"fee": "0", "slip": "0", "stakeUnits": "250000000"}
		}]
	}`)

	res, err := newV1Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	assert.Equal(t, ledger.TypeAddLiquidity, tx.Type)
	assert.Equal(t, "BNB.BNB", tx.Asset1)
	assert.InDelta(t, 2.0, tx.Amount1, 1e-9)
	assert.Equal(t, ledger.NativeAsset, tx.Asset2)
	assert.InDelta(t, 50.0, tx.Amount2, 1e-9)
	assert.InDelta(t, 2.5, tx.LiqUnits, 1e-9)
}

func TestParserV1UnstakeAlias(t *testing.T) {
	raw := []byte(`{
		"count": 1,
		"txs": [{
			"status": "success",
			"type": "unstake",
			"pool": "BNB.BNB",
			"height": "2000003",
			"date": "1598000180",
			"in": {
				"address": "bnb1provider",
				"txID": "DDD444",
				"coins": []
			},
			"out": [
				{
					"address": "bnb1provider",
					"coins": [{"asset": "BNB.BNB", "amount": "100000000"}]
				},
				{
					"address": "bnb1provider",
					"coins": [{"asset": "BNB.RUNE-B1A", "amount": "2500000000"}]
				}
			],
			"events": {"fee": "0", "slip": "0", "stakeUnits": "125000000"}
		}]
	}`)

	res, err := newV1Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	assert.Equal(t, ledger.TypeWithdraw, tx.Type)
	assert.Equal(t, "BNB.BNB", tx.Asset1)
	assert.InDelta(t, 1.0, tx.Amount1, 1e-9)
	assert.Equal(t, ledger.NativeAsset, tx.Asset2)
	assert.InDelta(t, 25.0, tx.Amount2, 1e-9)
	assert.InDelta(t, -1.25, tx.LiqUnits, 1e-9, "withdrawals negate units")
}

func TestParserV1DropsFailedAndCountsRaw(t *testing.T) {
	raw := []byte(`{
		"count": 2,
		"txs": [
			{
				"status": "Refunded",
				"type": "swap",
				"height": "1",
				"date": "1",
				"in": {"address": "a", "coins": [{"asset": "BNB.BNB", "amount": "1"}]},
				"out": [],
				"events": {"fee": "0", "slip": "0", "stakeUnits": "0"}
			},
			{
				"status": "success",
				"type": "refund",
				"height": "2000004",
				"date": "1598000240",
				"in": {
					"address": "bnb1user",
					"txID": "EEE555",
					"coins": [{"asset": "BNB.RUNE-B1A", "amount": "300000000"}]
				},
				"out": [{
					"address": "bnb1user",
					"coins": [{"asset": "BNB.RUNE-B1A", "amount": "290000000"}]
				}],
				"events": {"fee": "10000000", "slip": "0", "stakeUnits": "0"}
			}
		]
	}`)

	res, err := newV1Parser(t).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RawCount)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	assert.Equal(t, ledger.TypeRefund, tx.Type)
	assert.Equal(t, ledger.NativeAsset, tx.Asset1)
	assert.Equal(t, ledger.NativeAsset, tx.Asset2)
	assert.InDelta(t, 3.0, tx.Amount1, 1e-9)
	assert.InDelta(t, 2.9, tx.Amount2, 1e-9)
}

func TestParserV1EmptyPage(t *testing.T) {
	res, err := newV1Parser(t).Parse([]byte(`{"count": "120340", "txs": []}`))
	require.NoError(t, err)
	assert.Equal(t, 0, res.RawCount)
	assert.Equal(t, 0, res.TxCount())
	assert.Equal(t, 120340, res.TotalCount)
}
