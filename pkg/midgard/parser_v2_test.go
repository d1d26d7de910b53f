package midgard

import (
	"strconv"
	"testing"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newV2Parser(t *testing.T) *ParserV2 {
	t.Helper()
	return &ParserV2{network: NetworkTestnetMultichain, Logger: zaptest.NewLogger(t)}
}

func TestParserV2Swap(t *testing.T) {
	raw := []byte(`{
		"count": "211",
		"actions": [{
			"status": "success",
			"type": "swap",
			"pools": ["BNB.BNB"],
			"date": "1600000000000000000",
			"height": "150000",
			"in": [{
				"address": "tthor1user",
				"txID": "AAA111",
				"coins": [{"asset": "THOR.RUNE", "amount": "100000000"}]
			}],
			"out": [{
				"address": "tbnb1user",
				"txID": "BBB222",
				"coins": [{"asset": "BNB.BNB", "amount": "2274318077"}]
			}],
			"metadata": {"swap": {"liquidityFee": "300000", "tradeSlip": "25"}}
		}]
	}`)

	res, err := newV2Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())
	assert.Equal(t, 211, res.TotalCount)
	assert.Equal(t, 1, res.RawCount)

	tx := res.Txs[0]
	assert.Equal(t, "AAA111", tx.Hash)
	assert.Equal(t, ledger.TypeSwap, tx.Type)
	assert.Equal(t, uint64(150000), tx.BlockHeight)
	assert.Equal(t, int64(1600000000), tx.Date, "dates arrive in nanoseconds")
	assert.Equal(t, "tthor1user", tx.UserAddress)

	assert.Equal(t, ledger.NativeAsset, tx.Asset1)
	assert.InDelta(t, 1.0, tx.Amount1, 1e-9)
	assert.Equal(t, "BNB.BNB", tx.Asset2)
	assert.InDelta(t, 22.74318077, tx.Amount2, 1e-9)

	assert.InDelta(t, 0.0025, tx.Slip, 1e-9, "trade slip is in basis points")
	assert.InDelta(t, 0.003, tx.Fee, 1e-9)
}

func TestParserV2DoubleSwapKeepsBothAssets(t *testing.T) {
	raw := []byte(`{
		"count": 2,
		"actions": [{
			"status": "success",
			"type": "swap",
			"pools": ["BNB.BNB", "BTC.BTC"],
			"date": "1600000001000000000",
			"height": "150001",
			"in": [{
				"address": "tbnb1user",
				"txID": "CCC333",
				"coins": [{"asset": "BNB.BNB", "amount": "500000000"}]
			}],
			"out": [{
				"address": "tbtc1user",
				"coins": [{"asset": "BTC.BTC", "amount": "1000000"}]
			}],
			"metadata": {"swap": {"liquidityFee": "100", "tradeSlip": "120"}}
		}]
	}`)

	res, err := newV2Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	assert.Equal(t, "BNB.BNB", tx.Asset1)
	assert.Equal(t, "BTC.BTC", tx.Asset2)
	assert.InDelta(t, 5.0, tx.Amount1, 1e-9)
	assert.InDelta(t, 0.01, tx.Amount2, 1e-9)
}

func TestParserV2AddLiquidityRuneLegSecond(t *testing.T) {
	raw := []byte(`{
		"count": 1,
		"actions": [{
			"status": "success",
			"type": "addLiquidity",
			"pools": ["BTC.BTC"],
			"date": "1600000002000000000",
			"height": "150002",
			"in": [
				{
					"address": "tbtc1user",
					"txID": "DDD444",
					"coins": [{"asset": "BTC.BTC", "amount": "2000000"}]
				},
				{
					"address": "tthor1user",
					"txID": "EEE555",
					"coins": [{"asset": "THOR.RUNE", "amount": "700000000"}]
				}
			],
			"out": [],
			"metadata": {"addLiquidity": {"liquidityUnits": "350000000"}}
		}]
	}`)

	res, err := newV2Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	assert.Equal(t, "BTC.BTC", tx.Asset1)
	assert.InDelta(t, 0.02, tx.Amount1, 1e-9)
	assert.Equal(t, ledger.NativeAsset, tx.Asset2)
	assert.InDelta(t, 7.0, tx.Amount2, 1e-9)
	// The native leg identifies the liquidity provider
	assert.Equal(t, "tthor1user", tx.UserAddress)
	assert.InDelta(t, 3.5, tx.LiqUnits, 1e-9)
}

func TestParserV2Withdraw(t *testing.T) {
	raw := []byte(`{
		"count": 1,
		"actions": [{
			"status": "success",
			"type": "withdraw",
			"pools": ["BNB.BNB"],
			"date": "1600000003000000000",
			"height": "150003",
			"in": [{
				"address": "tthor1user",
				"txID": "FFF666",
				"coins": []
			}],
			"out": [
				{
					"address": "tbnb1user",
					"coins": [{"asset": "BNB.BNB", "amount": "400000000"}]
				},
				{
					"address": "tthor1user",
					"coins": [{"asset": "THOR.RUNE", "amount": "900000000"}]
				}
			],
			"metadata": {"withdraw": {"liquidityUnits": "-350000000"}}
		}]
	}`)

	res, err := newV2Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	assert.Equal(t, "BNB.BNB", tx.Asset1)
	assert.InDelta(t, 4.0, tx.Amount1, 1e-9)
	assert.Equal(t, ledger.NativeAsset, tx.Asset2)
	assert.InDelta(t, 9.0, tx.Amount2, 1e-9)
	assert.InDelta(t, -3.5, tx.LiqUnits, 1e-9)
}

func TestParserV2SwitchSynthesizesHash(t *testing.T) {
	raw := []byte(`{
		"count": 1,
		"actions": [{
			"status": "success",
			"type": "switch",
			"pools": [],
			"date": "1600000004000000000",
			"height": "150004",
			"in": [{
				"address": "bnb1migrator",
				"coins": [{"asset": "BNB.RUNE-B1A", "amount": "500000000"}]
			}],
			"out": [{
				"address": "tthor1migrator",
				"coins": [{"asset": "THOR.RUNE", "amount": "500000000"}]
			}]
		}]
	}`)

	res, err := newV2Parser(t).Parse(raw)
	require.NoError(t, err)
	require.Equal(t, 1, res.TxCount())

	tx := res.Txs[0]
	require.NotEmpty(t, tx.Hash)
	want := utils.SyntheticTxHash(
		strconv.FormatUint(150004, 10),
		strconv.FormatFloat(5.0, 'f', -1, 64),
		"bnb1migrator",
	)
	assert.Equal(t, want, tx.Hash)
	assert.InDelta(t, 5.0, tx.Amount1, 1e-9)
}

func TestParserV2SkipsNonSuccessAndMalformed(t *testing.T) {
	raw := []byte(`{
		"count": 3,
		"actions": [
			{"status": "pending", "type": "swap", "height": "1",
			 "in": [{"address": "a", "coins": [{"asset": "BNB.BNB", "amount": "1"}]}]},
			{"status": "success", "type": "swap", "height": "not-a-number",
			 "in": "garbage"},
			{"status": "success", "type": "swap", "pools": ["BNB.BNB"],
			 "date": "1600000005000000000", "height": "150005",
			 "in": [{"address": "a", "txID": "GGG777",
			         "coins": [{"asset": "THOR.RUNE", "amount": "100000000"}]}],
			 "out": [{"address": "b",
			          "coins": [{"asset": "BNB.BNB", "amount": "100000000"}]}],
			 "metadata": {"swap": {"liquidityFee": "0", "tradeSlip": "0"}}}
		]
	}`)

	res, err := newV2Parser(t).Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RawCount, "raw count includes skipped entries")
	require.Equal(t, 1, res.TxCount())
	assert.Equal(t, "GGG777", res.Txs[0].Hash)
}

func TestParserV2UnreadablePage(t *testing.T) {
	_, err := newV2Parser(t).Parse([]byte(`not json`))
	require.Error(t, err)
}
