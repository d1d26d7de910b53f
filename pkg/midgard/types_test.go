package midgard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinSubTxs(t *testing.T) {
	legs := []SubTx{
		{Address: "", Coins: []Coin{{Asset: "BNB.BNB", Amount: 1.5}}},
		{Address: "addr1", Coins: []Coin{{Asset: "BTC.BTC", Amount: 0.2}}},
		{Address: "addr2", Coins: []Coin{{Asset: "BNB.BNB", Amount: 2.5}}},
	}

	joined := JoinSubTxs(legs)
	assert.Equal(t, "addr1", joined.Address, "first non-empty address wins")
	require.Len(t, joined.Coins, 2)
	assert.Equal(t, "BNB.BNB", joined.Coins[0].Asset)
	assert.InDelta(t, 4.0, joined.Coins[0].Amount, 1e-9)
	assert.Equal(t, "BTC.BTC", joined.Coins[1].Asset)
	assert.InDelta(t, 0.2, joined.Coins[1].Amount, 1e-9)
}

func TestJoinSubTxsEmpty(t *testing.T) {
	joined := JoinSubTxs(nil)
	assert.Empty(t, joined.Address)
	assert.Empty(t, joined.Coins)
	assert.Equal(t, "", joined.FirstAsset())
	assert.Zero(t, joined.FirstAmount())
}

func TestFlexIntFormats(t *testing.T) {
	var v struct {
		A flexInt `json:"a"`
		B flexInt `json:"b"`
		C flexInt `json:"c"`
		D flexInt `json:"d"`
	}
	err := json.Unmarshal([]byte(`{"a": 42, "b": "42", "c": null, "d": "1.5e9"}`), &v)
	require.NoError(t, err)
	assert.Equal(t, flexInt(42), v.A)
	assert.Equal(t, flexInt(42), v.B)
	assert.Equal(t, flexInt(0), v.C)
	assert.Equal(t, flexInt(1_500_000_000), v.D)
}

func TestFlexFloatFormats(t *testing.T) {
	var v struct {
		A flexFloat `json:"a"`
		B flexFloat `json:"b"`
	}
	err := json.Unmarshal([]byte(`{"a": 0.0025, "b": "0.0025"}`), &v)
	require.NoError(t, err)
	assert.InDelta(t, 0.0025, float64(v.A), 1e-12)
	assert.InDelta(t, 0.0025, float64(v.B), 1e-12)
}

func TestParserForNetwork(t *testing.T) {
	p1, err := ParserForNetwork(NetworkChaosnetBEP2, nil)
	require.NoError(t, err)
	assert.IsType(t, &ParserV1{}, p1)
	assert.Equal(t, NetworkChaosnetBEP2, p1.Network())

	p2, err := ParserForNetwork(NetworkChaosnetMultichain, nil)
	require.NoError(t, err)
	assert.IsType(t, &ParserV2{}, p2)

	p3, err := ParserForNetwork(NetworkTestnetMultichain, nil)
	require.NoError(t, err)
	assert.IsType(t, &ParserV2{}, p3)

	_, err = ParserForNetwork("mainnet-unknown", nil)
	require.Error(t, err)
}

func TestPathTemplateForNetwork(t *testing.T) {
	v1, err := PathTemplateForNetwork(NetworkChaosnetBEP2)
	require.NoError(t, err)
	assert.Contains(t, v1, "/v1/txs")

	v2, err := PathTemplateForNetwork(NetworkChaosnetMultichain)
	require.NoError(t, err)
	assert.Contains(t, v2, "/v2/actions")

	_, err = PathTemplateForNetwork("nope")
	require.Error(t, err)
}
