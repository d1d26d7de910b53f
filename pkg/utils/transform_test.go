package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup(t *testing.T) {
	in := []string{"https://a.example/", "https://a.example", "https://b.example"}
	out := Dedup(in)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, out)
}

func TestWeightedMean(t *testing.T) {
	mean, ok := WeightedMean([]float64{2, 4}, []float64{1000, 100})
	require.True(t, ok)
	assert.InDelta(t, 2400.0/1100.0, mean, 1e-9)
}

func TestWeightedMeanSkipsNonPositiveWeights(t *testing.T) {
	mean, ok := WeightedMean([]float64{2, 99, 4}, []float64{1, 0, 1})
	require.True(t, ok)
	assert.InDelta(t, 3.0, mean, 1e-9)
}

func TestWeightedMeanNoWeight(t *testing.T) {
	_, ok := WeightedMean([]float64{1, 2}, []float64{0, -1})
	assert.False(t, ok)

	_, ok = WeightedMean(nil, nil)
	assert.False(t, ok)
}

func TestSyntheticTxHashDeterministic(t *testing.T) {
	a := SyntheticTxHash("150004", "5", "bnb1migrator")
	b := SyntheticTxHash("150004", "5", "bnb1migrator")
	c := SyntheticTxHash("150004", "5", "bnb1other")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 40, "hex sha1")
}

func TestHashOrRead(t *testing.T) {
	hashed, err := HashOrRead("secret")
	require.NoError(t, err)
	assert.True(t, len(hashed) > 0)

	// Already-hashed input passes through unchanged
	again, err := HashOrRead(string(hashed))
	require.NoError(t, err)
	assert.Equal(t, hashed, again)
}
