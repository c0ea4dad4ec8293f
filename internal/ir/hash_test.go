package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecHashStable(t *testing.T) {
	a := SpecHash("input: {a: \"Float64\"}")
	b := SpecHash("input: {a: \"Float64\"}")
	c := SpecHash("input: {b: \"Float64\"}")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestVerdictDigest(t *testing.T) {
	d1, err := VerdictDigest([][]float64{{5}, nil, {1, 2}})
	require.NoError(t, err)
	d2, err := VerdictDigest([][]float64{{5}, {}, {1, 2}})
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "nil and empty verdicts digest identically")

	d3, err := VerdictDigest([][]float64{{5}, {1, 2}, {}})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3, "order is significant")

	inf, err := VerdictDigest([][]float64{{math.Inf(1)}})
	require.NoError(t, err)
	largest, err := VerdictDigest([][]float64{{math.MaxFloat64}})
	require.NoError(t, err)
	assert.NotEqual(t, inf, largest)
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("payload")
	assert.NotEqual(t, hashWithDomain(DomainSpec, data), hashWithDomain(DomainVerdict, data))
}
