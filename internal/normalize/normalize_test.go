package normalize

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPow10(t *testing.T) {
	assert.Equal(t, "1", Pow10(0).String())
	assert.Equal(t, "1000000000000000000", Pow10(18).String())
	assert.Equal(t, "1000000000000000000000000000", Pow10(27).String())

	// Cached value is returned on repeat lookups
	first := Pow10(6)
	second := Pow10(6)
	assert.Same(t, first, second, "repeat lookups should hit the cache")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		decimals int
		expected string
	}{
		{"whole unit", "1000000000000000000", 18, "1"},
		{"fractional", "1234000000000000000000", 18, "1234"},
		{"sub-unit", "500000000000000000", 18, "0.5"},
		{"trailing zeros trimmed", "1500000000000000000", 18, "1.5"},
		{"full precision kept", "1000000000000000001", 18, "1.000000000000000001"},
		{"zero", "0", 18, "0"},
		{"zero decimals", "7500", 0, "7500"},
		{"usd feed", "20000000000000", 10, "2000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, ok := new(big.Int).SetString(tt.raw, 10)
			require.True(t, ok)
			assert.Equal(t, tt.expected, Normalize(raw, tt.decimals))
		})
	}
}

func TestDenormalize(t *testing.T) {
	got, err := Denormalize("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", got.String())

	// Round trip through Normalize is exact
	raw, _ := new(big.Int).SetString("123456789123456789", 10)
	back, err := Denormalize(Normalize(raw, 18), 18)
	require.NoError(t, err)
	assert.Zero(t, back.Cmp(raw))

	// Precision beyond the scale truncates toward zero
	got, err = Denormalize("0.0000000000000000015", 18)
	require.NoError(t, err)
	assert.Equal(t, "1", got.String())

	_, err = Denormalize("not a number", 18)
	assert.Error(t, err)
}
