package poolmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/lendpool-health-ea/internal/raymath"
	"github.com/yourorg/lendpool-health-ea/internal/types"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad test literal: " + s)
	}
	return v
}

func TestCalculateLinearInterest(t *testing.T) {
	// Zero elapsed time yields exactly the unit factor
	got, err := CalculateLinearInterest(bi("50000000000000000000000000"), 1000, 1000)
	require.NoError(t, err)
	assert.Zero(t, got.Cmp(raymath.RAY), "zero elapsed should yield RAY")

	// 5% annual rate over exactly one year
	fivePercent := new(big.Int).Div(new(big.Int).Mul(raymath.RAY, big.NewInt(5)), big.NewInt(100))
	got, err = CalculateLinearInterest(fivePercent, 31536000, 0)
	require.NoError(t, err)
	assert.Equal(t, "1050000000000000000000000000", got.String())

	// Negative elapsed time is a contract violation, not a zero factor
	_, err = CalculateLinearInterest(fivePercent, 999, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTimeOrdering)
}

func TestCalculateCompoundedInterest(t *testing.T) {
	rate := bi("38568743388028395681971229")

	for _, m := range []types.AccrualModel{types.ModelBinomial, types.ModelExact} {
		got, err := CalculateCompoundedInterest(rate, 5000, 5000, m)
		require.NoError(t, err)
		assert.Zero(t, got.Cmp(raymath.RAY), "zero elapsed should yield RAY under %s", m)
	}

	_, err := CalculateCompoundedInterest(rate, 4999, 5000, types.ModelBinomial)
	assert.ErrorIs(t, err, ErrInvalidTimeOrdering)

	// Exact and binomial should be extremely close over one day
	binomial, err := CalculateCompoundedInterest(rate, 86400, 0, types.ModelBinomial)
	require.NoError(t, err)
	exact, err := CalculateCompoundedInterest(rate, 86400, 0, types.ModelExact)
	require.NoError(t, err)
	assert.Equal(t, binomial.String()[:8], exact.String()[:8], "models should agree to 8 significant digits")
}

func TestGetCompoundedBalance(t *testing.T) {
	// Zero principal short-circuits; rounding can never manufacture dust
	got, err := GetCompoundedBalance(big.NewInt(0), raymath.RAY, bi("38568743388028395681971229"), 0, 86400, types.ModelBinomial)
	require.NoError(t, err)
	assert.Zero(t, got.Sign())

	// One WAD of scaled variable debt against a grown index, one day of
	// accrual at ~3.86% annualized
	got, err = GetCompoundedBalance(
		bi("1000000000000000000"),
		bi("1050000000000000000000000000"),
		bi("38568743388028395681971229"),
		0,
		86400,
		types.ModelBinomial,
	)
	require.NoError(t, err)
	assert.Equal(t, "1050110957041750262", got.String())

	_, err = GetCompoundedBalance(bi("1000000000000000000"), raymath.RAY, bi("1"), 100, 99, types.ModelBinomial)
	assert.ErrorIs(t, err, ErrInvalidTimeOrdering)
}

func TestGetCompoundedStableBalance(t *testing.T) {
	got, err := GetCompoundedStableBalance(big.NewInt(0), bi("100000000000000000000000000"), 0, 86400, types.ModelBinomial)
	require.NoError(t, err)
	assert.Zero(t, got.Sign())

	// Zero elapsed time returns the principal unchanged
	got, err = GetCompoundedStableBalance(bi("1000000000000000000"), bi("100000000000000000000000000"), 7000, 7000, types.ModelBinomial)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", got.String())

	// A year at a locked-in 10% stable rate grows the debt
	got, err = GetCompoundedStableBalance(bi("1000000000000000000"), bi("100000000000000000000000000"), 0, 31536000, types.ModelBinomial)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Cmp(bi("1100000000000000000")), "compounding should beat linear growth")
}

func TestGetLinearBalance(t *testing.T) {
	got, err := GetLinearBalance(big.NewInt(0), raymath.RAY, bi("22461069120446605265174349"), 0, 1918)
	require.NoError(t, err)
	assert.Zero(t, got.Sign())

	// Regression pin: a mainnet-shaped supply position projected ~32 minutes
	// past its last index sync
	got, err = GetLinearBalance(
		bi("161316503206059870"),
		bi("1001723339484196023531781973"),
		bi("22461069120446605265174349"),
		0,
		1918,
	)
	require.NoError(t, err)
	assert.Equal(t, "161594727054623229", got.String())

	_, err = GetLinearBalance(bi("1"), raymath.RAY, bi("1"), 10, 5)
	assert.ErrorIs(t, err, ErrInvalidTimeOrdering)
}
