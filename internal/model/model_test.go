package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validReserveData() ReserveData {
	return ReserveData{
		ID:                          "0xdai",
		Symbol:                      "DAI",
		Decimals:                    18,
		LiquidityIndex:              "1001723339484196023531781973",
		LiquidityRate:               "22461069120446605265174349",
		VariableBorrowIndex:         "1050000000000000000000000000",
		VariableBorrowRate:          "38568743388028395681971229",
		LastUpdateTimestamp:         1700000000,
		BaseLTVasCollateral:         "7500",
		ReserveLiquidationThreshold: "8000",
		ReserveLiquidationBonus:     "10500",
		ReserveFactor:               "1000",
		UsageAsCollateralEnabled:    true,
		PriceInEth:                  "500000000000000",
		AverageStableRate:           "0",
		TotalPrincipalStableDebt:    "0",
	}
}

func validUserReserveData() UserReserveData {
	return UserReserveData{
		ReserveID:                       "0xdai",
		ScaledATokenBalance:             "161316503206059870",
		ScaledVariableDebt:              "0",
		PrincipalStableDebt:             "0",
		StableBorrowRate:                "0",
		StableBorrowLastUpdateTimestamp: 1700000000,
		UsageAsCollateralEnabledOnUser:  true,
	}
}

func TestParseReserveSnapshot(t *testing.T) {
	snap, err := ParseReserveSnapshot(validReserveData())
	require.NoError(t, err)

	assert.Equal(t, "0xdai", snap.ID)
	assert.Equal(t, "DAI", snap.Symbol)
	assert.Equal(t, 18, snap.Decimals)
	assert.Equal(t, "1001723339484196023531781973", snap.LiquidityIndex.String())
	assert.Equal(t, "7500", snap.BaseLTVasCollateral.String())
	assert.True(t, snap.UsageAsCollateralEnabled)
}

func TestParseReserveSnapshotRejectsBadNumerics(t *testing.T) {
	raw := validReserveData()
	raw.LiquidityRate = "12.5"

	_, err := ParseReserveSnapshot(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "liquidityRate", "error should name the offending field")
	assert.Contains(t, err.Error(), "0xdai", "error should name the reserve")

	raw = validReserveData()
	raw.PriceInEth = "-500000000000000"
	_, err = ParseReserveSnapshot(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative value")

	raw = validReserveData()
	raw.VariableBorrowIndex = ""
	_, err = ParseReserveSnapshot(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variableBorrowIndex")
}

func TestParseUserReservePosition(t *testing.T) {
	pos, err := ParseUserReservePosition(validUserReserveData())
	require.NoError(t, err)

	assert.Equal(t, "0xdai", pos.ReserveID)
	assert.Equal(t, "161316503206059870", pos.ScaledATokenBalance.String())
	assert.True(t, pos.UsageAsCollateralEnabledOnUser)

	raw := validUserReserveData()
	raw.ScaledVariableDebt = "0x1f"
	_, err = ParseUserReservePosition(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scaledVariableDebt")
}
