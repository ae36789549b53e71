package validation

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/lendpool-health-ea/internal/model"
	"github.com/yourorg/lendpool-health-ea/internal/raymath"
)

const evalTime = int64(1700000000)

func validReserve() *model.ReserveSnapshot {
	return &model.ReserveSnapshot{
		ID:                          "0xdai",
		Symbol:                      "DAI",
		Decimals:                    18,
		LiquidityIndex:              new(big.Int).Set(raymath.RAY),
		LiquidityRate:               big.NewInt(0),
		VariableBorrowIndex:         new(big.Int).Set(raymath.RAY),
		VariableBorrowRate:          big.NewInt(0),
		LastUpdateTimestamp:         evalTime - 60,
		BaseLTVasCollateral:         big.NewInt(7500),
		ReserveLiquidationThreshold: big.NewInt(8000),
		ReserveLiquidationBonus:     big.NewInt(10500),
		ReserveFactor:               big.NewInt(1000),
		UsageAsCollateralEnabled:    true,
		PriceInEth:                  big.NewInt(500000000000000),
		AverageStableRate:           big.NewInt(0),
		TotalPrincipalStableDebt:    big.NewInt(0),
	}
}

func validPosition() *model.UserReservePosition {
	return &model.UserReservePosition{
		ReserveID:                       "0xdai",
		ScaledATokenBalance:             big.NewInt(1000),
		ScaledVariableDebt:              big.NewInt(0),
		PrincipalStableDebt:             big.NewInt(0),
		StableBorrowRate:                big.NewInt(0),
		StableBorrowLastUpdateTimestamp: evalTime - 60,
	}
}

func TestValidateReserveAcceptsHealthySnapshot(t *testing.T) {
	err := ValidateReserve(validReserve(), evalTime, DefaultValidationOptions())
	assert.NoError(t, err)
}

func TestValidateReserveRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *model.ReserveSnapshot)
		wantMsg string
	}{
		{
			"empty id",
			func(r *model.ReserveSnapshot) { r.ID = "" },
			"empty id",
		},
		{
			"implausible decimals",
			func(r *model.ReserveSnapshot) { r.Decimals = 40 },
			"implausible decimals",
		},
		{
			"update after evaluation time",
			func(r *model.ReserveSnapshot) { r.LastUpdateTimestamp = evalTime + 10 },
			"after evaluation timestamp",
		},
		{
			"stale snapshot",
			func(r *model.ReserveSnapshot) { r.LastUpdateTimestamp = evalTime - int64(48*time.Hour/time.Second) },
			"stale",
		},
		{
			"liquidity index below RAY",
			func(r *model.ReserveSnapshot) { r.LiquidityIndex = big.NewInt(1) },
			"liquidity index below RAY",
		},
		{
			"borrow index below RAY",
			func(r *model.ReserveSnapshot) { r.VariableBorrowIndex = big.NewInt(1) },
			"variable borrow index below RAY",
		},
		{
			"rate above ceiling",
			func(r *model.ReserveSnapshot) {
				r.VariableBorrowRate = new(big.Int).Mul(raymath.RAY, big.NewInt(11))
			},
			"variableBorrowRate exceeds plausible ceiling",
		},
		{
			"ltv above 10000 bps",
			func(r *model.ReserveSnapshot) { r.BaseLTVasCollateral = big.NewInt(10001) },
			"baseLTVasCollateral above 10000 basis points",
		},
		{
			"zero price",
			func(r *model.ReserveSnapshot) { r.PriceInEth = big.NewInt(0) },
			"zero ETH price",
		},
		{
			"collateral enabled with zero params",
			func(r *model.ReserveSnapshot) { r.ReserveLiquidationThreshold = big.NewInt(0) },
			"collateral enabled but parameters are zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validReserve()
			tt.mutate(r)
			err := ValidateReserve(r, evalTime, DefaultValidationOptions())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidateReserveOptionOverrides(t *testing.T) {
	opts := DefaultValidationOptions()
	opts.AllowZeroPrice = true

	r := validReserve()
	r.PriceInEth = big.NewInt(0)
	assert.NoError(t, ValidateReserve(r, evalTime, opts), "delisted assets may carry a zero price when allowed")

	opts = DefaultValidationOptions()
	opts.MaxAge = 0

	r = validReserve()
	r.LastUpdateTimestamp = evalTime - int64(96*time.Hour/time.Second)
	assert.NoError(t, ValidateReserve(r, evalTime, opts), "staleness check disabled by zero MaxAge")
}

func TestValidatePosition(t *testing.T) {
	assert.NoError(t, ValidatePosition(validPosition(), evalTime))

	p := validPosition()
	p.ReserveID = ""
	err := ValidatePosition(p, evalTime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty reserve id")

	p = validPosition()
	p.StableBorrowLastUpdateTimestamp = evalTime + 100
	err = ValidatePosition(p, evalTime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after evaluation timestamp")

	p = validPosition()
	p.PrincipalStableDebt = big.NewInt(1000)
	err = ValidatePosition(p, evalTime)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero stable rate")
}

func TestValidateSnapshotSet(t *testing.T) {
	reserves := []*model.ReserveSnapshot{validReserve()}
	positions := []*model.UserReservePosition{validPosition()}
	price := big.NewInt(500000000000000)

	assert.NoError(t, ValidateSnapshotSet(reserves, positions, price, evalTime, DefaultValidationOptions()))

	err := ValidateSnapshotSet(reserves, positions, big.NewInt(0), evalTime, DefaultValidationOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usd price of ETH must be positive")

	err = ValidateSnapshotSet(reserves, positions, nil, evalTime, DefaultValidationOptions())
	assert.Error(t, err)

	// First bad reserve aborts the whole set
	bad := validReserve()
	bad.PriceInEth = big.NewInt(0)
	err = ValidateSnapshotSet([]*model.ReserveSnapshot{bad, validReserve()}, positions, price, evalTime, DefaultValidationOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero ETH price")
}
