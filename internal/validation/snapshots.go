// Package validation provides plausibility checks for reserve and user
// snapshots before they reach the computation pipeline.
package validation

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lendpool-health-ea/internal/model"
	"github.com/yourorg/lendpool-health-ea/internal/raymath"
)

// ValidationOptions holds configuration for the validation process
type ValidationOptions struct {
	// MaxAge defines how far behind the evaluation timestamp a reserve's
	// last on-chain update may be before the snapshot is considered stale
	MaxAge time.Duration

	// MaxAnnualRate is the RAY-scaled ceiling for any rate field; rates above
	// it are treated as indexer corruption rather than market conditions
	MaxAnnualRate *big.Int

	// RequireCollateralParams rejects collateral-enabled reserves whose LTV or
	// liquidation threshold is zero
	RequireCollateralParams bool

	// AllowZeroPrice permits reserves with a zero ETH price (delisted assets)
	AllowZeroPrice bool
}

// DefaultValidationOptions returns sensible defaults for validation
func DefaultValidationOptions() ValidationOptions {
	// 10x annual rate in RAY as a generous upper bound
	maxRate := new(big.Int).Mul(raymath.RAY, big.NewInt(10))

	return ValidationOptions{
		MaxAge:                  24 * time.Hour,
		MaxAnnualRate:           maxRate,
		RequireCollateralParams: true,
		AllowZeroPrice:          false,
	}
}

var bpsMax = big.NewInt(10000)

// ValidateReserve checks a single reserve snapshot against the options and
// the evaluation timestamp. This is the main entrypoint for reserve checks.
func ValidateReserve(r *model.ReserveSnapshot, currentTimestamp int64, opts ValidationOptions) error {
	if r.ID == "" {
		return errors.New("reserve has empty id")
	}

	if r.Decimals < 0 || r.Decimals > 36 {
		return fmt.Errorf("reserve %s: implausible decimals %d", r.ID, r.Decimals)
	}

	if r.LastUpdateTimestamp > currentTimestamp {
		return fmt.Errorf("reserve %s: last update %d after evaluation timestamp %d", r.ID, r.LastUpdateTimestamp, currentTimestamp)
	}

	if opts.MaxAge > 0 {
		age := time.Duration(currentTimestamp-r.LastUpdateTimestamp) * time.Second
		if age > opts.MaxAge {
			return fmt.Errorf("reserve %s: snapshot stale by %s", r.ID, age)
		}
	}

	// Indices start at RAY and only grow
	if r.LiquidityIndex.Cmp(raymath.RAY) < 0 {
		return fmt.Errorf("reserve %s: liquidity index below RAY", r.ID)
	}
	if r.VariableBorrowIndex.Cmp(raymath.RAY) < 0 {
		return fmt.Errorf("reserve %s: variable borrow index below RAY", r.ID)
	}

	rates := []struct {
		name  string
		value *big.Int
	}{
		{"liquidityRate", r.LiquidityRate},
		{"variableBorrowRate", r.VariableBorrowRate},
		{"averageStableRate", r.AverageStableRate},
	}
	for _, rate := range rates {
		if opts.MaxAnnualRate != nil && rate.value.Cmp(opts.MaxAnnualRate) > 0 {
			return fmt.Errorf("reserve %s: %s exceeds plausible ceiling", r.ID, rate.name)
		}
	}

	params := []struct {
		name  string
		value *big.Int
	}{
		{"baseLTVasCollateral", r.BaseLTVasCollateral},
		{"reserveLiquidationThreshold", r.ReserveLiquidationThreshold},
		{"reserveFactor", r.ReserveFactor},
	}
	for _, param := range params {
		if param.value.Cmp(bpsMax) > 0 {
			return fmt.Errorf("reserve %s: %s above 10000 basis points", r.ID, param.name)
		}
	}

	if !opts.AllowZeroPrice && r.PriceInEth.Sign() == 0 {
		return fmt.Errorf("reserve %s: zero ETH price", r.ID)
	}

	if opts.RequireCollateralParams && r.UsageAsCollateralEnabled {
		if r.BaseLTVasCollateral.Sign() == 0 || r.ReserveLiquidationThreshold.Sign() == 0 {
			return fmt.Errorf("reserve %s: collateral enabled but parameters are zero", r.ID)
		}
	}

	return nil
}

// ValidatePosition checks a single user position snapshot.
func ValidatePosition(p *model.UserReservePosition, currentTimestamp int64) error {
	if p.ReserveID == "" {
		return errors.New("position has empty reserve id")
	}

	if p.StableBorrowLastUpdateTimestamp > currentTimestamp {
		return fmt.Errorf("position for reserve %s: stable debt update %d after evaluation timestamp %d",
			p.ReserveID, p.StableBorrowLastUpdateTimestamp, currentTimestamp)
	}

	if p.PrincipalStableDebt.Sign() > 0 && p.StableBorrowRate.Sign() == 0 {
		return fmt.Errorf("position for reserve %s: stable debt with zero stable rate", p.ReserveID)
	}

	return nil
}

// ValidateSnapshotSet validates everything an aggregation call consumes:
// the reserve set, the user's positions and the price feed. The first failure
// aborts; partial acceptance would let totals silently undercount.
func ValidateSnapshotSet(reserves []*model.ReserveSnapshot, positions []*model.UserReservePosition, usdPriceEth *big.Int, currentTimestamp int64, opts ValidationOptions) error {
	if usdPriceEth == nil || usdPriceEth.Sign() <= 0 {
		return errors.New("usd price of ETH must be positive")
	}

	for _, r := range reserves {
		if err := ValidateReserve(r, currentTimestamp, opts); err != nil {
			logrus.WithFields(logrus.Fields{
				"reserve": r.ID,
				"symbol":  r.Symbol,
			}).Debug("Rejected reserve snapshot")
			return err
		}
	}

	for _, p := range positions {
		if err := ValidatePosition(p, currentTimestamp); err != nil {
			return err
		}
	}

	return nil
}
