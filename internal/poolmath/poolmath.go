// Package poolmath implements interest accrual and balance projection for
// lending-pool reserves: compound and linear growth factors, and the
// projection of stored principals to current underlying balances.
package poolmath

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/yourorg/lendpool-health-ea/internal/raymath"
	"github.com/yourorg/lendpool-health-ea/internal/types"
)

// ErrInvalidTimeOrdering is returned when currentTimestamp precedes the stored
// lastUpdateTimestamp. Negative elapsed time is a caller-contract violation and
// is never turned into a growth factor silently.
var ErrInvalidTimeOrdering = errors.New("poolmath: current timestamp before last update timestamp")

// CalculateCompoundedInterest returns the RAY-scaled compound growth factor for
// the period between lastUpdateTimestamp and currentTimestamp at the given
// annualized RAY rate. The annual rate is reduced to a per-second rate by
// truncating division, matching the reference protocol. Zero elapsed time
// yields exactly RAY.
//
// The model selects between the binomial approximation (production default)
// and exact binary exponentiation.
func CalculateCompoundedInterest(annualRate *big.Int, currentTimestamp, lastUpdateTimestamp int64, model types.AccrualModel) (*big.Int, error) {
	if currentTimestamp < lastUpdateTimestamp {
		return nil, fmt.Errorf("%w: current=%d last=%d", ErrInvalidTimeOrdering, currentTimestamp, lastUpdateTimestamp)
	}

	elapsed := big.NewInt(currentTimestamp - lastUpdateTimestamp)
	ratePerSecond := new(big.Int).Div(annualRate, raymath.SecondsPerYear)

	if model == types.ModelExact {
		base := new(big.Int).Add(raymath.RAY, ratePerSecond)
		return raymath.RayPow(base, elapsed), nil
	}

	return raymath.BinomialApproximatedRayPow(ratePerSecond, elapsed), nil
}

// CalculateLinearInterest returns the RAY-scaled linear growth factor
// RAY + rate*elapsed/secondsPerYear for the given period. The rate-time
// product is computed at full precision and the division truncates, so no
// intermediate rounding is introduced.
func CalculateLinearInterest(rate *big.Int, currentTimestamp, lastUpdateTimestamp int64) (*big.Int, error) {
	if currentTimestamp < lastUpdateTimestamp {
		return nil, fmt.Errorf("%w: current=%d last=%d", ErrInvalidTimeOrdering, currentTimestamp, lastUpdateTimestamp)
	}

	elapsed := big.NewInt(currentTimestamp - lastUpdateTimestamp)
	accrued := new(big.Int).Mul(rate, elapsed)
	accrued.Div(accrued, raymath.SecondsPerYear)

	return accrued.Add(raymath.RAY, accrued), nil
}

// GetCompoundedBalance projects a stored debt principal to its current value:
// the compound growth factor since lastUpdateTimestamp is applied to the stored
// index, and the cumulative index is then applied multiplicatively to the
// principal. The accrue-then-apply-index order is load-bearing: the cumulative
// index captures all growth since the position's index was last synced.
//
// A zero principal short-circuits to zero so rounding can never manufacture
// dust on an empty position.
func GetCompoundedBalance(principal, index, rate *big.Int, lastUpdateTimestamp, currentTimestamp int64, model types.AccrualModel) (*big.Int, error) {
	if principal.Sign() == 0 {
		return big.NewInt(0), nil
	}

	interest, err := CalculateCompoundedInterest(rate, currentTimestamp, lastUpdateTimestamp, model)
	if err != nil {
		return nil, err
	}

	cumulative := raymath.RayMul(interest, index)
	balanceRay := raymath.RayMul(raymath.WadToRay(principal), cumulative)

	return raymath.RayToWad(balanceRay), nil
}

// GetCompoundedStableBalance projects a stable-rate debt principal. It is the
// same computation as GetCompoundedBalance against a unit index: each stable
// position accrues independently at the rate locked in when the user borrowed,
// from that position's own last update timestamp.
func GetCompoundedStableBalance(principal, userStableRate *big.Int, lastUpdateTimestamp, currentTimestamp int64, model types.AccrualModel) (*big.Int, error) {
	if principal.Sign() == 0 {
		return big.NewInt(0), nil
	}

	interest, err := CalculateCompoundedInterest(userStableRate, currentTimestamp, lastUpdateTimestamp, model)
	if err != nil {
		return nil, err
	}

	balanceRay := raymath.RayMul(raymath.WadToRay(principal), interest)

	return raymath.RayToWad(balanceRay), nil
}

// GetLinearBalance projects a supply-side scaled balance tracked by the pool
// liquidity index, which accrues linearly rather than compounding per user.
// Same principal-then-index order as GetCompoundedBalance, composed with
// CalculateLinearInterest instead. The linear and compound entry points are
// not interchangeable: they serve different balance types.
func GetLinearBalance(balance, index, rate *big.Int, lastUpdateTimestamp, currentTimestamp int64) (*big.Int, error) {
	if balance.Sign() == 0 {
		return big.NewInt(0), nil
	}

	interest, err := CalculateLinearInterest(rate, currentTimestamp, lastUpdateTimestamp)
	if err != nil {
		return nil, err
	}

	cumulative := raymath.RayMul(interest, index)
	balanceRay := raymath.RayMul(raymath.WadToRay(balance), cumulative)

	return raymath.RayToWad(balanceRay), nil
}
