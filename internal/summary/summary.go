// Package summary folds per-reserve projected balances into portfolio-level
// aggregates: total liquidity, collateral and borrows, collateral-weighted
// loan-to-value and liquidation threshold, available borrow power and the
// health factor.
package summary

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/lendpool-health-ea/internal/model"
	"github.com/yourorg/lendpool-health-ea/internal/normalize"
	"github.com/yourorg/lendpool-health-ea/internal/poolmath"
	"github.com/yourorg/lendpool-health-ea/internal/raymath"
	"github.com/yourorg/lendpool-health-ea/internal/types"
)

// UsdDecimals is the precision of the ETH/USD price feed supplied alongside
// the snapshots.
const UsdDecimals = 10

// bpsScale is the basis-point base that LTV and liquidation-threshold
// parameters are expressed in (10000 == 100%).
var bpsScale = big.NewInt(10000)

// ErrReserveNotRegistered is returned when a user position references a
// reserve absent from the supplied reserve set. The aggregation fails as a
// whole: silently skipping the position would undercount debt or collateral.
var ErrReserveNotRegistered = errors.New("summary: position references unregistered reserve")

// HealthFactorNoDebt is the sentinel returned when total borrows are zero and
// the health factor is conceptually infinite. It is an out-of-band signal, not
// a fixed-point quantity.
var HealthFactorNoDebt = big.NewInt(-1)

// Options configures an aggregation run
type Options struct {
	// AccrualModel selects the compound-interest variant for debt projection
	AccrualModel types.AccrualModel
}

// DefaultOptions returns the production configuration: binomial accrual.
func DefaultOptions() Options {
	return Options{AccrualModel: types.ModelBinomial}
}

// ComputeUserReserveData projects one user position in one reserve to the
// supplied timestamp and expresses each balance in underlying units, ETH and
// USD. The USD figures are truncated towards zero independently per balance,
// so the borrow total in USD adds two already-truncated values.
func ComputeUserReserveData(reserve *model.ReserveSnapshot, position *model.UserReservePosition, usdPriceEth *big.Int, currentTimestamp int64, accrual types.AccrualModel) (model.ComputedUserReserve, error) {
	var out model.ComputedUserReserve

	underlying, err := poolmath.GetLinearBalance(
		position.ScaledATokenBalance,
		reserve.LiquidityIndex,
		reserve.LiquidityRate,
		reserve.LastUpdateTimestamp,
		currentTimestamp,
	)
	if err != nil {
		return out, fmt.Errorf("supply balance for reserve %s: %w", reserve.ID, err)
	}

	variableDebt, err := poolmath.GetCompoundedBalance(
		position.ScaledVariableDebt,
		reserve.VariableBorrowIndex,
		reserve.VariableBorrowRate,
		reserve.LastUpdateTimestamp,
		currentTimestamp,
		accrual,
	)
	if err != nil {
		return out, fmt.Errorf("variable debt for reserve %s: %w", reserve.ID, err)
	}

	stableDebt, err := poolmath.GetCompoundedStableBalance(
		position.PrincipalStableDebt,
		position.StableBorrowRate,
		position.StableBorrowLastUpdateTimestamp,
		currentTimestamp,
		accrual,
	)
	if err != nil {
		return out, fmt.Errorf("stable debt for reserve %s: %w", reserve.ID, err)
	}

	out = model.ComputedUserReserve{
		ReserveID:                      reserve.ID,
		Symbol:                         reserve.Symbol,
		Decimals:                       reserve.Decimals,
		UnderlyingBalance:              underlying,
		VariableBorrows:                variableDebt,
		StableBorrows:                  stableDebt,
		TotalBorrows:                   new(big.Int).Add(variableDebt, stableDebt),
		UsageAsCollateralEnabledOnUser: position.UsageAsCollateralEnabledOnUser,
	}

	out.UnderlyingBalanceETH = underlyingToEth(underlying, reserve)
	out.VariableBorrowsETH = underlyingToEth(variableDebt, reserve)
	out.StableBorrowsETH = underlyingToEth(stableDebt, reserve)
	out.TotalBorrowsETH = new(big.Int).Add(out.VariableBorrowsETH, out.StableBorrowsETH)

	out.UnderlyingBalanceUSD = ethToUsd(out.UnderlyingBalanceETH, usdPriceEth)
	out.VariableBorrowsUSD = ethToUsd(out.VariableBorrowsETH, usdPriceEth)
	out.StableBorrowsUSD = ethToUsd(out.StableBorrowsETH, usdPriceEth)
	out.TotalBorrowsUSD = new(big.Int).Add(out.VariableBorrowsUSD, out.StableBorrowsUSD)

	return out, nil
}

// ComputeRawUserSummaryData aggregates all of a user's positions against the
// supplied reserve set at one timestamp. Every position's supply contributes
// to total liquidity and every debt to total borrows unconditionally;
// collateral, LTV and liquidation-threshold weighting only accumulate when
// both the reserve and the position have collateral usage enabled.
func ComputeRawUserSummaryData(reserves []*model.ReserveSnapshot, positions []*model.UserReservePosition, userID string, usdPriceEth *big.Int, currentTimestamp int64, opts Options) (*model.UserSummary, error) {
	byID := make(map[string]*model.ReserveSnapshot, len(reserves))
	for _, r := range reserves {
		byID[r.ID] = r
	}

	var (
		totalLiquidityETH  = big.NewInt(0)
		totalCollateralETH = big.NewInt(0)
		totalBorrowsETH    = big.NewInt(0)
		weightedLtv        = big.NewInt(0)
		weightedThreshold  = big.NewInt(0)
	)

	computed := make([]model.ComputedUserReserve, 0, len(positions))
	for _, pos := range positions {
		reserve, ok := byID[pos.ReserveID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrReserveNotRegistered, pos.ReserveID)
		}

		cur, err := ComputeUserReserveData(reserve, pos, usdPriceEth, currentTimestamp, opts.AccrualModel)
		if err != nil {
			return nil, err
		}

		totalLiquidityETH.Add(totalLiquidityETH, cur.UnderlyingBalanceETH)
		totalBorrowsETH.Add(totalBorrowsETH, cur.TotalBorrowsETH)

		if reserve.UsageAsCollateralEnabled && pos.UsageAsCollateralEnabledOnUser {
			totalCollateralETH.Add(totalCollateralETH, cur.UnderlyingBalanceETH)
			weightedLtv.Add(weightedLtv, new(big.Int).Mul(cur.UnderlyingBalanceETH, reserve.BaseLTVasCollateral))
			weightedThreshold.Add(weightedThreshold, new(big.Int).Mul(cur.UnderlyingBalanceETH, reserve.ReserveLiquidationThreshold))
		}

		computed = append(computed, cur)
	}

	// Collateral-weighted average parameters, truncated to whole basis points.
	currentLtv := big.NewInt(0)
	currentThreshold := big.NewInt(0)
	if totalCollateralETH.Sign() > 0 {
		currentLtv.Div(weightedLtv, totalCollateralETH)
		currentThreshold.Div(weightedThreshold, totalCollateralETH)
	}

	healthFactor := CalculateHealthFactorFromBalances(totalCollateralETH, totalBorrowsETH, currentThreshold)
	availableBorrows := CalculateAvailableBorrowsETH(totalCollateralETH, totalBorrowsETH, currentLtv)

	sort.SliceStable(computed, func(i, j int) bool {
		return computed[i].Symbol < computed[j].Symbol
	})

	logrus.WithFields(logrus.Fields{
		"user":          userID,
		"positions":     len(positions),
		"total_borrows": totalBorrowsETH.String(),
		"health_factor": healthFactor.String(),
		"accrual_model": opts.AccrualModel.String(),
		"current_ltv":   currentLtv.String(),
	}).Debug("Computed user summary")

	return &model.UserSummary{
		UserID:                      userID,
		TotalLiquidityETH:           totalLiquidityETH,
		TotalLiquidityUSD:           ethToUsd(totalLiquidityETH, usdPriceEth),
		TotalCollateralETH:          totalCollateralETH,
		TotalCollateralUSD:          ethToUsd(totalCollateralETH, usdPriceEth),
		TotalBorrowsETH:             totalBorrowsETH,
		TotalBorrowsUSD:             ethToUsd(totalBorrowsETH, usdPriceEth),
		AvailableBorrowsETH:         availableBorrows,
		CurrentLoanToValue:          currentLtv,
		CurrentLiquidationThreshold: currentThreshold,
		HealthFactor:                healthFactor,
		ReservesData:                computed,
	}, nil
}

// CalculateHealthFactorFromBalances computes the WAD-scaled health factor
// collateral * threshold / 10^4 / borrows. When total borrows are zero the
// factor is undefined and the -1 sentinel is returned; division by zero is
// never attempted. A result below WAD marks the position liquidatable, which
// is a domain fact for the caller, not an error.
func CalculateHealthFactorFromBalances(totalCollateralETH, totalBorrowsETH, liquidationThreshold *big.Int) *big.Int {
	if totalBorrowsETH.Sign() == 0 {
		return new(big.Int).Set(HealthFactorNoDebt)
	}

	weighted := new(big.Int).Mul(totalCollateralETH, liquidationThreshold)
	weighted.Div(weighted, bpsScale)

	return raymath.WadDiv(weighted, totalBorrowsETH)
}

// CalculateAvailableBorrowsETH returns the remaining borrow power in ETH:
// collateral scaled by the current LTV, minus existing borrows, clamped at
// zero. A zero LTV means no borrow power regardless of collateral.
func CalculateAvailableBorrowsETH(totalCollateralETH, totalBorrowsETH, currentLtv *big.Int) *big.Int {
	if currentLtv.Sign() == 0 {
		return big.NewInt(0)
	}

	available := new(big.Int).Mul(totalCollateralETH, currentLtv)
	available.Div(available, bpsScale)
	available.Sub(available, totalBorrowsETH)
	if available.Sign() < 0 {
		return big.NewInt(0)
	}

	return available
}

// underlyingToEth converts an underlying-unit balance to its WAD ETH value via
// the reserve's price feed, truncating.
func underlyingToEth(balance *big.Int, reserve *model.ReserveSnapshot) *big.Int {
	v := new(big.Int).Mul(balance, reserve.PriceInEth)
	return v.Div(v, normalize.Pow10(reserve.Decimals))
}

// ethToUsd converts a WAD ETH value to USD at the supplied feed price,
// truncating towards zero.
func ethToUsd(balanceETH, usdPriceEth *big.Int) *big.Int {
	v := new(big.Int).Mul(balanceETH, normalize.Pow10(UsdDecimals))
	return v.Div(v, usdPriceEth)
}
