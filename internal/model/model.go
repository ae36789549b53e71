// Package model defines the core data structures for the lendpool-health-ea:
// wire-level snapshot shapes with base-10 integer-string numerics, their parsed
// big-integer counterparts, and the computed per-reserve and portfolio outputs.
package model

import (
	"fmt"
	"math/big"
)

// ReserveData is the wire shape of one lending-pool reserve snapshot as
// supplied by the off-chain indexer. All rate, index and price fields are
// arbitrary-precision base-10 integer strings; collateral parameters are
// basis-point integers encoded the same way.
type ReserveData struct {
	// ID is the unique identifier of the reserve market
	ID string `json:"id"`

	// Symbol of the underlying asset, used for display and result ordering
	Symbol string `json:"symbol"`

	// Decimals is the precision of the underlying asset
	Decimals int `json:"decimals"`

	// LiquidityIndex is the RAY-scaled cumulative supply-interest accumulator
	LiquidityIndex string `json:"liquidityIndex"`

	// LiquidityRate is the RAY-scaled annualized supply rate
	LiquidityRate string `json:"liquidityRate"`

	// VariableBorrowIndex is the RAY-scaled cumulative variable-debt accumulator
	VariableBorrowIndex string `json:"variableBorrowIndex"`

	// VariableBorrowRate is the RAY-scaled annualized variable borrow rate
	VariableBorrowRate string `json:"variableBorrowRate"`

	// LastUpdateTimestamp is the Unix time the indices were last synced on-chain
	LastUpdateTimestamp int64 `json:"lastUpdateTimestamp"`

	// Collateral parameters, basis-point integers (10000 == 100%)
	BaseLTVasCollateral         string `json:"baseLTVasCollateral"`
	ReserveLiquidationThreshold string `json:"reserveLiquidationThreshold"`
	ReserveLiquidationBonus     string `json:"reserveLiquidationBonus"`
	ReserveFactor               string `json:"reserveFactor"`

	// UsageAsCollateralEnabled gates collateral accumulation at the reserve level
	UsageAsCollateralEnabled bool `json:"usageAsCollateralEnabled"`

	// PriceInEth is the WAD-like fixed-point price of one underlying unit in ETH
	PriceInEth string `json:"priceInEth"`

	// Stable-debt aggregates, used for pool-level utilization only
	AverageStableRate             string `json:"averageStableRate"`
	TotalPrincipalStableDebt      string `json:"totalPrincipalStableDebt"`
	StableDebtLastUpdateTimestamp int64  `json:"stableDebtLastUpdateTimestamp"`
}

// UserReserveData is the wire shape of one user's position in one reserve.
type UserReserveData struct {
	// ReserveID joins the position to its reserve; never used for ownership
	ReserveID string `json:"reserveId"`

	// Symbol mirrors the reserve symbol for display convenience
	Symbol string `json:"symbol,omitempty"`

	// ScaledATokenBalance is the supply-side principal, index-scaled
	ScaledATokenBalance string `json:"scaledATokenBalance"`

	// ScaledVariableDebt is the variable-borrow principal, index-scaled
	ScaledVariableDebt string `json:"scaledVariableDebt"`

	// PrincipalStableDebt and the locked-in user stable rate
	PrincipalStableDebt string `json:"principalStableDebt"`
	StableBorrowRate    string `json:"stableBorrowRate"`

	// StableBorrowLastUpdateTimestamp is when this user's stable debt last synced
	StableBorrowLastUpdateTimestamp int64 `json:"stableBorrowLastUpdateTimestamp"`

	// UsageAsCollateralEnabledOnUser gates collateral accumulation per position
	UsageAsCollateralEnabledOnUser bool `json:"usageAsCollateralEnabledOnUser"`
}

// ReserveSnapshot is the parsed, immutable big-integer view of ReserveData.
// It is constructed once at the boundary; nothing mutates it afterwards.
type ReserveSnapshot struct {
	ID                            string
	Symbol                        string
	Decimals                      int
	LiquidityIndex                *big.Int
	LiquidityRate                 *big.Int
	VariableBorrowIndex           *big.Int
	VariableBorrowRate            *big.Int
	LastUpdateTimestamp           int64
	BaseLTVasCollateral           *big.Int
	ReserveLiquidationThreshold   *big.Int
	ReserveLiquidationBonus       *big.Int
	ReserveFactor                 *big.Int
	UsageAsCollateralEnabled      bool
	PriceInEth                    *big.Int
	AverageStableRate             *big.Int
	TotalPrincipalStableDebt      *big.Int
	StableDebtLastUpdateTimestamp int64
}

// UserReservePosition is the parsed big-integer view of UserReserveData.
type UserReservePosition struct {
	ReserveID                       string
	ScaledATokenBalance             *big.Int
	ScaledVariableDebt              *big.Int
	PrincipalStableDebt             *big.Int
	StableBorrowRate                *big.Int
	StableBorrowLastUpdateTimestamp int64
	UsageAsCollateralEnabledOnUser  bool
}

// ComputedUserReserve is a UserReservePosition joined with its reserve and
// projected to the supplied timestamp: current balances in underlying units,
// ETH equivalent and USD equivalent. Derived on every call, never persisted.
type ComputedUserReserve struct {
	ReserveID string
	Symbol    string
	Decimals  int

	UnderlyingBalance    *big.Int
	UnderlyingBalanceETH *big.Int
	UnderlyingBalanceUSD *big.Int

	VariableBorrows    *big.Int
	VariableBorrowsETH *big.Int
	VariableBorrowsUSD *big.Int

	StableBorrows    *big.Int
	StableBorrowsETH *big.Int
	StableBorrowsUSD *big.Int

	// TotalBorrows sums variable and stable at each representation
	// independently; the USD total therefore adds two truncated values and may
	// differ by one minimal unit from truncating the exact sum. Accepted.
	TotalBorrows    *big.Int
	TotalBorrowsETH *big.Int
	TotalBorrowsUSD *big.Int

	UsageAsCollateralEnabledOnUser bool
}

// UserSummary is the portfolio aggregate for one user at one timestamp.
// Monetary fields are ETH-denominated WAD values unless suffixed USD;
// CurrentLoanToValue and CurrentLiquidationThreshold are collateral-weighted
// basis-point averages. HealthFactor is WAD-scaled, with -1 as the no-debt
// sentinel.
type UserSummary struct {
	UserID string

	TotalLiquidityETH  *big.Int
	TotalLiquidityUSD  *big.Int
	TotalCollateralETH *big.Int
	TotalCollateralUSD *big.Int
	TotalBorrowsETH    *big.Int
	TotalBorrowsUSD    *big.Int

	AvailableBorrowsETH         *big.Int
	CurrentLoanToValue          *big.Int
	CurrentLiquidationThreshold *big.Int
	HealthFactor                *big.Int

	// ReservesData is ordered by reserve symbol ascending, stable on ties
	ReservesData []ComputedUserReserve
}

// parseBigInt parses a non-negative base-10 integer string.
func parseBigInt(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("model: invalid integer string for %s: %q", field, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("model: negative value for %s: %q", field, s)
	}
	return v, nil
}

// ParseReserveSnapshot parses a wire ReserveData into its big-integer form.
// Parsing happens once here; the rest of the pipeline only sees *big.Int.
func ParseReserveSnapshot(raw ReserveData) (*ReserveSnapshot, error) {
	snap := &ReserveSnapshot{
		ID:                            raw.ID,
		Symbol:                        raw.Symbol,
		Decimals:                      raw.Decimals,
		LastUpdateTimestamp:           raw.LastUpdateTimestamp,
		UsageAsCollateralEnabled:      raw.UsageAsCollateralEnabled,
		StableDebtLastUpdateTimestamp: raw.StableDebtLastUpdateTimestamp,
	}

	fields := []struct {
		name string
		src  string
		dst  **big.Int
	}{
		{"liquidityIndex", raw.LiquidityIndex, &snap.LiquidityIndex},
		{"liquidityRate", raw.LiquidityRate, &snap.LiquidityRate},
		{"variableBorrowIndex", raw.VariableBorrowIndex, &snap.VariableBorrowIndex},
		{"variableBorrowRate", raw.VariableBorrowRate, &snap.VariableBorrowRate},
		{"baseLTVasCollateral", raw.BaseLTVasCollateral, &snap.BaseLTVasCollateral},
		{"reserveLiquidationThreshold", raw.ReserveLiquidationThreshold, &snap.ReserveLiquidationThreshold},
		{"reserveLiquidationBonus", raw.ReserveLiquidationBonus, &snap.ReserveLiquidationBonus},
		{"reserveFactor", raw.ReserveFactor, &snap.ReserveFactor},
		{"priceInEth", raw.PriceInEth, &snap.PriceInEth},
		{"averageStableRate", raw.AverageStableRate, &snap.AverageStableRate},
		{"totalPrincipalStableDebt", raw.TotalPrincipalStableDebt, &snap.TotalPrincipalStableDebt},
	}

	for _, f := range fields {
		v, err := parseBigInt(f.name, f.src)
		if err != nil {
			return nil, fmt.Errorf("reserve %s: %w", raw.ID, err)
		}
		*f.dst = v
	}

	return snap, nil
}

// ParseUserReservePosition parses a wire UserReserveData into its big-integer
// form.
func ParseUserReservePosition(raw UserReserveData) (*UserReservePosition, error) {
	pos := &UserReservePosition{
		ReserveID:                       raw.ReserveID,
		StableBorrowLastUpdateTimestamp: raw.StableBorrowLastUpdateTimestamp,
		UsageAsCollateralEnabledOnUser:  raw.UsageAsCollateralEnabledOnUser,
	}

	fields := []struct {
		name string
		src  string
		dst  **big.Int
	}{
		{"scaledATokenBalance", raw.ScaledATokenBalance, &pos.ScaledATokenBalance},
		{"scaledVariableDebt", raw.ScaledVariableDebt, &pos.ScaledVariableDebt},
		{"principalStableDebt", raw.PrincipalStableDebt, &pos.PrincipalStableDebt},
		{"stableBorrowRate", raw.StableBorrowRate, &pos.StableBorrowRate},
	}

	for _, f := range fields {
		v, err := parseBigInt(f.name, f.src)
		if err != nil {
			return nil, fmt.Errorf("position for reserve %s: %w", raw.ReserveID, err)
		}
		*f.dst = v
	}

	return pos, nil
}
