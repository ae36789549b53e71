package model

import (
	"github.com/yourorg/lendpool-health-ea/internal/normalize"
)

// EthDecimals is the WAD precision ETH-denominated aggregates are stored at.
const EthDecimals = 18

// usdDecimals mirrors summary.UsdDecimals; kept local to avoid an import cycle.
const usdDecimals = 10

// ComputedUserReserveResponse is the wire rendering of a ComputedUserReserve,
// every monetary field normalized to a decimal string.
type ComputedUserReserveResponse struct {
	ReserveID string `json:"reserveId"`
	Symbol    string `json:"symbol"`

	UnderlyingBalance    string `json:"underlyingBalance"`
	UnderlyingBalanceETH string `json:"underlyingBalanceETH"`
	UnderlyingBalanceUSD string `json:"underlyingBalanceUSD"`

	VariableBorrows    string `json:"variableBorrows"`
	VariableBorrowsETH string `json:"variableBorrowsETH"`
	VariableBorrowsUSD string `json:"variableBorrowsUSD"`

	StableBorrows    string `json:"stableBorrows"`
	StableBorrowsETH string `json:"stableBorrowsETH"`
	StableBorrowsUSD string `json:"stableBorrowsUSD"`

	TotalBorrows    string `json:"totalBorrows"`
	TotalBorrowsETH string `json:"totalBorrowsETH"`
	TotalBorrowsUSD string `json:"totalBorrowsUSD"`

	UsageAsCollateralEnabledOnUser bool `json:"usageAsCollateralEnabledOnUser"`
}

// UserSummaryResponse is the wire rendering of a UserSummary. HealthFactor is
// a decimal string, or the literal "-1" when the user has no debt.
type UserSummaryResponse struct {
	UserID string `json:"userId"`

	TotalLiquidityETH  string `json:"totalLiquidityETH"`
	TotalLiquidityUSD  string `json:"totalLiquidityUSD"`
	TotalCollateralETH string `json:"totalCollateralETH"`
	TotalCollateralUSD string `json:"totalCollateralUSD"`
	TotalBorrowsETH    string `json:"totalBorrowsETH"`
	TotalBorrowsUSD    string `json:"totalBorrowsUSD"`

	AvailableBorrowsETH         string `json:"availableBorrowsETH"`
	CurrentLoanToValue          string `json:"currentLoanToValue"`
	CurrentLiquidationThreshold string `json:"currentLiquidationThreshold"`
	HealthFactor                string `json:"healthFactor"`

	ReservesData []ComputedUserReserveResponse `json:"reservesData"`
}

// FormatComputedUserReserve normalizes a computed reserve into its wire shape.
// Underlying-unit balances shift by the reserve's own decimals, ETH values by
// WAD and USD values by the price-feed precision.
func FormatComputedUserReserve(c ComputedUserReserve) ComputedUserReserveResponse {
	return ComputedUserReserveResponse{
		ReserveID: c.ReserveID,
		Symbol:    c.Symbol,

		UnderlyingBalance:    normalize.Normalize(c.UnderlyingBalance, c.Decimals),
		UnderlyingBalanceETH: normalize.Normalize(c.UnderlyingBalanceETH, EthDecimals),
		UnderlyingBalanceUSD: normalize.Normalize(c.UnderlyingBalanceUSD, usdDecimals),

		VariableBorrows:    normalize.Normalize(c.VariableBorrows, c.Decimals),
		VariableBorrowsETH: normalize.Normalize(c.VariableBorrowsETH, EthDecimals),
		VariableBorrowsUSD: normalize.Normalize(c.VariableBorrowsUSD, usdDecimals),

		StableBorrows:    normalize.Normalize(c.StableBorrows, c.Decimals),
		StableBorrowsETH: normalize.Normalize(c.StableBorrowsETH, EthDecimals),
		StableBorrowsUSD: normalize.Normalize(c.StableBorrowsUSD, usdDecimals),

		TotalBorrows:    normalize.Normalize(c.TotalBorrows, c.Decimals),
		TotalBorrowsETH: normalize.Normalize(c.TotalBorrowsETH, EthDecimals),
		TotalBorrowsUSD: normalize.Normalize(c.TotalBorrowsUSD, usdDecimals),

		UsageAsCollateralEnabledOnUser: c.UsageAsCollateralEnabledOnUser,
	}
}

// FormatUserSummary normalizes a UserSummary into its wire shape.
func FormatUserSummary(s *UserSummary) UserSummaryResponse {
	healthFactor := "-1"
	if s.HealthFactor.Sign() >= 0 {
		healthFactor = normalize.Normalize(s.HealthFactor, EthDecimals)
	}

	reserves := make([]ComputedUserReserveResponse, 0, len(s.ReservesData))
	for _, c := range s.ReservesData {
		reserves = append(reserves, FormatComputedUserReserve(c))
	}

	return UserSummaryResponse{
		UserID: s.UserID,

		TotalLiquidityETH:  normalize.Normalize(s.TotalLiquidityETH, EthDecimals),
		TotalLiquidityUSD:  normalize.Normalize(s.TotalLiquidityUSD, usdDecimals),
		TotalCollateralETH: normalize.Normalize(s.TotalCollateralETH, EthDecimals),
		TotalCollateralUSD: normalize.Normalize(s.TotalCollateralUSD, usdDecimals),
		TotalBorrowsETH:    normalize.Normalize(s.TotalBorrowsETH, EthDecimals),
		TotalBorrowsUSD:    normalize.Normalize(s.TotalBorrowsUSD, usdDecimals),

		AvailableBorrowsETH:         normalize.Normalize(s.AvailableBorrowsETH, EthDecimals),
		CurrentLoanToValue:          s.CurrentLoanToValue.String(),
		CurrentLiquidationThreshold: s.CurrentLiquidationThreshold.String(),
		HealthFactor:                healthFactor,

		ReservesData: reserves,
	}
}
