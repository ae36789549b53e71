// Package types contains shared type definitions used across multiple packages
package types

// AccrualModel selects how compound interest growth factors are computed
type AccrualModel int

// Supported accrual models. Binomial is the production default; Exact exists
// as the reference implementation for regression comparison.
const (
	ModelBinomial AccrualModel = iota
	ModelExact
)

// String returns the configuration name of the accrual model
func (m AccrualModel) String() string {
	switch m {
	case ModelExact:
		return "exact"
	default:
		return "binomial"
	}
}

// ParseAccrualModel maps a configuration string to an AccrualModel,
// defaulting to the binomial approximation for unknown values.
func ParseAccrualModel(s string) AccrualModel {
	if s == "exact" {
		return ModelExact
	}
	return ModelBinomial
}
