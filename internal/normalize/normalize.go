// Package normalize renders raw fixed-point integers as human-readable decimal
// strings and provides a memoized power-of-ten table shared by the conversion
// paths.
package normalize

import (
	"math/big"
	"sync"

	"github.com/shopspring/decimal"
)

// pow10 memoizes 10^n values keyed by n. Powers of ten never change, so
// concurrent redundant computation would be harmless; the lock only protects
// the map structure itself.
var (
	pow10Mu sync.RWMutex
	pow10   = map[int]*big.Int{}
)

// Pow10 returns 10^n as a big integer. Results are cached; callers must not
// mutate the returned value.
func Pow10(n int) *big.Int {
	pow10Mu.RLock()
	v, ok := pow10[n]
	pow10Mu.RUnlock()
	if ok {
		return v
	}

	v = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)

	pow10Mu.Lock()
	pow10[n] = v
	pow10Mu.Unlock()

	return v
}

// Normalize divides a raw fixed-point integer by 10^decimals and renders it as
// a base-10 decimal string with no information loss. The shift is exact: no
// floating point is involved at any step.
func Normalize(raw *big.Int, decimals int) string {
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// Denormalize parses a decimal string and scales it up by 10^decimals into a
// raw integer, truncating any fractional remainder beyond the given precision.
func Denormalize(value string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, err
	}
	shifted := d.Mul(decimal.NewFromBigInt(Pow10(decimals), 0)).Truncate(0)
	return shifted.BigInt(), nil
}
