package fmath

import (
	"math"
	"time"
)

// Money quantities in this system are float64. "Effectively zero"
// decisions go through the epsilon comparisons below rather than exact
// equality.

// Epsilon is the float64 machine epsilon (2^-52).
const Epsilon = 2.220446049250313e-16

// HoursPerYear uses a 364.25-day year as the day-count convention for
// interest accrual.
const HoursPerYear = 24.0 * 364.25

// ApproxEqual reports whether a and b are equal under an epsilon-relative
// comparison. Values of opposite sign are never considered equal.
func ApproxEqual(a, b float64) bool {
	if a == b {
		return true
	}
	sameSign := math.Signbit(a) == math.Signbit(b)
	diff := math.Abs(a-b) / math.Min(math.Abs(a)+math.Abs(b), math.MaxFloat64)
	return sameSign && diff < Epsilon
}

// ApproxZero reports whether x is within machine epsilon of zero. The
// comparison is absolute; relative to zero every nonzero value is far.
func ApproxZero(x float64) bool {
	return math.Abs(x) < Epsilon
}

// YearFraction converts an elapsed duration into a fraction of a year
// under the fixed day-count convention.
func YearFraction(d time.Duration) float64 {
	return d.Hours() / HoursPerYear
}
