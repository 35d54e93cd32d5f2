package money

import (
	"math"

	"github.com/tkamdem/livrazone/pkg/apperr"
)

// Amounts are carried as int64 franc units everywhere inside the process.
// Decimal rounding only happens at the SQL boundary, where API callers may
// have supplied fractional JSON numbers.

// Round2 rounds to two decimals, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Normalize validates and rounds a monetary value supplied by a caller.
// Negative values are rejected.
func Normalize(v float64) (int64, error) {
	if v < 0 {
		return 0, apperr.New(apperr.InvalidArgument, "monetary value cannot be negative")
	}
	return int64(math.Round(Round2(v))), nil
}

// NormalizePtr is Normalize for optional request fields.
func NormalizePtr(v *float64) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	n, err := Normalize(*v)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Max0 clamps a computed amount at zero. Payment recomputations subtract
// fees and must never persist a negative amount.
func Max0(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
