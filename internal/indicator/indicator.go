// Package indicator computes the technical indicators the bot trades on.
//
// Every function works on closing prices ordered oldest to newest, in fixed
// point: divisions are rounded half-up to Scale fractional digits. Degenerate
// inputs (too few closes, zero losses, zero variance) produce defined values
// instead of errors.
package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept by every division.
const Scale int32 = 8

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

func div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, Scale)
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// SMA is the simple average of the last period closes, or of all of them if
// there are fewer.
func SMA(closes []decimal.Decimal, period int) decimal.Decimal {
	if len(closes) == 0 || period <= 0 {
		return decimal.Zero
	}
	if period > len(closes) {
		period = len(closes)
	}
	window := closes[len(closes)-period:]
	return div(sum(window), decimal.NewFromInt(int64(period)))
}

// Sqrt returns the square root of value to Scale digits using Newton-Raphson,
// seeded from the float64 estimate. Zero and negative values yield zero.
func Sqrt(value decimal.Decimal) decimal.Decimal {
	if value.Sign() <= 0 {
		return decimal.Zero
	}

	x1 := decimal.NewFromFloat(math.Sqrt(value.InexactFloat64()))
	if x1.Sign() <= 0 {
		x1 = value
	}

	const maxIterations = 100
	for i := 0; i < maxIterations; i++ {
		x0 := x1
		x1 = div(div(value, x0).Add(x0), two)
		if x1.Equal(x0) {
			break
		}
	}
	return x1
}
