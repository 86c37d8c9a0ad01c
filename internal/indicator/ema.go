package indicator

import "github.com/shopspring/decimal"

// EMA is the exponential moving average over the whole series, seeded with the
// simple average of the first period closes and smoothed with k = 2/(period+1).
// Every smoothing step is rounded half-up to Scale digits.
//
// With fewer than period closes it returns the last close (zero for an empty series).
func EMA(closes []decimal.Decimal, period int) decimal.Decimal {
	n := len(closes)
	if n == 0 {
		return decimal.Zero
	}
	if period <= 0 || n < period {
		return closes[n-1]
	}

	ema := div(sum(closes[:period]), decimal.NewFromInt(int64(period)))
	k := div(two, decimal.NewFromInt(int64(period+1)))
	oneMinusK := decimal.NewFromInt(1).Sub(k)
	for i := period; i < n; i++ {
		ema = closes[i].Mul(k).Add(ema.Mul(oneMinusK)).Round(Scale)
	}
	return ema
}
