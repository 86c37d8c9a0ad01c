package indicator

import "github.com/shopspring/decimal"

// RSI is the Relative Strength Index over the last period price changes,
// using simple averages of gains and losses.
//
// With period or fewer closes it returns 0; with no losses in the window it returns 100.
func RSI(closes []decimal.Decimal, period int) decimal.Decimal {
	n := len(closes)
	if period <= 0 || n <= period {
		return decimal.Zero
	}

	gainSum := decimal.Zero
	lossSum := decimal.Zero
	for i := n - period; i < n; i++ {
		change := closes[i].Sub(closes[i-1])
		if change.Sign() > 0 {
			gainSum = gainSum.Add(change)
		} else {
			lossSum = lossSum.Add(change.Abs())
		}
	}

	p := decimal.NewFromInt(int64(period))
	avgGain := div(gainSum, p)
	avgLoss := div(lossSum, p)
	if avgLoss.IsZero() {
		return hundred
	}

	rs := div(avgGain, avgLoss)
	return hundred.Sub(div(hundred, decimal.NewFromInt(1).Add(rs)))
}
