package indicator

import "github.com/shopspring/decimal"

// Default Bollinger parameters.
const BollingerPeriod = 20

// BollingerMultiplier is the default band width in standard deviations.
var BollingerMultiplier = decimal.NewFromInt(2)

// Bands is a Bollinger envelope around the simple moving average.
type Bands struct {
	Middle decimal.Decimal
	Upper  decimal.Decimal
	Lower  decimal.Decimal
}

// Bollinger computes the bands over the last period closes with the population
// standard deviation. With fewer than period closes all bands are zero.
func Bollinger(closes []decimal.Decimal, period int, multiplier decimal.Decimal) Bands {
	n := len(closes)
	if period <= 0 || n < period {
		return Bands{Middle: decimal.Zero, Upper: decimal.Zero, Lower: decimal.Zero}
	}

	window := closes[n-period:]
	p := decimal.NewFromInt(int64(period))
	middle := div(sum(window), p)

	variance := decimal.Zero
	for _, c := range window {
		d := c.Sub(middle)
		variance = variance.Add(d.Mul(d))
	}
	variance = div(variance, p)

	width := Sqrt(variance).Mul(multiplier)
	return Bands{
		Middle: middle,
		Upper:  middle.Add(width),
		Lower:  middle.Sub(width),
	}
}
