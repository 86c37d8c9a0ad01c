package indicator

import "github.com/shopspring/decimal"

// Default MACD periods.
const (
	MACDFast   = 12
	MACDSlow   = 26
	MACDSignal = 9
)

// MACDResult is the last point of the MACD line, its signal line and their difference.
type MACDResult struct {
	Line      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// MACD computes the MACD of closes. The MACD line is evaluated on every
// prefix of closes to build its own series; the signal line is the EMA over
// the last signal points of that series.
func MACD(closes []decimal.Decimal, fast, slow, signal int) MACDResult {
	line := EMA(closes, fast).Sub(EMA(closes, slow))

	series := make([]decimal.Decimal, 0, len(closes))
	for i := range closes {
		prefix := closes[:i+1]
		series = append(series, EMA(prefix, fast).Sub(EMA(prefix, slow)))
	}
	if signal > 0 && len(series) > signal {
		series = series[len(series)-signal:]
	}

	signalLine := EMA(series, signal)
	return MACDResult{
		Line:      line,
		Signal:    signalLine,
		Histogram: line.Sub(signalLine),
	}
}
