package indicator

import "github.com/shopspring/decimal"

// Params selects the periods used by Compute.
type Params struct {
	RSIPeriod           int
	MACDFast            int
	MACDSlow            int
	MACDSignal          int
	BollingerPeriod     int
	BollingerMultiplier decimal.Decimal
}

// DefaultParams returns the standard periods with the given RSI lookback.
func DefaultParams(rsiPeriod int) Params {
	return Params{
		RSIPeriod:           rsiPeriod,
		MACDFast:            MACDFast,
		MACDSlow:            MACDSlow,
		MACDSignal:          MACDSignal,
		BollingerPeriod:     BollingerPeriod,
		BollingerMultiplier: BollingerMultiplier,
	}
}

// Snapshot is the indicator state of a price series at its last close.
type Snapshot struct {
	LastPrice decimal.Decimal
	RSI       decimal.Decimal
	MACD      MACDResult
	Bollinger Bands
}

// Compute evaluates every indicator on closes.
func Compute(closes []decimal.Decimal, p Params) Snapshot {
	last := decimal.Zero
	if len(closes) > 0 {
		last = closes[len(closes)-1]
	}
	return Snapshot{
		LastPrice: last,
		RSI:       RSI(closes, p.RSIPeriod),
		MACD:      MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal),
		Bollinger: Bollinger(closes, p.BollingerPeriod, p.BollingerMultiplier),
	}
}
