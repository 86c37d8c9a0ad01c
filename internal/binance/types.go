package binance

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Credentials is a decrypted API key pair.
type Credentials struct {
	APIKey    string
	SecretKey string
}

// Candle is a single kline. Binance sends it as a positional JSON array.
type Candle struct {
	OpenTime  int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime int64
}

func (c *Candle) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) < 7 {
		return fmt.Errorf("kline has %d fields, want at least 7", len(raw))
	}

	fields := []struct {
		raw json.RawMessage
		dst any
	}{
		{raw[0], &c.OpenTime},
		{raw[1], &c.Open},
		{raw[2], &c.High},
		{raw[3], &c.Low},
		{raw[4], &c.Close},
		{raw[5], &c.Volume},
		{raw[6], &c.CloseTime},
	}
	for i, f := range fields {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return fmt.Errorf("kline field %d: %w", i, err)
		}
	}
	return nil
}

// Balance is one asset entry of the account endpoint.
type Balance struct {
	Asset  string          `json:"asset"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
}

// AccountResponse is the subset of /api/v3/account the bot reads.
type AccountResponse struct {
	Balances []Balance `json:"balances"`
}

// ExchangeInfoResponse represents the response from the /exchangeInfo endpoint.
type ExchangeInfoResponse struct {
	Symbols []SymbolInfo `json:"symbols"`
}

// SymbolInfo contains information about a specific trading symbol.
type SymbolInfo struct {
	Symbol     string   `json:"symbol"`
	Status     string   `json:"status"`
	BaseAsset  string   `json:"baseAsset"`
	QuoteAsset string   `json:"quoteAsset"`
	Filters    []Filter `json:"filters"`
}

// Filter represents a single filter for a symbol.
// Only LOT_SIZE is interpreted.
type Filter struct {
	FilterType string `json:"filterType"`
	MinQty     string `json:"minQty,omitempty"`
	MaxQty     string `json:"maxQty,omitempty"`
	StepSize   string `json:"stepSize,omitempty"`
}

// FormatQuantity floors quantity to the LOT_SIZE step of the symbol and checks
// it against the minimum. Symbols without a usable LOT_SIZE filter return
// quantity unchanged.
func (s SymbolInfo) FormatQuantity(quantity decimal.Decimal) (decimal.Decimal, error) {
	var stepSize, minQtyStr string
	for _, filter := range s.Filters {
		if filter.FilterType == "LOT_SIZE" {
			stepSize = filter.StepSize
			minQtyStr = filter.MinQty
			break
		}
	}

	step, err := decimal.NewFromString(stepSize)
	if err != nil || step.Sign() <= 0 {
		return quantity, nil
	}
	minQty, err := decimal.NewFromString(minQtyStr)
	if err != nil {
		minQty = decimal.Zero
	}

	floored := quantity.Div(step).Floor().Mul(step)
	if floored.LessThan(minQty) || floored.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("quantity %s is below minQty %s for symbol %s", floored, minQty, s.Symbol)
	}
	return floored, nil
}

// OrderRequest describes an order to place. Null fields are not sent.
type OrderRequest struct {
	Symbol        string
	Side          string
	Type          string
	Quantity      decimal.Decimal
	Price         decimal.NullDecimal
	StopPrice     decimal.NullDecimal
	TrailingDelta decimal.NullDecimal
	TimeInForce   string
}

// OrderFill is one fill of an order placed with the FULL response type.
type OrderFill struct {
	Price           decimal.Decimal `json:"price"`
	Qty             decimal.Decimal `json:"qty"`
	Commission      decimal.Decimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
}

// OrderResponse represents the response from creating a new order.
type OrderResponse struct {
	Symbol              string          `json:"symbol"`
	OrderID             int64           `json:"orderId"`
	ClientOrderID       string          `json:"clientOrderId"`
	TransactTime        int64           `json:"transactTime"`
	Price               decimal.Decimal `json:"price"`
	OrigQuantity        decimal.Decimal `json:"origQty"`
	ExecutedQuantity    decimal.Decimal `json:"executedQty"`
	CummulativeQuoteQty decimal.Decimal `json:"cummulativeQuoteQty"`
	Status              string          `json:"status"`
	TimeInForce         string          `json:"timeInForce"`
	Type                string          `json:"type"`
	Side                string          `json:"side"`
	Fills               []OrderFill     `json:"fills"`
}

// ExecutedPrice is the average fill price when the order traded, otherwise
// the price the order was placed at (zero for unfilled market orders).
func (r *OrderResponse) ExecutedPrice() decimal.Decimal {
	if r.ExecutedQuantity.Sign() > 0 && r.CummulativeQuoteQty.Sign() > 0 {
		return r.CummulativeQuoteQty.DivRound(r.ExecutedQuantity, 8)
	}
	return r.Price
}

// Commission sums the commission of every fill, whatever the asset.
func (r *OrderResponse) Commission() decimal.Decimal {
	total := decimal.Zero
	for _, f := range r.Fills {
		total = total.Add(f.Commission)
	}
	return total
}
