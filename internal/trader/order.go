package trader

import (
	"fmt"
	"strings"

	"binance-signal-bot-go/internal/binance"
	"binance-signal-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// OrderType is the order type a user picks for entries.
type OrderType int

const (
	OrderTypeMarket OrderType = iota + 1
	OrderTypeLimit
	OrderTypeStopLimit
	OrderTypeLimitMaker
	OrderTypeTrailingStop
)

var orderTypeNames = map[string]OrderType{
	"MARKET":        OrderTypeMarket,
	"LIMIT":         OrderTypeLimit,
	"STOP-LIMIT":    OrderTypeStopLimit,
	"LIMIT MAKER":   OrderTypeLimitMaker,
	"TRAILING STOP": OrderTypeTrailingStop,

	// Binance wire names are accepted as well.
	binance.OrderTypeStopLossLimit:      OrderTypeStopLimit,
	binance.OrderTypeLimitMaker:         OrderTypeLimitMaker,
	binance.OrderTypeTrailingStopMarket: OrderTypeTrailingStop,
}

// ParseOrderType maps a settings value to an OrderType, ignoring case and
// surrounding blanks.
func ParseOrderType(s string) (OrderType, error) {
	t, ok := orderTypeNames[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, &ValidationError{Field: "order_type", Reason: fmt.Sprintf("unknown value %q", s)}
	}
	return t, nil
}

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeStopLimit:
		return "STOP-LIMIT"
	case OrderTypeLimitMaker:
		return "LIMIT MAKER"
	case OrderTypeTrailingStop:
		return "TRAILING STOP"
	}
	return "UNKNOWN"
}

// WireType is the type sent to Binance.
func (t OrderType) WireType() string {
	switch t {
	case OrderTypeMarket:
		return binance.OrderTypeMarket
	case OrderTypeLimit:
		return binance.OrderTypeLimit
	case OrderTypeStopLimit:
		return binance.OrderTypeStopLossLimit
	case OrderTypeLimitMaker:
		return binance.OrderTypeLimitMaker
	case OrderTypeTrailingStop:
		return binance.OrderTypeTrailingStopMarket
	}
	return ""
}

// BuildOrder turns the user's settings into an order for quantity, checking
// that every field the order type needs is set.
func BuildOrder(settings *models.BotSettings, side string, quantity decimal.Decimal) (binance.OrderRequest, error) {
	t, err := ParseOrderType(settings.OrderType)
	if err != nil {
		return binance.OrderRequest{}, err
	}
	if quantity.Sign() <= 0 {
		return binance.OrderRequest{}, &ValidationError{OrderType: t.String(), Field: "quantity", Reason: "must be positive"}
	}

	order := binance.OrderRequest{
		Symbol:   settings.TradingPair,
		Side:     side,
		Type:     t.WireType(),
		Quantity: quantity,
	}

	missing := func(field string) error {
		return &ValidationError{OrderType: t.String(), Field: field, Reason: "is required"}
	}

	switch t {
	case OrderTypeMarket:
	case OrderTypeLimit, OrderTypeLimitMaker:
		if !settings.LimitPrice.Valid {
			return binance.OrderRequest{}, missing("limit_price")
		}
		order.Price = settings.LimitPrice
		if t == OrderTypeLimit {
			order.TimeInForce = binance.TimeInForceGTC
		}
	case OrderTypeStopLimit:
		if !settings.LimitPrice.Valid {
			return binance.OrderRequest{}, missing("limit_price")
		}
		if !settings.StopPrice.Valid {
			return binance.OrderRequest{}, missing("stop_price")
		}
		order.Price = settings.LimitPrice
		order.StopPrice = settings.StopPrice
		order.TimeInForce = binance.TimeInForceGTC
	case OrderTypeTrailingStop:
		if !settings.TrailingDelta.Valid {
			return binance.OrderRequest{}, missing("trailing_delta")
		}
		order.TrailingDelta = settings.TrailingDelta
	default:
		return binance.OrderRequest{}, &ValidationError{Field: "order_type", Reason: "unsupported"}
	}
	return order, nil
}

// closeOrder is the market sell that exits a position.
func closeOrder(trade *models.BotTrade) binance.OrderRequest {
	return binance.OrderRequest{
		Symbol:   trade.Symbol,
		Side:     binance.SideSell,
		Type:     OrderTypeMarket.WireType(),
		Quantity: trade.Amount,
	}
}
