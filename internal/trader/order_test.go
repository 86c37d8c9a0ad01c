package trader

import (
	"errors"
	"testing"

	"binance-signal-bot-go/internal/binance"
	"binance-signal-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestParseOrderType(t *testing.T) {
	testCases := []struct {
		input    string
		expected OrderType
	}{
		{"MARKET", OrderTypeMarket},
		{"limit", OrderTypeLimit},
		{"STOP-LIMIT", OrderTypeStopLimit},
		{" limit maker ", OrderTypeLimitMaker},
		{"TRAILING STOP", OrderTypeTrailingStop},
		{"STOP_LOSS_LIMIT", OrderTypeStopLimit},
		{"TRAILING_STOP_MARKET", OrderTypeTrailingStop},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseOrderType(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	t.Run("Unknown", func(t *testing.T) {
		_, err := ParseOrderType("ICEBERG")

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "order_type", vErr.Field)
	})
}

func TestOrderTypeWireType(t *testing.T) {
	assert.Equal(t, binance.OrderTypeMarket, OrderTypeMarket.WireType())
	assert.Equal(t, binance.OrderTypeLimit, OrderTypeLimit.WireType())
	assert.Equal(t, binance.OrderTypeStopLossLimit, OrderTypeStopLimit.WireType())
	assert.Equal(t, binance.OrderTypeLimitMaker, OrderTypeLimitMaker.WireType())
	assert.Equal(t, binance.OrderTypeTrailingStopMarket, OrderTypeTrailingStop.WireType())
	assert.Equal(t, "LIMIT MAKER", OrderTypeLimitMaker.String())
}

func TestBuildOrder(t *testing.T) {
	qty := decimal.RequireFromString("0.5")

	testCases := []struct {
		name          string
		settings      models.BotSettings
		missingField  string
		expectedType  string
		expectedTIF   string
		expectPrice   bool
		expectStop    bool
		expectTrailer bool
	}{
		{
			name:         "Market",
			settings:     models.BotSettings{OrderType: "MARKET"},
			expectedType: binance.OrderTypeMarket,
		},
		{
			name:         "LimitWithPrice",
			settings:     models.BotSettings{OrderType: "LIMIT", LimitPrice: nd("99.5")},
			expectedType: binance.OrderTypeLimit,
			expectedTIF:  binance.TimeInForceGTC,
			expectPrice:  true,
		},
		{
			name:         "LimitWithoutPrice",
			settings:     models.BotSettings{OrderType: "LIMIT"},
			missingField: "limit_price",
		},
		{
			name:         "LimitMaker",
			settings:     models.BotSettings{OrderType: "LIMIT MAKER", LimitPrice: nd("99.5")},
			expectedType: binance.OrderTypeLimitMaker,
			expectPrice:  true,
		},
		{
			name:         "LimitMakerWithoutPrice",
			settings:     models.BotSettings{OrderType: "LIMIT MAKER"},
			missingField: "limit_price",
		},
		{
			name:         "StopLimit",
			settings:     models.BotSettings{OrderType: "STOP-LIMIT", LimitPrice: nd("99"), StopPrice: nd("98")},
			expectedType: binance.OrderTypeStopLossLimit,
			expectedTIF:  binance.TimeInForceGTC,
			expectPrice:  true,
			expectStop:   true,
		},
		{
			name:         "StopLimitWithoutStop",
			settings:     models.BotSettings{OrderType: "STOP-LIMIT", LimitPrice: nd("99")},
			missingField: "stop_price",
		},
		{
			name:         "StopLimitWithoutLimit",
			settings:     models.BotSettings{OrderType: "STOP-LIMIT", StopPrice: nd("98")},
			missingField: "limit_price",
		},
		{
			name:          "TrailingStop",
			settings:      models.BotSettings{OrderType: "TRAILING STOP", TrailingDelta: nd("200")},
			expectedType:  binance.OrderTypeTrailingStopMarket,
			expectTrailer: true,
		},
		{
			name:         "TrailingStopWithoutDelta",
			settings:     models.BotSettings{OrderType: "TRAILING STOP"},
			missingField: "trailing_delta",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.settings.TradingPair = "BTCUSDT"

			order, err := BuildOrder(&tc.settings, binance.SideBuy, qty)

			if tc.missingField != "" {
				var vErr *ValidationError
				require.True(t, errors.As(err, &vErr), "expected a ValidationError, got %v", err)
				assert.Equal(t, tc.missingField, vErr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "BTCUSDT", order.Symbol)
			assert.Equal(t, binance.SideBuy, order.Side)
			assert.Equal(t, tc.expectedType, order.Type)
			assert.Equal(t, tc.expectedTIF, order.TimeInForce)
			assert.True(t, qty.Equal(order.Quantity))
			assert.Equal(t, tc.expectPrice, order.Price.Valid)
			assert.Equal(t, tc.expectStop, order.StopPrice.Valid)
			assert.Equal(t, tc.expectTrailer, order.TrailingDelta.Valid)
		})
	}

	t.Run("NonPositiveQuantity", func(t *testing.T) {
		_, err := BuildOrder(&models.BotSettings{OrderType: "MARKET"}, binance.SideBuy, decimal.Zero)

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "quantity", vErr.Field)
	})
}

func TestCloseOrder(t *testing.T) {
	trade := &models.BotTrade{Symbol: "ETHUSDT", Amount: decimal.RequireFromString("1.25")}

	order := closeOrder(trade)

	assert.Equal(t, binance.SideSell, order.Side)
	assert.Equal(t, binance.OrderTypeMarket, order.Type)
	assert.Equal(t, "ETHUSDT", order.Symbol)
	assert.True(t, trade.Amount.Equal(order.Quantity))
	assert.False(t, order.Price.Valid)
}
