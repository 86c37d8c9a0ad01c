package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"binance-signal-bot-go/internal/binance"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockExchangeClient is a mock for binance.ExchangeClient.
type MockExchangeClient struct {
	mock.Mock
}

func (m *MockExchangeClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]binance.Candle), args.Error(1)
}

func (m *MockExchangeClient) GetExchangeInfo(ctx context.Context, symbol string) (*binance.SymbolInfo, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*binance.SymbolInfo), args.Error(1)
}

func (m *MockExchangeClient) FetchFreeBalance(ctx context.Context, creds binance.Credentials, asset string) (decimal.Decimal, error) {
	args := m.Called(ctx, creds, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockExchangeClient) PlaceOrder(ctx context.Context, creds binance.Credentials, order binance.OrderRequest) (*binance.OrderResponse, error) {
	args := m.Called(ctx, creds, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*binance.OrderResponse), args.Error(1)
}

func candles(n int) []binance.Candle {
	out := make([]binance.Candle, n)
	for i := range out {
		out[i] = binance.Candle{OpenTime: int64(i), Close: decimal.NewFromInt(int64(100 + i))}
	}
	return out
}

func TestLiveCloses(t *testing.T) {
	userID := uuid.New()

	t.Run("ChronologicalCloses", func(t *testing.T) {
		// Arrange
		client := new(MockExchangeClient)
		client.On("GetKlines", mock.Anything, "BTCUSDT", "5m", 50).Return(candles(25), nil)
		src := NewLive(client, 20, zap.NewNop())

		// Act
		closes, err := src.Closes(context.Background(), userID, "BTCUSDT", "5m", 50)

		// Assert
		require.NoError(t, err)
		require.Len(t, closes, 25)
		assert.True(t, decimal.NewFromInt(100).Equal(closes[0]))
		assert.True(t, decimal.NewFromInt(124).Equal(closes[24]))
		client.AssertExpectations(t)
	})

	t.Run("TooFewCandles", func(t *testing.T) {
		client := new(MockExchangeClient)
		client.On("GetKlines", mock.Anything, "BTCUSDT", "5m", 50).Return(candles(19), nil)
		src := NewLive(client, 20, zap.NewNop())

		_, err := src.Closes(context.Background(), userID, "BTCUSDT", "5m", 50)

		assert.ErrorIs(t, err, ErrInsufficientData)
		assert.ErrorContains(t, err, "got 19 candles")
	})

	t.Run("ExchangeError", func(t *testing.T) {
		client := new(MockExchangeClient)
		exErr := &binance.ExchangeError{Op: "get klines", StatusCode: 500}
		client.On("GetKlines", mock.Anything, "BTCUSDT", "5m", 50).Return(nil, exErr)
		src := NewLive(client, 20, zap.NewNop())

		_, err := src.Closes(context.Background(), userID, "BTCUSDT", "5m", 50)

		var target *binance.ExchangeError
		assert.True(t, errors.As(err, &target))
		assert.NotErrorIs(t, err, ErrInsufficientData)
	})
}

func TestSimulatedCloses(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	src := &Simulated{now: func() time.Time { return at }}
	userID := uuid.New()

	closes, err := src.Closes(context.Background(), userID, "BTCUSDT", "5m", 50)
	require.NoError(t, err)
	require.Len(t, closes, 50)
	assert.True(t, decimal.NewFromInt(100).Equal(closes[0]))

	t.Run("StepsStayWithinOnePercent", func(t *testing.T) {
		limit := decimal.RequireFromString("0.0100001")
		for i := 1; i < len(closes); i++ {
			change := closes[i].Sub(closes[i-1]).Div(closes[i-1]).Abs()
			assert.True(t, change.LessThan(limit), "step %d moved %s", i, change)
			assert.LessOrEqual(t, -closes[i].Exponent(), int32(8))
		}
	})

	t.Run("DeterministicForSameUserAndTime", func(t *testing.T) {
		again, err := src.Closes(context.Background(), userID, "BTCUSDT", "5m", 50)
		require.NoError(t, err)
		assert.Equal(t, closes, again)
	})

	t.Run("UsersGetDifferentSeries", func(t *testing.T) {
		other, err := src.Closes(context.Background(), uuid.New(), "BTCUSDT", "5m", 50)
		require.NoError(t, err)
		assert.NotEqual(t, closes, other)
	})

	t.Run("ZeroCount", func(t *testing.T) {
		none, err := src.Closes(context.Background(), userID, "BTCUSDT", "5m", 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
