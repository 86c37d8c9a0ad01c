package trader

import (
	"context"
	"errors"
	"testing"
	"time"

	"binance-signal-bot-go/internal/binance"
	"binance-signal-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRestClient is a mock implementation of binance.ExchangeClient.
type MockRestClient struct {
	mock.Mock
}

func (m *MockRestClient) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]binance.Candle, error) {
	args := m.Called(ctx, symbol, interval, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]binance.Candle), args.Error(1)
}

func (m *MockRestClient) GetExchangeInfo(ctx context.Context, symbol string) (*binance.SymbolInfo, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*binance.SymbolInfo), args.Error(1)
}

func (m *MockRestClient) FetchFreeBalance(ctx context.Context, creds binance.Credentials, asset string) (decimal.Decimal, error) {
	args := m.Called(ctx, creds, asset)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRestClient) PlaceOrder(ctx context.Context, creds binance.Credentials, order binance.OrderRequest) (*binance.OrderResponse, error) {
	args := m.Called(ctx, creds, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*binance.OrderResponse), args.Error(1)
}

var testCreds = binance.Credentials{APIKey: "key", SecretKey: "secret"}

func btcInfo() *binance.SymbolInfo {
	return &binance.SymbolInfo{
		Symbol:     "BTCUSDT",
		BaseAsset:  "BTC",
		QuoteAsset: "USDT",
		Filters: []binance.Filter{
			{FilterType: "LOT_SIZE", MinQty: "0.001", StepSize: "0.001"},
		},
	}
}

func marketSettings() *models.BotSettings {
	return &models.BotSettings{TradingPair: "BTCUSDT", OrderType: "MARKET"}
}

func TestSimulatedExecutor(t *testing.T) {
	at := time.Unix(1700000000, 0)
	exec := &SimulatedExecutor{feeRate: d("0.001"), now: func() time.Time { return at }}

	fill, err := exec.Open(context.Background(), OpenRequest{Settings: marketSettings(), Quantity: d("2"), LastPrice: d("100")})
	require.NoError(t, err)
	assert.True(t, fill.Simulated)
	assert.True(t, d("100").Equal(fill.Price))
	assert.True(t, d("2").Equal(fill.Amount))
	assert.True(t, d("0.2").Equal(fill.Fee))
	assert.Equal(t, at, fill.ExecutedAt)
	assert.Equal(t, "simulation", exec.Mode())

	fill, err = exec.Close(context.Background(), CloseRequest{Trade: &models.BotTrade{Amount: d("2")}, LastPrice: d("110")})
	require.NoError(t, err)
	assert.True(t, d("110").Equal(fill.Price))

	_, err = exec.Open(context.Background(), OpenRequest{Settings: marketSettings(), Quantity: decimal.Zero, LastPrice: d("100")})
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestLiveExecutor_Open(t *testing.T) {
	// Arrange
	client := new(MockRestClient)
	exec := NewLiveExecutor(client, time.Second, zap.NewNop())

	client.On("GetExchangeInfo", mock.Anything, "BTCUSDT").Return(btcInfo(), nil).Once()
	client.On("FetchFreeBalance", mock.Anything, testCreds, "USDT").Return(d("1000"), nil).Once()
	client.On("PlaceOrder", mock.Anything, testCreds, mock.MatchedBy(func(o binance.OrderRequest) bool {
		return o.Side == binance.SideBuy && o.Type == binance.OrderTypeMarket && o.Quantity.Equal(d("0.123"))
	})).Return(&binance.OrderResponse{
		OrderID:             7,
		Status:              "FILLED",
		ExecutedQuantity:    d("0.123"),
		CummulativeQuoteQty: d("12.3"),
		Fills:               []binance.OrderFill{{Commission: d("0.0001"), CommissionAsset: "BTC"}},
	}, nil).Once()
	client.On("FetchFreeBalance", mock.Anything, testCreds, "USDT").Return(d("987.7"), nil).Once()

	// Act
	fill, err := exec.Open(context.Background(), OpenRequest{
		Settings:  marketSettings(),
		Quantity:  d("0.12345"),
		LastPrice: d("99"),
		Creds:     testCreds,
	})

	// Assert
	require.NoError(t, err)
	assert.False(t, fill.Simulated)
	assert.True(t, d("100").Equal(fill.Price), "price %s", fill.Price)
	assert.True(t, d("0.123").Equal(fill.Amount))
	assert.True(t, d("0.0001").Equal(fill.Fee))
	assert.Equal(t, "7", fill.OrderID)
	require.True(t, fill.QuoteBalance.Valid)
	assert.True(t, d("987.7").Equal(fill.QuoteBalance.Decimal))
	client.AssertExpectations(t)
}

func TestLiveExecutor_Open_ValidationMakesNoCalls(t *testing.T) {
	client := new(MockRestClient)
	exec := NewLiveExecutor(client, time.Second, zap.NewNop())

	settings := &models.BotSettings{TradingPair: "BTCUSDT", OrderType: "LIMIT"}
	_, err := exec.Open(context.Background(), OpenRequest{Settings: settings, Quantity: d("1"), LastPrice: d("100"), Creds: testCreds})

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "limit_price", vErr.Field)
	assert.Empty(t, client.Calls)
}

func TestLiveExecutor_Open_BelowMinQty(t *testing.T) {
	client := new(MockRestClient)
	exec := NewLiveExecutor(client, time.Second, zap.NewNop())
	client.On("GetExchangeInfo", mock.Anything, "BTCUSDT").Return(btcInfo(), nil)

	_, err := exec.Open(context.Background(), OpenRequest{Settings: marketSettings(), Quantity: d("0.0005"), LastPrice: d("100"), Creds: testCreds})

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "quantity", vErr.Field)
	client.AssertNotCalled(t, "FetchFreeBalance", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestLiveExecutor_Open_InsufficientFunds(t *testing.T) {
	client := new(MockRestClient)
	exec := NewLiveExecutor(client, time.Second, zap.NewNop())
	client.On("GetExchangeInfo", mock.Anything, "BTCUSDT").Return(btcInfo(), nil)
	client.On("FetchFreeBalance", mock.Anything, testCreds, "USDT").Return(d("10"), nil)

	_, err := exec.Open(context.Background(), OpenRequest{Settings: marketSettings(), Quantity: d("1"), LastPrice: d("100"), Creds: testCreds})

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	client.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything, mock.Anything)
}

func TestLiveExecutor_Open_NotFilled(t *testing.T) {
	client := new(MockRestClient)
	exec := NewLiveExecutor(client, time.Second, zap.NewNop())
	client.On("GetExchangeInfo", mock.Anything, "BTCUSDT").Return(btcInfo(), nil)
	client.On("FetchFreeBalance", mock.Anything, testCreds, "USDT").Return(d("1000"), nil).Once()
	client.On("PlaceOrder", mock.Anything, testCreds, mock.Anything).
		Return(&binance.OrderResponse{OrderID: 7, Status: "NEW", Price: d("80")}, nil)

	settings := &models.BotSettings{TradingPair: "BTCUSDT", OrderType: "LIMIT", LimitPrice: nd("80")}
	fill, err := exec.Open(context.Background(), OpenRequest{Settings: settings, Quantity: d("1"), LastPrice: d("100"), Creds: testCreds})

	assert.ErrorIs(t, err, ErrOrderNotFilled)
	assert.Zero(t, fill)
	// no balance refresh after an order that did not trade
	client.AssertNumberOfCalls(t, "FetchFreeBalance", 1)
}

func TestLiveExecutor_CachesExchangeInfo(t *testing.T) {
	client := new(MockRestClient)
	exec := NewLiveExecutor(client, time.Second, zap.NewNop())
	client.On("GetExchangeInfo", mock.Anything, "BTCUSDT").Return(btcInfo(), nil).Once()
	client.On("FetchFreeBalance", mock.Anything, testCreds, "USDT").Return(d("1000"), nil)
	client.On("PlaceOrder", mock.Anything, testCreds, mock.Anything).
		Return(&binance.OrderResponse{OrderID: 1, ExecutedQuantity: d("1"), CummulativeQuoteQty: d("100")}, nil)

	for i := 0; i < 2; i++ {
		_, err := exec.Open(context.Background(), OpenRequest{Settings: marketSettings(), Quantity: d("1"), LastPrice: d("100"), Creds: testCreds})
		require.NoError(t, err)
	}

	client.AssertNumberOfCalls(t, "GetExchangeInfo", 1)
}

func TestLiveExecutor_Close(t *testing.T) {
	trade := &models.BotTrade{Symbol: "BTCUSDT", Amount: d("0.5"), Price: d("100"), Status: models.StatusOpen}

	t.Run("Success", func(t *testing.T) {
		client := new(MockRestClient)
		exec := NewLiveExecutor(client, time.Second, zap.NewNop())
		client.On("PlaceOrder", mock.Anything, testCreds, mock.MatchedBy(func(o binance.OrderRequest) bool {
			return o.Side == binance.SideSell && o.Type == binance.OrderTypeMarket && o.Quantity.Equal(d("0.5"))
		})).Return(&binance.OrderResponse{OrderID: 9, ExecutedQuantity: d("0.5"), CummulativeQuoteQty: d("55")}, nil)
		client.On("GetExchangeInfo", mock.Anything, "BTCUSDT").Return(btcInfo(), nil)
		client.On("FetchFreeBalance", mock.Anything, testCreds, "USDT").Return(d("1055"), nil)

		fill, err := exec.Close(context.Background(), CloseRequest{Trade: trade, LastPrice: d("109"), Creds: testCreds})

		require.NoError(t, err)
		assert.True(t, d("110").Equal(fill.Price))
		assert.Equal(t, "9", fill.OrderID)
		assert.True(t, d("1055").Equal(fill.QuoteBalance.Decimal))
	})

	t.Run("ExchangeFailure", func(t *testing.T) {
		client := new(MockRestClient)
		exec := NewLiveExecutor(client, time.Second, zap.NewNop())
		client.On("PlaceOrder", mock.Anything, testCreds, mock.Anything).
			Return(nil, &binance.ExchangeError{Op: "place order", StatusCode: 503})

		_, err := exec.Close(context.Background(), CloseRequest{Trade: trade, LastPrice: d("109"), Creds: testCreds})

		var exErr *binance.ExchangeError
		assert.True(t, errors.As(err, &exErr))
		client.AssertNotCalled(t, "FetchFreeBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NotFilled", func(t *testing.T) {
		client := new(MockRestClient)
		exec := NewLiveExecutor(client, time.Second, zap.NewNop())
		client.On("PlaceOrder", mock.Anything, testCreds, mock.Anything).
			Return(&binance.OrderResponse{OrderID: 4, Status: "EXPIRED"}, nil)

		_, err := exec.Close(context.Background(), CloseRequest{Trade: trade, LastPrice: d("109"), Creds: testCreds})

		assert.ErrorIs(t, err, ErrOrderNotFilled)
		client.AssertNotCalled(t, "FetchFreeBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("BalanceRefreshFailureKeepsFill", func(t *testing.T) {
		client := new(MockRestClient)
		exec := NewLiveExecutor(client, time.Second, zap.NewNop())
		client.On("PlaceOrder", mock.Anything, testCreds, mock.Anything).Return(&binance.OrderResponse{OrderID: 3, ExecutedQuantity: d("0.5"), Price: d("108")}, nil)
		client.On("GetExchangeInfo", mock.Anything, "BTCUSDT").Return(btcInfo(), nil)
		client.On("FetchFreeBalance", mock.Anything, testCreds, "USDT").Return(decimal.Zero, errors.New("timeout"))

		fill, err := exec.Close(context.Background(), CloseRequest{Trade: trade, LastPrice: d("109"), Creds: testCreds})

		require.NoError(t, err)
		assert.True(t, d("108").Equal(fill.Price))
		assert.False(t, fill.QuoteBalance.Valid)
	})
}
