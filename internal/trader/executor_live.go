package trader

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"binance-signal-bot-go/internal/binance"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LiveExecutor places real orders on Binance.
type LiveExecutor struct {
	client  binance.ExchangeClient
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	rules map[string]*binance.SymbolInfo
}

var _ Executor = (*LiveExecutor)(nil)

// NewLiveExecutor creates a LiveExecutor. Every exchange call is bounded by
// timeout when it is positive.
func NewLiveExecutor(client binance.ExchangeClient, timeout time.Duration, logger *zap.Logger) *LiveExecutor {
	return &LiveExecutor{
		client:  client,
		logger:  logger.Named("executor"),
		timeout: timeout,
		now:     time.Now,
		rules:   make(map[string]*binance.SymbolInfo),
	}
}

func (e *LiveExecutor) Mode() string { return "live" }

func (e *LiveExecutor) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// symbolInfo returns the cached trading rules of symbol, fetching them once.
func (e *LiveExecutor) symbolInfo(ctx context.Context, symbol string) (*binance.SymbolInfo, error) {
	e.mu.Lock()
	info, ok := e.rules[symbol]
	e.mu.Unlock()
	if ok {
		return info, nil
	}

	callCtx, cancel := e.callCtx(ctx)
	defer cancel()
	info, err := e.client.GetExchangeInfo(callCtx, symbol)
	if err != nil {
		return nil, fmt.Errorf("could not get trading rules for %s: %w", symbol, err)
	}

	e.mu.Lock()
	e.rules[symbol] = info
	e.mu.Unlock()
	e.logger.Info("Cached exchange information for symbol", zap.String("symbol", symbol))
	return info, nil
}

// Open validates the order, fits the quantity to the symbol's lot size,
// checks the free quote balance and places the buy.
func (e *LiveExecutor) Open(ctx context.Context, req OpenRequest) (Fill, error) {
	order, err := BuildOrder(req.Settings, binance.SideBuy, req.Quantity)
	if err != nil {
		return Fill{}, err
	}

	info, err := e.symbolInfo(ctx, order.Symbol)
	if err != nil {
		return Fill{}, err
	}

	quantity, err := info.FormatQuantity(order.Quantity)
	if err != nil {
		return Fill{}, &ValidationError{OrderType: order.Type, Field: "quantity", Reason: err.Error()}
	}
	order.Quantity = quantity

	price := req.LastPrice
	if order.Price.Valid {
		price = order.Price.Decimal
	}
	required := quantity.Mul(price)

	free, err := e.freeBalance(ctx, req.Creds, info.QuoteAsset)
	if err != nil {
		return Fill{}, err
	}
	if free.LessThan(required) {
		return Fill{}, fmt.Errorf("%w: %s %s free, %s required", ErrInsufficientFunds, free, info.QuoteAsset, required)
	}

	fill, err := e.place(ctx, req.Creds, order, req.LastPrice)
	if err != nil {
		return Fill{}, err
	}
	fill.QuoteBalance = e.mirrorBalance(ctx, req.Creds, info.QuoteAsset)
	return fill, nil
}

// Close sells the position at market.
func (e *LiveExecutor) Close(ctx context.Context, req CloseRequest) (Fill, error) {
	fill, err := e.place(ctx, req.Creds, closeOrder(req.Trade), req.LastPrice)
	if err != nil {
		return Fill{}, err
	}

	if info, err := e.symbolInfo(ctx, req.Trade.Symbol); err == nil {
		fill.QuoteBalance = e.mirrorBalance(ctx, req.Creds, info.QuoteAsset)
	}
	return fill, nil
}

func (e *LiveExecutor) place(ctx context.Context, creds binance.Credentials, order binance.OrderRequest, lastPrice decimal.Decimal) (Fill, error) {
	callCtx, cancel := e.callCtx(ctx)
	defer cancel()

	resp, err := e.client.PlaceOrder(callCtx, creds, order)
	if err != nil {
		return Fill{}, err
	}

	// Only what actually traded becomes a position. A resting order stays on
	// the exchange and is not tracked here.
	if resp.ExecutedQuantity.Sign() <= 0 {
		e.logger.Warn("Order accepted without a fill",
			zap.String("symbol", order.Symbol),
			zap.String("side", order.Side),
			zap.Int64("order_id", resp.OrderID),
			zap.String("status", resp.Status),
		)
		return Fill{}, fmt.Errorf("%w: %s order %d is %s", ErrOrderNotFilled, order.Side, resp.OrderID, resp.Status)
	}

	price := resp.ExecutedPrice()
	if price.Sign() <= 0 {
		price = lastPrice
	}

	return Fill{
		Price:      price,
		Amount:     resp.ExecutedQuantity,
		Fee:        resp.Commission(),
		OrderID:    strconv.FormatInt(resp.OrderID, 10),
		ExecutedAt: e.now(),
	}, nil
}

func (e *LiveExecutor) freeBalance(ctx context.Context, creds binance.Credentials, asset string) (decimal.Decimal, error) {
	callCtx, cancel := e.callCtx(ctx)
	defer cancel()
	return e.client.FetchFreeBalance(callCtx, creds, asset)
}

// mirrorBalance reads the balance after a fill. The order already went
// through, so a failure here is logged and the stored balance left as is.
func (e *LiveExecutor) mirrorBalance(ctx context.Context, creds binance.Credentials, asset string) decimal.NullDecimal {
	free, err := e.freeBalance(ctx, creds, asset)
	if err != nil {
		e.logger.Warn("Could not refresh balance after fill", zap.String("asset", asset), zap.Error(err))
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(free)
}
