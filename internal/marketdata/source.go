// Package marketdata provides the closing-price series the trading cycle
// evaluates, either generated locally or fetched from the exchange.
package marketdata

import (
	"context"
	"errors"
	"fmt"

	"binance-signal-bot-go/internal/binance"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInsufficientData is returned when the exchange has fewer candles than
// the indicators need.
var ErrInsufficientData = errors.New("insufficient market data")

// Source returns up to count closing prices of symbol, oldest first.
type Source interface {
	Closes(ctx context.Context, userID uuid.UUID, symbol, interval string, count int) ([]decimal.Decimal, error)
}

// Live reads closes from exchange klines.
type Live struct {
	client     binance.ExchangeClient
	minCandles int
	logger     *zap.Logger
}

var _ Source = (*Live)(nil)

// NewLive creates a Live source. Series shorter than minCandles are rejected.
func NewLive(client binance.ExchangeClient, minCandles int, logger *zap.Logger) *Live {
	return &Live{
		client:     client,
		minCandles: minCandles,
		logger:     logger.Named("marketdata"),
	}
}

func (l *Live) Closes(ctx context.Context, userID uuid.UUID, symbol, interval string, count int) ([]decimal.Decimal, error) {
	candles, err := l.client.GetKlines(ctx, symbol, interval, count)
	if err != nil {
		return nil, err
	}
	if len(candles) < l.minCandles {
		return nil, fmt.Errorf("%w: got %d candles for %s, need %d", ErrInsufficientData, len(candles), symbol, l.minCandles)
	}

	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	l.logger.Debug("Fetched closes",
		zap.String("user_id", userID.String()),
		zap.String("symbol", symbol),
		zap.Int("count", len(closes)),
	)
	return closes, nil
}
