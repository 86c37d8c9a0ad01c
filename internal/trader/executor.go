package trader

import (
	"context"
	"time"

	"binance-signal-bot-go/internal/binance"
	"binance-signal-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// OpenRequest asks an Executor to buy Quantity of the settings' pair.
type OpenRequest struct {
	Settings  *models.BotSettings
	Quantity  decimal.Decimal
	LastPrice decimal.Decimal
	Creds     binance.Credentials
}

// CloseRequest asks an Executor to sell the whole amount of Trade.
type CloseRequest struct {
	Trade     *models.BotTrade
	LastPrice decimal.Decimal
	Creds     binance.Credentials
}

// Executor carries out the orders the state machine decides on. It is
// chosen once at startup: simulated or live.
type Executor interface {
	Mode() string
	Open(ctx context.Context, req OpenRequest) (Fill, error)
	Close(ctx context.Context, req CloseRequest) (Fill, error)
}

// SimulatedExecutor fills every order at the last price without contacting
// the exchange.
type SimulatedExecutor struct {
	feeRate decimal.Decimal
	now     func() time.Time
}

var _ Executor = (*SimulatedExecutor)(nil)

// NewSimulatedExecutor creates a SimulatedExecutor charging feeRate of the
// traded value per fill.
func NewSimulatedExecutor(feeRate decimal.Decimal) *SimulatedExecutor {
	return &SimulatedExecutor{feeRate: feeRate, now: time.Now}
}

func (e *SimulatedExecutor) Mode() string { return "simulation" }

func (e *SimulatedExecutor) Open(_ context.Context, req OpenRequest) (Fill, error) {
	if req.Quantity.Sign() <= 0 {
		return Fill{}, &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	return e.fill(req.LastPrice, req.Quantity), nil
}

func (e *SimulatedExecutor) Close(_ context.Context, req CloseRequest) (Fill, error) {
	return e.fill(req.LastPrice, req.Trade.Amount), nil
}

func (e *SimulatedExecutor) fill(price, amount decimal.Decimal) Fill {
	return Fill{
		Price:      price,
		Amount:     amount,
		Fee:        price.Mul(amount).Mul(e.feeRate).Round(8),
		Simulated:  true,
		ExecutedAt: e.now(),
	}
}
