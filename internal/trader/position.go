package trader

import (
	"fmt"
	"time"

	"binance-signal-bot-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fill is an executed order as reported by an Executor.
type Fill struct {
	Price      decimal.Decimal
	Amount     decimal.Decimal
	Fee        decimal.Decimal
	OrderID    string
	Simulated  bool
	ExecutedAt time.Time
	// QuoteBalance is the exchange's free quote balance after a live fill.
	QuoteBalance decimal.NullDecimal
}

// Mutation is everything a transition writes. Simulated fills move the
// user's ledger by BalanceDelta; live fills only mirror the exchange balance
// through Balance when it is known.
type Mutation struct {
	Trades       []*models.BotTrade
	BalanceDelta decimal.Decimal
	Balance      decimal.NullDecimal
}

// NewBalance applies the mutation to the current balance.
func (m Mutation) NewBalance(current decimal.Decimal) decimal.Decimal {
	if m.Balance.Valid {
		return m.Balance.Decimal
	}
	return current.Add(m.BalanceDelta)
}

// ChangesBalance reports whether the user's balance must be written.
func (m Mutation) ChangesBalance() bool {
	return m.Balance.Valid || !m.BalanceDelta.IsZero()
}

// OpenPosition is the NO_POSITION to OPEN transition: a buy leg left OPEN at
// the fill price. A simulated buy costs price × amount plus the fee.
func OpenPosition(userID uuid.UUID, symbol string, fill Fill) Mutation {
	executedAt := fill.ExecutedAt
	trade := &models.BotTrade{
		UserID:     userID,
		Symbol:     symbol,
		Side:       models.SideBuy,
		Amount:     fill.Amount,
		Price:      fill.Price,
		Fee:        fill.Fee,
		Status:     models.StatusOpen,
		OrderID:    fill.OrderID,
		Simulated:  fill.Simulated,
		ExecutedAt: &executedAt,
	}

	m := Mutation{Trades: []*models.BotTrade{trade}}
	if fill.Simulated {
		m.BalanceDelta = fill.Price.Mul(fill.Amount).Add(fill.Fee).Neg()
	} else {
		m.Balance = fill.QuoteBalance
	}
	return m
}

// ClosePosition is the OPEN to CLOSED transition. The open buy leg is marked
// closed with its reason and realized profit, and a closed sell leg is added.
// A simulated sell credits exit × amount minus the fee. open is not modified.
func ClosePosition(open *models.BotTrade, fill Fill, reason models.CloseReason) (Mutation, error) {
	if open == nil || !open.IsOpen() {
		return Mutation{}, fmt.Errorf("no open position to close")
	}
	if reason == models.CloseReasonNone {
		return Mutation{}, fmt.Errorf("closing trade %s: a close reason is required", open.ID)
	}

	amount := open.Amount
	profit := fill.Price.Sub(open.Price).Mul(amount).Round(8)

	closed := *open
	closed.Status = models.StatusClosed
	closed.CloseReason = reason
	closed.ProfitEstimate = decimal.NewNullDecimal(profit)

	executedAt := fill.ExecutedAt
	sell := &models.BotTrade{
		UserID:         open.UserID,
		Symbol:         open.Symbol,
		Side:           models.SideSell,
		Amount:         amount,
		Price:          fill.Price,
		Fee:            fill.Fee,
		ProfitEstimate: decimal.NewNullDecimal(profit),
		Status:         models.StatusClosed,
		CloseReason:    reason,
		OrderID:        fill.OrderID,
		Simulated:      fill.Simulated,
		ExecutedAt:     &executedAt,
	}

	m := Mutation{Trades: []*models.BotTrade{&closed, sell}}
	if fill.Simulated {
		m.BalanceDelta = fill.Price.Mul(amount).Sub(fill.Fee)
	} else {
		m.Balance = fill.QuoteBalance
	}
	return m, nil
}
