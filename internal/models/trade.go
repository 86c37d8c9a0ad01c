package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeSide is the direction of an executed leg.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeStatus is the lifecycle state of a BotTrade row.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// CloseReason records why a position was closed. Empty while the trade is open.
type CloseReason string

const (
	CloseReasonNone          CloseReason = ""
	CloseReasonStopLoss      CloseReason = "STOP_LOSS"
	CloseReasonTakeProfit    CloseReason = "TAKE_PROFIT"
	CloseReasonIndicatorSell CloseReason = "INDICATOR_SELL"
)

// BotTrade is one executed leg. The buy leg stays OPEN until the position is
// closed; closing also writes a separate CLOSED sell leg.
//
// idx_bot_trades_open_position allows a single OPEN row per (user, symbol).
type BotTrade struct {
	ID             uuid.UUID           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID         uuid.UUID           `gorm:"type:varchar(36);not null;index;uniqueIndex:idx_bot_trades_open_position,where:status = 'OPEN'" json:"user_id"`
	Symbol         string              `gorm:"not null;uniqueIndex:idx_bot_trades_open_position,where:status = 'OPEN'" json:"symbol"`
	Side           TradeSide           `gorm:"not null" json:"side"`
	Amount         decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"amount"`
	Price          decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"price"`
	Fee            decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"fee"`
	ProfitEstimate decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"profit_estimate"`
	Status         TradeStatus         `gorm:"not null;index" json:"status"`
	CloseReason    CloseReason         `json:"close_reason,omitempty"`
	OrderID        string              `json:"order_id,omitempty"`
	Simulated      bool                `gorm:"not null;default:false" json:"simulated"`
	CreatedAt      time.Time           `json:"created_at"`
	ExecutedAt     *time.Time          `json:"executed_at,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (t *BotTrade) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// IsOpen reports whether the trade still holds a position.
func (t *BotTrade) IsOpen() bool {
	return t.Status == StatusOpen
}
