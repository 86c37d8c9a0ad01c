package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Units for BotSettings.TradeAmountUnit.
const (
	AmountUnitBase  = "BASE"
	AmountUnitQuote = "QUOTE"
)

// BotSettings is the per-user strategy configuration.
//
// OrderType holds the user-facing name ("MARKET", "LIMIT", "STOP-LIMIT",
// "LIMIT MAKER", "TRAILING STOP"); LimitPrice, StopPrice and TrailingDelta are
// only required by some of them. RSIPeriod is the RSI lookback and RSIThreshold
// the oversold level below which the RSI buy signal fires.
type BotSettings struct {
	ID               uuid.UUID           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           uuid.UUID           `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	TradingPair      string              `gorm:"not null" json:"trading_pair"`
	OrderType        string              `gorm:"not null;default:MARKET" json:"order_type"`
	TradeAmount      decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"trade_amount"`
	TradeAmountUnit  string              `gorm:"not null;default:BASE" json:"trade_amount_unit"`
	LimitPrice       decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"limit_price"`
	StopPrice        decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"stop_price"`
	TrailingDelta    decimal.NullDecimal `gorm:"type:decimal(20,8)" json:"trailing_delta"`
	StopLossPerc     decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"stop_loss_perc"`
	TakeProfitPerc   decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"take_profit_perc"`
	RSIEnabled       bool                `gorm:"not null" json:"rsi_enabled"`
	RSIPeriod        int                 `gorm:"not null;default:0" json:"rsi_period"`
	RSIThreshold     decimal.Decimal     `gorm:"type:decimal(5,2);not null;default:30" json:"rsi_threshold"`
	MACDEnabled      bool                `gorm:"not null" json:"macd_enabled"`
	MovingAvgEnabled bool                `gorm:"not null" json:"moving_avg_enabled"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (s *BotSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
