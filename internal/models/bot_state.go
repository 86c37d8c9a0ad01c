package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BotState tells whether a user's bot takes part in the trading cycle.
// The engine only reads it.
type BotState struct {
	ID          uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	IsActive    bool      `gorm:"not null;default:false;index" json:"is_active"`
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`
}

func (s *BotState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now()
	}
	return nil
}
