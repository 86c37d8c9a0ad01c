package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// User is the account a bot trades for. Balance is the simulated quote-currency
// ledger; in live mode it only mirrors the exchange's free balance.
type User struct {
	ID        uuid.UUID       `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email     string          `gorm:"uniqueIndex;not null" json:"email"`
	Username  string          `gorm:"uniqueIndex;not null" json:"username"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BeforeCreate assigns a random id to new users.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserCredentials holds a user's exchange API key pair, encrypted at rest.
type UserCredentials struct {
	ID                 uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID             uuid.UUID `gorm:"type:varchar(36);uniqueIndex;not null" json:"user_id"`
	EncryptedAPIKey    string    `gorm:"not null" json:"-"`
	EncryptedSecretKey string    `gorm:"not null" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (c *UserCredentials) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
