package database

import (
	"context"
	"errors"
	"fmt"

	"binance-signal-bot-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// Repository is the persistence surface the trading engine depends on.
type Repository interface {
	// GetActiveUsers returns the ids of users whose bot is active.
	GetActiveUsers(ctx context.Context) ([]uuid.UUID, error)
	// GetSettings returns ErrNotFound when the user has no settings.
	GetSettings(ctx context.Context, userID uuid.UUID) (*models.BotSettings, error)
	// GetCredentials returns ErrNotFound when the user has no stored credentials.
	GetCredentials(ctx context.Context, userID uuid.UUID) (*models.UserCredentials, error)
	// GetOpenTrade returns nil, nil when no position is open for (user, symbol).
	GetOpenTrade(ctx context.Context, userID uuid.UUID, symbol string) (*models.BotTrade, error)
	// SaveTrade inserts a new trade or updates an existing one.
	SaveTrade(ctx context.Context, trade *models.BotTrade) error
	GetUserBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	SetUserBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
	// Transaction runs fn against a repository bound to a single transaction.
	// Any error returned by fn rolls back every write made through it.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}

// Store implements Repository on top of gorm.
type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetActiveUsers(ctx context.Context) ([]uuid.UUID, error) {
	var states []models.BotState
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("last_updated asc").Find(&states).Error; err != nil {
		return nil, fmt.Errorf("could not load active bot states: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(states))
	for _, st := range states {
		ids = append(ids, st.UserID)
	}
	return ids, nil
}

func (s *Store) GetSettings(ctx context.Context, userID uuid.UUID) (*models.BotSettings, error) {
	var settings models.BotSettings
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return nil, wrapNotFound(err, "settings for user %s", userID)
	}
	return &settings, nil
}

func (s *Store) GetCredentials(ctx context.Context, userID uuid.UUID) (*models.UserCredentials, error) {
	var creds models.UserCredentials
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&creds).Error; err != nil {
		return nil, wrapNotFound(err, "credentials for user %s", userID)
	}
	return &creds, nil
}

func (s *Store) GetOpenTrade(ctx context.Context, userID uuid.UUID, symbol string) (*models.BotTrade, error) {
	var trade models.BotTrade
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, models.StatusOpen).
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not load open trade for user %s on %s: %w", userID, symbol, err)
	}
	return &trade, nil
}

func (s *Store) SaveTrade(ctx context.Context, trade *models.BotTrade) error {
	if err := s.db.WithContext(ctx).Save(trade).Error; err != nil {
		return fmt.Errorf("could not save trade %s: %w", trade.ID, err)
	}
	return nil
}

func (s *Store) GetUserBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "balance").Where("id = ?", userID).First(&user).Error; err != nil {
		return decimal.Zero, wrapNotFound(err, "user %s", userID)
	}
	return user.Balance, nil
}

func (s *Store) SetUserBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("balance", balance)
	if res.Error != nil {
		return fmt.Errorf("could not update balance of user %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *Store) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func wrapNotFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("could not load %s: %w", what, err)
}
