package trader

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigMissing means a user cannot be traded for: no settings or no credentials.
	ErrConfigMissing = errors.New("bot configuration missing")
	// ErrInsufficientFunds means the free quote balance does not cover a buy.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrOrderNotFilled means the exchange accepted an order that has not traded yet.
	ErrOrderNotFilled = errors.New("order not filled")
	// ErrCycleInProgress is returned by RunCycle while another pass is running.
	ErrCycleInProgress = errors.New("trading cycle already in progress")
)

// ValidationError rejects an order before anything is sent to the exchange.
type ValidationError struct {
	OrderType string
	Field     string
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.OrderType == "" {
		return fmt.Sprintf("invalid order: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s order: %s %s", e.OrderType, e.Field, e.Reason)
}
