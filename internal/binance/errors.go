package binance

import (
	"encoding/json"
	"fmt"
)

// ExchangeError is returned for every failed exchange call: transport errors,
// timeouts and non-2xx responses alike.
type ExchangeError struct {
	Op         string // e.g. "place order"
	StatusCode int    // HTTP status, 0 when no response was received
	Code       int    // Binance error code, 0 when the body carried none
	Message    string
	Err        error
}

func (e *ExchangeError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("binance %s: request failed: %v", e.Op, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("binance %s: request failed with status %d: code %d: %s", e.Op, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("binance %s: request failed with status %d: %s", e.Op, e.StatusCode, e.Message)
	}
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

// apiError is the error body Binance sends with non-2xx responses.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func newStatusError(op string, status int, body []byte) *ExchangeError {
	e := &ExchangeError{Op: op, StatusCode: status, Message: string(body)}
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != 0 {
		e.Code = apiErr.Code
		e.Message = apiErr.Msg
	}
	return e
}
