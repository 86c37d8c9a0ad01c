package trader

import (
	"fmt"
	"strings"

	"binance-signal-bot-go/internal/indicator"
	"binance-signal-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// SignalRule says how the enabled indicator signals are combined. The same
// rule is used for entries and for indicator exits.
type SignalRule string

const (
	// SignalRuleAll fires when every enabled indicator agrees.
	SignalRuleAll SignalRule = "all"
	// SignalRuleAny fires when at least one enabled indicator does.
	SignalRuleAny SignalRule = "any"
)

// ParseSignalRule parses a configured rule. Empty means SignalRuleAll.
func ParseSignalRule(s string) (SignalRule, error) {
	switch SignalRule(strings.ToLower(strings.TrimSpace(s))) {
	case "", SignalRuleAll:
		return SignalRuleAll, nil
	case SignalRuleAny:
		return SignalRuleAny, nil
	}
	return "", fmt.Errorf("unknown signal rule %q", s)
}

// Signal is one enabled indicator check.
type Signal struct {
	Name  string
	Fired bool
}

func (r SignalRule) combine(signals []Signal) bool {
	if len(signals) == 0 {
		return false
	}
	for _, s := range signals {
		if r == SignalRuleAny && s.Fired {
			return true
		}
		if r != SignalRuleAny && !s.Fired {
			return false
		}
	}
	return r != SignalRuleAny
}

// Action is what the state machine wants done with a position.
type Action int

const (
	ActionHold Action = iota
	ActionOpen
	ActionClose
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionClose:
		return "close"
	}
	return "hold"
}

// Decision is the outcome of evaluating one snapshot.
type Decision struct {
	Action  Action
	Reason  models.CloseReason
	Signals []Signal
}

// SignalConfig holds the engine-wide evaluation settings.
type SignalConfig struct {
	Rule       SignalRule
	Overbought decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Evaluate decides what to do for a user given the current snapshot and the
// open trade, if any. With no open trade only an entry can be decided; with
// one only an exit.
func Evaluate(snap indicator.Snapshot, settings *models.BotSettings, open *models.BotTrade, cfg SignalConfig) Decision {
	if open == nil || !open.IsOpen() {
		return EvaluateEntry(snap, settings, cfg.Rule)
	}
	return EvaluateExit(snap, settings, open, cfg)
}

// EvaluateEntry checks the buy signals.
func EvaluateEntry(snap indicator.Snapshot, settings *models.BotSettings, rule SignalRule) Decision {
	var signals []Signal
	if settings.RSIEnabled {
		signals = append(signals, Signal{Name: "rsi", Fired: snap.RSI.LessThan(settings.RSIThreshold)})
	}
	if settings.MACDEnabled {
		signals = append(signals, Signal{Name: "macd", Fired: snap.MACD.Histogram.Sign() > 0})
	}
	if settings.MovingAvgEnabled {
		signals = append(signals, Signal{Name: "bollinger", Fired: snap.LastPrice.LessThan(snap.Bollinger.Lower)})
	}

	d := Decision{Action: ActionHold, Signals: signals}
	if rule.combine(signals) {
		d.Action = ActionOpen
	}
	return d
}

// EvaluateExit checks, in order, stop-loss, take-profit and the sell signals.
// The first that triggers wins.
func EvaluateExit(snap indicator.Snapshot, settings *models.BotSettings, open *models.BotTrade, cfg SignalConfig) Decision {
	entry := open.Price
	price := snap.LastPrice

	if perc, ok := percent(settings.StopLossPerc); ok {
		stop := entry.Mul(decimal.NewFromInt(1).Sub(perc.Div(hundred)))
		if price.LessThanOrEqual(stop) {
			return Decision{Action: ActionClose, Reason: models.CloseReasonStopLoss}
		}
	}
	if perc, ok := percent(settings.TakeProfitPerc); ok {
		target := entry.Mul(decimal.NewFromInt(1).Add(perc.Div(hundred)))
		if price.GreaterThanOrEqual(target) {
			return Decision{Action: ActionClose, Reason: models.CloseReasonTakeProfit}
		}
	}

	var signals []Signal
	if settings.RSIEnabled {
		signals = append(signals, Signal{Name: "rsi", Fired: snap.RSI.GreaterThan(cfg.Overbought)})
	}
	if settings.MACDEnabled {
		signals = append(signals, Signal{Name: "macd", Fired: snap.MACD.Histogram.Sign() < 0})
	}
	if settings.MovingAvgEnabled {
		signals = append(signals, Signal{Name: "bollinger", Fired: price.GreaterThan(snap.Bollinger.Upper)})
	}

	d := Decision{Action: ActionHold, Signals: signals}
	if cfg.Rule.combine(signals) {
		d.Action = ActionClose
		d.Reason = models.CloseReasonIndicatorSell
	}
	return d
}

// percent returns a stop-loss or take-profit percentage if it is set and positive.
func percent(p decimal.NullDecimal) (decimal.Decimal, bool) {
	if !p.Valid || p.Decimal.Sign() <= 0 {
		return decimal.Zero, false
	}
	return p.Decimal, true
}
