package trader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"binance-signal-bot-go/internal/binance"
	"binance-signal-bot-go/internal/config"
	"binance-signal-bot-go/internal/database"
	"binance-signal-bot-go/internal/indicator"
	"binance-signal-bot-go/internal/marketdata"
	"binance-signal-bot-go/internal/models"
	"binance-signal-bot-go/internal/secrets"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CycleReport summarizes one pass over the active users.
type CycleReport struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Users         int           `json:"users"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Opened        int           `json:"opened"`
	Closed        int           `json:"closed"`
	OpenPositions int           `json:"open_positions"`
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSkipped:
		return "skipped"
	case outcomeFailed:
		return "failed"
	}
	return "processed"
}

type userResult struct {
	outcome outcome
	action  Action
	holding bool
}

// Engine runs the trading cycle for every user with an active bot.
type Engine struct {
	ID        uuid.UUID
	StartTime time.Time

	logger   *zap.Logger
	cfg      config.Bot
	repo     database.Repository
	source   marketdata.Source
	executor Executor
	decrypt  secrets.Decrypter
	metrics  *Metrics
	signals  SignalConfig

	running atomic.Bool
	locks   keyedMutex

	mu         sync.RWMutex
	lastReport CycleReport
}

// NewEngine creates a new trading engine.
func NewEngine(
	logger *zap.Logger,
	cfg config.Bot,
	repo database.Repository,
	source marketdata.Source,
	executor Executor,
	decrypt secrets.Decrypter,
	metrics *Metrics,
) (*Engine, error) {
	rule, err := ParseSignalRule(cfg.SignalRule)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if decrypt == nil {
		decrypt = func(s string) (string, error) { return s, nil }
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	return &Engine{
		ID:        uuid.New(),
		StartTime: time.Now(),
		logger:    logger.Named("engine"),
		cfg:       cfg,
		repo:      repo,
		source:    source,
		executor:  executor,
		decrypt:   decrypt,
		metrics:   metrics,
		signals: SignalConfig{
			Rule:       rule,
			Overbought: decimal.NewFromFloat(cfg.RSIOverbought),
		},
		locks: keyedMutex{locks: make(map[string]*refMutex)},
	}, nil
}

// Mode is the execution mode, simulation or live.
func (e *Engine) Mode() string {
	return e.executor.Mode()
}

// LastReport returns the report of the most recent completed cycle.
func (e *Engine) LastReport() CycleReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastReport
}

// Run starts the trading engine's main loop. A pass runs immediately and then
// on every tick; passes run on this goroutine, so they never overlap and a
// tick that arrives during a pass is dropped.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Starting trading loop",
		zap.String("mode", e.Mode()),
		zap.Duration("interval", e.cfg.Interval),
		zap.String("signal_rule", string(e.signals.Rule)),
	)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping trading engine...")
			return
		case <-ticker.C:
			e.runOnce(ctx)
		}
	}
}

func (e *Engine) runOnce(ctx context.Context) {
	if _, err := e.RunCycle(ctx); err != nil {
		e.logger.Error("Trading cycle failed", zap.Error(err))
	}
}

// RunCycle evaluates every active user once. Errors of a single user are
// logged and counted; only failing to list the users fails the cycle.
func (e *Engine) RunCycle(ctx context.Context) (CycleReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		e.metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return CycleReport{}, ErrCycleInProgress
	}
	defer e.running.Store(false)

	report := CycleReport{StartedAt: time.Now()}
	e.logger.Info("Starting trading cycle", zap.String("mode", e.Mode()))

	users, err := e.repo.GetActiveUsers(ctx)
	if err != nil {
		return report, fmt.Errorf("could not load active users: %w", err)
	}
	users = dedupe(users)
	report.Users = len(users)
	if len(users) == 0 {
		e.logger.Info("No active bots at the moment.")
	}

	results := make([]userResult, len(users))
	var g errgroup.Group
	g.SetLimit(e.cfg.Workers)
	for i, userID := range users {
		i, userID := i, userID
		g.Go(func() error {
			results[i] = e.processUser(ctx, userID)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		e.metrics.UsersProcessed.WithLabelValues(r.outcome.String()).Inc()
		switch r.outcome {
		case outcomeProcessed:
			report.Processed++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		}
		switch r.action {
		case ActionOpen:
			report.Opened++
		case ActionClose:
			report.Closed++
		}
		if r.holding {
			report.OpenPositions++
		}
	}
	report.Duration = time.Since(report.StartedAt)

	e.metrics.CyclesTotal.WithLabelValues("completed").Inc()
	e.metrics.CycleDuration.Observe(report.Duration.Seconds())
	e.metrics.OpenPositions.Set(float64(report.OpenPositions))

	e.mu.Lock()
	e.lastReport = report
	e.mu.Unlock()

	e.logger.Info("Trading cycle complete",
		zap.Int("users", report.Users),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("opened", report.Opened),
		zap.Int("closed", report.Closed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// processUser runs one user's step of the cycle. Nothing it does, including
// a panic, reaches the other users.
func (e *Engine) processUser(ctx context.Context, userID uuid.UUID) (res userResult) {
	l := e.logger.With(zap.String("user_id", userID.String()))

	defer func() {
		if r := recover(); r != nil {
			l.Error("Panic while processing user",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res = userResult{outcome: outcomeFailed}
		}
	}()

	settings, err := e.repo.GetSettings(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return e.fail(l, fmt.Errorf("%w: no bot settings", ErrConfigMissing))
	}
	if err != nil {
		return e.fail(l, err)
	}
	symbol := settings.TradingPair
	l = l.With(zap.String("symbol", symbol))

	closes, err := e.source.Closes(ctx, userID, symbol, e.cfg.KlineInterval, e.cfg.KlineLimit)
	if err != nil {
		return e.fail(l, err)
	}
	snap := indicator.Compute(closes, indicator.DefaultParams(e.rsiPeriod(settings)))
	l.Debug("Indicators computed",
		zap.String("price", snap.LastPrice.String()),
		zap.String("rsi", snap.RSI.String()),
		zap.String("macd_histogram", snap.MACD.Histogram.String()),
		zap.String("bb_lower", snap.Bollinger.Lower.String()),
		zap.String("bb_upper", snap.Bollinger.Upper.String()),
	)

	creds, err := e.credentials(ctx, userID)
	if err != nil {
		return e.fail(l, err)
	}

	unlock := e.locks.Lock(userID.String() + "/" + symbol)
	defer unlock()

	open, err := e.repo.GetOpenTrade(ctx, userID, symbol)
	if err != nil {
		return e.fail(l, err)
	}

	decision := Evaluate(snap, settings, open, e.signals)
	l.Info("Position evaluated",
		zap.Bool("has_open_trade", open != nil),
		zap.String("action", decision.Action.String()),
		zap.String("reason", string(decision.Reason)),
		zap.Any("signals", decision.Signals),
	)

	switch decision.Action {
	case ActionOpen:
		quantity := e.quantity(settings, snap.LastPrice)
		fill, err := e.executor.Open(ctx, OpenRequest{
			Settings:  settings,
			Quantity:  quantity,
			LastPrice: snap.LastPrice,
			Creds:     creds,
		})
		if err != nil {
			return e.fail(l, fmt.Errorf("open position: %w", err))
		}
		if err := e.apply(ctx, userID, OpenPosition(userID, symbol, fill)); err != nil {
			return e.fail(l, err)
		}
		e.metrics.TradesTotal.WithLabelValues("open", e.Mode()).Inc()
		l.Info("Position opened",
			zap.String("price", fill.Price.String()),
			zap.String("amount", fill.Amount.String()),
			zap.String("order_id", fill.OrderID),
		)
		return userResult{outcome: outcomeProcessed, action: ActionOpen, holding: true}

	case ActionClose:
		fill, err := e.executor.Close(ctx, CloseRequest{Trade: open, LastPrice: snap.LastPrice, Creds: creds})
		if err != nil {
			// The trade stays OPEN and is evaluated again next cycle.
			return e.fail(l, fmt.Errorf("close position: %w", err))
		}
		m, err := ClosePosition(open, fill, decision.Reason)
		if err != nil {
			return e.fail(l, err)
		}
		if err := e.apply(ctx, userID, m); err != nil {
			return e.fail(l, err)
		}
		e.metrics.TradesTotal.WithLabelValues("close", e.Mode()).Inc()
		l.Info("Position closed",
			zap.String("reason", string(decision.Reason)),
			zap.String("entry_price", open.Price.String()),
			zap.String("exit_price", fill.Price.String()),
			zap.String("profit", m.Trades[0].ProfitEstimate.Decimal.String()),
		)
		return userResult{outcome: outcomeProcessed, action: ActionClose}
	}

	return userResult{outcome: outcomeProcessed, holding: open != nil}
}

// fail logs err at the level its kind deserves and classifies the user's result.
func (e *Engine) fail(l *zap.Logger, err error) userResult {
	var (
		validationErr *ValidationError
		exchangeErr   *binance.ExchangeError
	)
	switch {
	case errors.Is(err, ErrConfigMissing):
		l.Warn("Active bot without configuration, skipping", zap.Error(err))
		return userResult{outcome: outcomeSkipped}
	case errors.Is(err, marketdata.ErrInsufficientData):
		l.Warn("Insufficient market data, skipping", zap.Error(err))
		return userResult{outcome: outcomeSkipped}
	case errors.Is(err, ErrInsufficientFunds):
		l.Warn("Insufficient funds, skipping buy", zap.Error(err))
		return userResult{outcome: outcomeSkipped}
	case errors.Is(err, ErrOrderNotFilled):
		l.Warn("Order not filled, position unchanged", zap.Error(err))
		return userResult{outcome: outcomeSkipped}
	case errors.As(err, &validationErr):
		l.Error("Order rejected before sending", zap.Error(err))
	case errors.As(err, &exchangeErr):
		e.metrics.ExchangeErrors.Inc()
		l.Error("Exchange call failed", zap.Error(err))
	default:
		l.Error("Failed to process user", zap.Error(err))
	}
	return userResult{outcome: outcomeFailed}
}

func (e *Engine) credentials(ctx context.Context, userID uuid.UUID) (binance.Credentials, error) {
	stored, err := e.repo.GetCredentials(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return binance.Credentials{}, fmt.Errorf("%w: no exchange credentials", ErrConfigMissing)
	}
	if err != nil {
		return binance.Credentials{}, err
	}

	apiKey, err := e.decrypt(stored.EncryptedAPIKey)
	if err != nil {
		return binance.Credentials{}, fmt.Errorf("could not decrypt api key: %w", err)
	}
	secretKey, err := e.decrypt(stored.EncryptedSecretKey)
	if err != nil {
		return binance.Credentials{}, fmt.Errorf("could not decrypt secret key: %w", err)
	}
	return binance.Credentials{APIKey: apiKey, SecretKey: secretKey}, nil
}

// apply persists a mutation in one transaction: the trades and the balance
// are written together or not at all.
func (e *Engine) apply(ctx context.Context, userID uuid.UUID, m Mutation) error {
	return e.repo.Transaction(ctx, func(tx database.Repository) error {
		for _, trade := range m.Trades {
			if err := tx.SaveTrade(ctx, trade); err != nil {
				return err
			}
		}
		if !m.ChangesBalance() {
			return nil
		}
		balance, err := tx.GetUserBalance(ctx, userID)
		if err != nil {
			return err
		}
		return tx.SetUserBalance(ctx, userID, m.NewBalance(balance))
	})
}

func (e *Engine) rsiPeriod(settings *models.BotSettings) int {
	if settings.RSIPeriod > 0 {
		return settings.RSIPeriod
	}
	return e.cfg.RSIPeriod
}

// quantity is the base amount to buy. A QUOTE amount is a spend, converted at
// the last price and rounded down to 8 digits.
func (e *Engine) quantity(settings *models.BotSettings, lastPrice decimal.Decimal) decimal.Decimal {
	if settings.TradeAmountUnit != models.AmountUnitQuote {
		return settings.TradeAmount
	}
	if lastPrice.Sign() <= 0 {
		return decimal.Zero
	}
	return settings.TradeAmount.DivRound(lastPrice, 16).Truncate(8)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// keyedMutex hands out one mutex per key. An entry is dropped once no
// goroutine holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
