package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

// LedgerConfig holds the virtual account parameters shared by every
// instrument.
type LedgerConfig struct {
	InitialBalance float64 `yaml:"initial_balance"`
	MaxDrawdownPct float64 `yaml:"max_drawdown_pct"`
	CommissionRate float64 `yaml:"commission_rate"`
	PointValue     float64 `yaml:"point_value"`
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		InitialBalance: 100000,
		MaxDrawdownPct: 25,
		CommissionRate: 0.0005,
		PointValue:     1,
	}
}

func (c LedgerConfig) Validate() error {
	if c.InitialBalance <= 0 {
		return fmt.Errorf("initial_balance must be positive, got %f", c.InitialBalance)
	}
	if c.MaxDrawdownPct <= 0 || c.MaxDrawdownPct > 100 {
		return fmt.Errorf("max_drawdown_pct must be in (0, 100], got %f", c.MaxDrawdownPct)
	}
	if c.CommissionRate < 0 {
		return fmt.Errorf("commission_rate must not be negative, got %f", c.CommissionRate)
	}
	if c.PointValue <= 0 {
		return fmt.Errorf("point_value must be positive, got %f", c.PointValue)
	}
	return nil
}

// LedgerService keeps one virtual account per instrument, simulates
// limit-order fills against the live price and enforces the drawdown
// circuit breaker. All mutation for an instrument runs under that
// instrument's lock, so a check-then-act pair such as "no active trade,
// place one" is atomic.
type LedgerService struct {
	cfg      LedgerConfig
	accounts domain.AccountRepository
	trades   domain.TradeRepository
	events   domain.EventLogger
	logger   *zap.Logger

	locks *keyedMutex

	stateMu sync.RWMutex
	cache   map[string]*domain.Account
	active  map[string]*domain.Trade

	now func() time.Time
}

func NewLedgerService(cfg LedgerConfig, accounts domain.AccountRepository, trades domain.TradeRepository, events domain.EventLogger, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		cfg:      cfg,
		accounts: accounts,
		trades:   trades,
		events:   events,
		logger:   logger,
		locks:    newKeyedMutex(),
		cache:    make(map[string]*domain.Account),
		active:   make(map[string]*domain.Trade),
		now:      time.Now,
	}
}

// Restore loads persisted accounts and non-terminal trades so the ledger
// resumes where the previous run stopped.
func (l *LedgerService) Restore(ctx context.Context) error {
	accounts, err := l.accounts.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("restore accounts: %w", err)
	}
	trades, err := l.trades.ListActiveTrades(ctx)
	if err != nil {
		return fmt.Errorf("restore active trades: %w", err)
	}

	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	for _, acc := range accounts {
		l.cache[acc.Instrument] = acc
	}
	for _, t := range trades {
		l.active[t.Instrument] = t
	}
	l.logger.Info("ledger restored",
		zap.Int("accounts", len(accounts)),
		zap.Int("active_trades", len(trades)))
	return nil
}

// PlaceOrder books a pending trade for an actionable signal. A blocked
// account or an existing non-terminal trade rejects the order without an
// error: both nil means the ledger declined.
func (l *LedgerService) PlaceOrder(ctx context.Context, sig *domain.Signal) (*domain.Trade, error) {
	if sig == nil || !sig.Actionable() {
		return nil, nil
	}
	unlock := l.locks.Lock(sig.Instrument)
	defer unlock()

	acc, err := l.ensureAccount(ctx, sig.Instrument)
	if err != nil {
		return nil, err
	}
	l.applyDrawdown(acc)
	if acc.Blocked {
		l.logger.Warn("order rejected: account blocked by drawdown",
			zap.String("instrument", sig.Instrument),
			zap.Float64("drawdown_pct", acc.DrawdownPct))
		l.appendLog(ctx, "order_rejected", sig.Instrument, "account blocked by drawdown", map[string]any{
			"drawdown_pct": acc.DrawdownPct,
		})
		return nil, nil
	}
	if t := l.activeTrade(sig.Instrument); t != nil {
		l.logger.Info("order rejected: trade already active",
			zap.String("instrument", sig.Instrument),
			zap.Int64("trade_id", t.ID))
		return nil, nil
	}

	now := l.now()
	trade := &domain.Trade{
		Instrument:     sig.Instrument,
		Direction:      sig.Direction,
		EntryPrice:     sig.EntryPrice,
		Size:           sig.Size,
		StopLoss:       sig.StopLoss,
		TakeProfit:     sig.TakeProfit,
		Status:         domain.StatusPending,
		Confidence:     sig.Confidence,
		PotentialTotal: sig.Potential.Total,
		CreatedAt:      now,
	}
	if err := l.trades.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade for %s: %w", sig.Instrument, err)
	}

	l.stateMu.Lock()
	l.active[sig.Instrument] = trade
	l.stateMu.Unlock()

	l.appendLog(ctx, "order_placed", sig.Instrument, "pending order placed", map[string]any{
		"trade_id":  trade.ID,
		"direction": string(trade.Direction),
		"entry":     trade.EntryPrice,
		"size":      trade.Size,
	})
	l.logger.Info("order placed",
		zap.String("instrument", sig.Instrument),
		zap.Int64("trade_id", trade.ID),
		zap.String("direction", string(trade.Direction)),
		zap.Float64("entry", trade.EntryPrice))
	return trade, nil
}

// Tick advances every instrument present in prices: pending orders fill
// when their limit price is touched, open positions close on stop or
// target. It returns one event per fill or close.
func (l *LedgerService) Tick(ctx context.Context, prices map[string]float64) []domain.TradeEvent {
	var out []domain.TradeEvent
	for instrument, price := range prices {
		unlock := l.locks.Lock(instrument)
		trade := l.activeTrade(instrument)
		if trade == nil {
			unlock()
			continue
		}

		switch trade.Status {
		case domain.StatusPending:
			if limitTriggered(trade, price) {
				if ev, err := l.openTrade(ctx, trade); err != nil {
					l.logger.Error("open trade failed", zap.Int64("trade_id", trade.ID), zap.Error(err))
				} else {
					out = append(out, ev)
				}
			}
		case domain.StatusOpen:
			if exitTriggered(trade, price) {
				if ev, err := l.closeTrade(ctx, trade, price); err != nil {
					l.logger.Error("close trade failed", zap.Int64("trade_id", trade.ID), zap.Error(err))
				} else {
					out = append(out, ev)
				}
			}
		}
		unlock()
	}
	return out
}

// limitTriggered reports whether the price reached the pending limit:
// at or below entry for a BUY, at or above for a SELL.
func limitTriggered(t *domain.Trade, price float64) bool {
	if t.Direction == domain.DirectionBuy {
		return price <= t.EntryPrice
	}
	return price >= t.EntryPrice
}

func exitTriggered(t *domain.Trade, price float64) bool {
	if t.Direction == domain.DirectionBuy {
		return price <= t.StopLoss || price >= t.TakeProfit
	}
	return price >= t.StopLoss || price <= t.TakeProfit
}

// openTrade stages the fill on a copy and commits the shared trade only
// after the repository accepted it, so a persistence failure leaves the
// pending order intact for the next tick.
func (l *LedgerService) openTrade(ctx context.Context, t *domain.Trade) (domain.TradeEvent, error) {
	opened := *t
	opened.Status = domain.StatusOpen
	opened.OpenedAt = l.now()
	if err := l.trades.UpdateTrade(ctx, &opened); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("persist open: %w", err)
	}
	*t = opened
	l.appendLog(ctx, "trade_opened", t.Instrument, "limit order filled", map[string]any{
		"trade_id": t.ID,
		"entry":    t.EntryPrice,
	})
	l.logger.Info("trade opened",
		zap.String("instrument", t.Instrument),
		zap.Int64("trade_id", t.ID),
		zap.Float64("entry", t.EntryPrice))
	return domain.TradeEvent{
		Action:     domain.EventOpened,
		TradeID:    t.ID,
		Instrument: t.Instrument,
		Price:      t.EntryPrice,
	}, nil
}

// closeTrade settles an open position at the tick price. The exit and
// the balance credit are staged on copies and committed together after
// both repositories accepted them; on a persistence failure the trade
// stays OPEN in memory and the close is retried on the next tick.
func (l *LedgerService) closeTrade(ctx context.Context, t *domain.Trade, price float64) (domain.TradeEvent, error) {
	closed := *t
	closed.Status = domain.StatusClosed
	closed.ExitPrice = price
	closed.ClosedAt = l.now()

	diff := price - closed.EntryPrice
	if closed.Direction == domain.DirectionSell {
		diff = -diff
	}
	closed.Commission = closed.EntryPrice * closed.Size * l.cfg.CommissionRate * 2
	closed.ProfitLoss = diff*closed.Size*l.cfg.PointValue - closed.Commission

	acc, err := l.ensureAccount(ctx, t.Instrument)
	if err != nil {
		return domain.TradeEvent{}, err
	}
	settled := *acc
	settled.CurrentBalance += closed.ProfitLoss
	l.applyDrawdown(&settled)
	settled.UpdatedAt = l.now()

	if err := l.trades.UpdateTrade(ctx, &closed); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("persist close: %w", err)
	}
	if err := l.accounts.SaveAccount(ctx, &settled); err != nil {
		return domain.TradeEvent{}, fmt.Errorf("persist account: %w", err)
	}

	*t = closed
	*acc = settled
	l.stateMu.Lock()
	delete(l.active, t.Instrument)
	l.stateMu.Unlock()

	l.appendLog(ctx, "trade_closed", t.Instrument, "position closed", map[string]any{
		"trade_id":   t.ID,
		"exit":       price,
		"profit":     t.ProfitLoss,
		"commission": t.Commission,
		"balance":    acc.CurrentBalance,
	})
	l.logger.Info("trade closed",
		zap.String("instrument", t.Instrument),
		zap.Int64("trade_id", t.ID),
		zap.Float64("exit", price),
		zap.Float64("profit", t.ProfitLoss),
		zap.Float64("balance", acc.CurrentBalance))
	if acc.Blocked {
		l.logger.Warn("account blocked by drawdown",
			zap.String("instrument", t.Instrument),
			zap.Float64("drawdown_pct", acc.DrawdownPct))
	}
	return domain.TradeEvent{
		Action:     domain.EventClosed,
		TradeID:    t.ID,
		Instrument: t.Instrument,
		Price:      price,
		Profit:     t.ProfitLoss,
	}, nil
}

// applyDrawdown recomputes the peak-relative drawdown and trips the
// circuit breaker at the configured threshold. The block is sticky until
// an explicit reset.
func (l *LedgerService) applyDrawdown(acc *domain.Account) {
	if acc.CurrentBalance > acc.MaxBalance {
		acc.MaxBalance = acc.CurrentBalance
	}
	base := acc.MaxBalance
	if acc.InitialBalance > base {
		base = acc.InitialBalance
	}
	if base <= 0 {
		acc.DrawdownPct = 0
		return
	}
	acc.DrawdownPct = (acc.MaxBalance - acc.CurrentBalance) / base * 100
	if acc.DrawdownPct < 0 {
		acc.DrawdownPct = 0
	}
	if acc.DrawdownPct >= l.cfg.MaxDrawdownPct {
		acc.Blocked = true
	}
}

// ResetAccount restores the account to its initial balance, lifts the
// drawdown block and cancels any non-terminal trade.
func (l *LedgerService) ResetAccount(ctx context.Context, instrument string) error {
	unlock := l.locks.Lock(instrument)
	defer unlock()

	acc, err := l.ensureAccount(ctx, instrument)
	if err != nil {
		return err
	}

	if t := l.activeTrade(instrument); t != nil {
		t.Status = domain.StatusCancelled
		t.ClosedAt = l.now()
		if err := l.trades.UpdateTrade(ctx, t); err != nil {
			return fmt.Errorf("cancel trade %d: %w", t.ID, err)
		}
		l.stateMu.Lock()
		delete(l.active, instrument)
		l.stateMu.Unlock()
	}

	acc.CurrentBalance = acc.InitialBalance
	acc.MaxBalance = acc.InitialBalance
	acc.DrawdownPct = 0
	acc.Blocked = false
	acc.UpdatedAt = l.now()
	if err := l.accounts.SaveAccount(ctx, acc); err != nil {
		return fmt.Errorf("persist reset for %s: %w", instrument, err)
	}

	l.appendLog(ctx, "account_reset", instrument, "account reset to initial balance", map[string]any{
		"balance": acc.InitialBalance,
	})
	l.logger.Info("account reset", zap.String("instrument", instrument))
	return nil
}

// RecomputeDrawdowns refreshes and persists the drawdown figure for
// every known account.
func (l *LedgerService) RecomputeDrawdowns(ctx context.Context) {
	l.stateMu.RLock()
	instruments := make([]string, 0, len(l.cache))
	for instrument := range l.cache {
		instruments = append(instruments, instrument)
	}
	l.stateMu.RUnlock()

	for _, instrument := range instruments {
		unlock := l.locks.Lock(instrument)
		acc, err := l.ensureAccount(ctx, instrument)
		if err == nil {
			l.applyDrawdown(acc)
			acc.UpdatedAt = l.now()
			if err := l.accounts.SaveAccount(ctx, acc); err != nil {
				l.logger.Error("persist drawdown failed", zap.String("instrument", instrument), zap.Error(err))
			}
		}
		unlock()
	}
}

// AccountBalance returns the current balance, creating the account on
// first reference.
func (l *LedgerService) AccountBalance(ctx context.Context, instrument string) float64 {
	unlock := l.locks.Lock(instrument)
	defer unlock()
	acc, err := l.ensureAccount(ctx, instrument)
	if err != nil {
		l.logger.Error("load account failed", zap.String("instrument", instrument), zap.Error(err))
		return l.cfg.InitialBalance
	}
	return acc.CurrentBalance
}

// PeekBalance returns the current balance without the create-on-first-
// reference side effect: an instrument that has no account yet reports
// the configured initial balance and nothing is persisted.
func (l *LedgerService) PeekBalance(ctx context.Context, instrument string) float64 {
	l.stateMu.RLock()
	acc := l.cache[instrument]
	l.stateMu.RUnlock()
	if acc != nil {
		return acc.CurrentBalance
	}

	acc, err := l.accounts.GetAccount(ctx, instrument)
	if err != nil {
		l.logger.Error("load account failed", zap.String("instrument", instrument), zap.Error(err))
		return l.cfg.InitialBalance
	}
	if acc == nil {
		return l.cfg.InitialBalance
	}
	return acc.CurrentBalance
}

// Stats aggregates the account state with closed-trade tallies.
func (l *LedgerService) Stats(ctx context.Context, instrument string) (*domain.AccountStats, error) {
	unlock := l.locks.Lock(instrument)
	acc, err := l.ensureAccount(ctx, instrument)
	unlock()
	if err != nil {
		return nil, err
	}

	trades, err := l.trades.ListTrades(ctx, instrument, 0)
	if err != nil {
		return nil, fmt.Errorf("list trades for %s: %w", instrument, err)
	}

	stats := &domain.AccountStats{
		Instrument:  instrument,
		Balance:     acc.CurrentBalance,
		DrawdownPct: acc.DrawdownPct,
		Blocked:     acc.Blocked,
	}
	for _, t := range trades {
		switch t.Status {
		case domain.StatusClosed:
			stats.TotalTrades++
			stats.NetProfit += t.ProfitLoss
			if t.ProfitLoss > 0 {
				stats.Wins++
			} else {
				stats.Losses++
			}
		case domain.StatusPending, domain.StatusOpen:
			stats.OpenPositions++
		}
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	}
	return stats, nil
}

// StatsAll returns statistics for every known account.
func (l *LedgerService) StatsAll(ctx context.Context) ([]*domain.AccountStats, error) {
	accounts, err := l.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]*domain.AccountStats, 0, len(accounts))
	for _, acc := range accounts {
		stats, err := l.Stats(ctx, acc.Instrument)
		if err != nil {
			return nil, err
		}
		out = append(out, stats)
	}
	return out, nil
}

func (l *LedgerService) activeTrade(instrument string) *domain.Trade {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.active[instrument]
}

// ensureAccount returns the cached account, falling back to the
// repository and finally creating a fresh one at the initial balance.
// Callers must hold the instrument lock.
func (l *LedgerService) ensureAccount(ctx context.Context, instrument string) (*domain.Account, error) {
	l.stateMu.RLock()
	acc := l.cache[instrument]
	l.stateMu.RUnlock()
	if acc != nil {
		return acc, nil
	}

	acc, err := l.accounts.GetAccount(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("load account for %s: %w", instrument, err)
	}
	if acc == nil {
		acc = &domain.Account{
			Instrument:     instrument,
			InitialBalance: l.cfg.InitialBalance,
			CurrentBalance: l.cfg.InitialBalance,
			MaxBalance:     l.cfg.InitialBalance,
			UpdatedAt:      l.now(),
		}
		if err := l.accounts.SaveAccount(ctx, acc); err != nil {
			return nil, fmt.Errorf("create account for %s: %w", instrument, err)
		}
		l.logger.Info("account created",
			zap.String("instrument", instrument),
			zap.Float64("balance", acc.InitialBalance))
	}

	l.stateMu.Lock()
	l.cache[instrument] = acc
	l.stateMu.Unlock()
	return acc, nil
}

func (l *LedgerService) appendLog(ctx context.Context, event, instrument, message string, data map[string]any) {
	if l.events == nil {
		return
	}
	if err := l.events.AppendLog(ctx, event, instrument, message, data); err != nil {
		l.logger.Warn("append event log failed", zap.String("event", event), zap.Error(err))
	}
}
