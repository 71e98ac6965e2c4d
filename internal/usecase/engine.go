package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

// EngineOptions carry the market-data parameters an evaluation cycle
// needs.
type EngineOptions struct {
	Interval string
	Lookback int
	Mode     string
}

// Engine ties market data, signal generation and the ledger together.
// One evaluation of one instrument is a single critical section under
// that instrument's lock: fetch, generate, track, place, tick, with no
// interleaving from concurrent evaluations of the same instrument.
type Engine struct {
	market  domain.MarketData
	signals *SignalService
	ledger  *LedgerService
	tracker *SignalTracker
	logger  *zap.Logger
	opts    EngineOptions

	locks *keyedMutex
}

func NewEngine(market domain.MarketData, signals *SignalService, ledger *LedgerService, tracker *SignalTracker, logger *zap.Logger, opts EngineOptions) *Engine {
	if opts.Mode == "" {
		opts.Mode = "default"
	}
	return &Engine{
		market:  market,
		signals: signals,
		ledger:  ledger,
		tracker: tracker,
		logger:  logger,
		opts:    opts,
		locks:   newKeyedMutex(),
	}
}

// EvaluateInstrument runs one full cycle for one instrument and returns
// the generated signal. Market-data failures surface as errors so the
// caller can retry on the next schedule.
func (e *Engine) EvaluateInstrument(ctx context.Context, instrument string) (*domain.Signal, error) {
	unlock := e.locks.Lock(instrument)
	defer unlock()

	candles, err := e.market.GetCandles(ctx, instrument, e.opts.Interval, e.opts.Lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", instrument, err)
	}
	price, err := e.market.GetCurrentPrice(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("fetch price for %s: %w", instrument, err)
	}

	balance := e.ledger.AccountBalance(ctx, instrument)
	sig, err := e.signals.GenerateSignal(ctx, instrument, candles, price, balance)
	if err != nil {
		return nil, err
	}

	if changed, prev := e.tracker.Observe(ctx, instrument, e.opts.Mode, sig.Direction); changed {
		e.logger.Info("signal direction changed",
			zap.String("instrument", instrument),
			zap.String("previous", string(prev)),
			zap.String("current", string(sig.Direction)))
	}

	if sig.Actionable() {
		if _, err := e.ledger.PlaceOrder(ctx, sig); err != nil {
			return nil, err
		}
	}

	for _, ev := range e.ledger.Tick(ctx, map[string]float64{instrument: price}) {
		e.logger.Info("trade event",
			zap.String("action", ev.Action),
			zap.String("instrument", ev.Instrument),
			zap.Int64("trade_id", ev.TradeID),
			zap.Float64("price", ev.Price))
	}
	return sig, nil
}

// EvaluateAll evaluates every instrument concurrently. Failures are
// logged per instrument and never stop the others.
func (e *Engine) EvaluateAll(ctx context.Context, instruments []string) {
	var wg sync.WaitGroup
	for _, instrument := range instruments {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			if _, err := e.EvaluateInstrument(ctx, instrument); err != nil {
				e.logger.Error("evaluation failed",
					zap.String("instrument", instrument),
					zap.Error(err))
			}
		}(instrument)
	}
	wg.Wait()
}

// PreviewSignal generates a signal without touching the ledger or the
// direction tracker. Used by the HTTP API and the one-shot CLI.
func (e *Engine) PreviewSignal(ctx context.Context, instrument string) (*domain.Signal, error) {
	candles, err := e.market.GetCandles(ctx, instrument, e.opts.Interval, e.opts.Lookback)
	if err != nil {
		return nil, fmt.Errorf("fetch candles for %s: %w", instrument, err)
	}
	price, err := e.market.GetCurrentPrice(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("fetch price for %s: %w", instrument, err)
	}
	balance := e.ledger.PeekBalance(ctx, instrument)
	return e.signals.GenerateSignal(ctx, instrument, candles, price, balance)
}

// Tick forwards live prices straight to the ledger, serialized per
// instrument against running evaluations.
func (e *Engine) Tick(ctx context.Context, prices map[string]float64) []domain.TradeEvent {
	var out []domain.TradeEvent
	for instrument, price := range prices {
		unlock := e.locks.Lock(instrument)
		out = append(out, e.ledger.Tick(ctx, map[string]float64{instrument: price})...)
		unlock()
	}
	return out
}

// Ledger exposes the underlying ledger for account operations.
func (e *Engine) Ledger() *LedgerService {
	return e.ledger
}

// Signals exposes the signal service for level inspection.
func (e *Engine) Signals() *SignalService {
	return e.signals
}
