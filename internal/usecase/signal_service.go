package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/domain"
	"github.com/vitos/trade_signal_engine/internal/indicator"
)

const (
	// minSignalBars is the minimum candle history for any evaluation at
	// all; shorter series produce a NONE signal with a reason.
	minSignalBars = 50

	// rebuildInterval and minRebuildBars gate how often the level set is
	// recomputed for an instrument.
	rebuildInterval = time.Hour
	minRebuildBars  = 50

	// spreadFactor sets the synthetic spread as a fraction of ATR.
	spreadFactor = 0.001
)

// strategyState is the per-instrument mutable context: the ranked level
// set and when it was last rebuilt.
type strategyState struct {
	levels      []domain.Level
	lastRebuild time.Time
}

// SignalService turns a candle series and a current price into a trade
// signal. It owns the cached level sets and delegates the pure math to
// the extractor, decay, field and evaluator.
type SignalService struct {
	configs   domain.StrategyConfigStore
	extractor *LevelExtractor
	decay     *LevelDecay
	field     *PotentialField
	evaluator *SignalEvaluator
	logger    *zap.Logger

	mu     sync.Mutex
	states map[string]*strategyState

	now func() time.Time
}

func NewSignalService(configs domain.StrategyConfigStore, logger *zap.Logger) *SignalService {
	return &SignalService{
		configs:   configs,
		extractor: NewLevelExtractor(),
		decay:     NewLevelDecay(),
		field:     NewPotentialField(),
		evaluator: NewSignalEvaluator(),
		logger:    logger,
		states:    make(map[string]*strategyState),
		now:       time.Now,
	}
}

// GenerateSignal runs one evaluation cycle. Insufficient data and failed
// filters are normal outcomes reported as a NONE signal with a reason;
// only configuration and collaborator failures surface as errors.
func (s *SignalService) GenerateSignal(ctx context.Context, instrument string, candles []domain.Candle, price, accountBalance float64) (*domain.Signal, error) {
	cfg, err := s.configs.LoadStrategyConfig(instrument)
	if err != nil {
		return nil, fmt.Errorf("load strategy config for %s: %w", instrument, err)
	}
	now := s.now()
	sig := &domain.Signal{
		Instrument: instrument,
		Direction:  domain.DirectionNone,
		Time:       now,
	}

	if len(candles) < minSignalBars {
		sig.Reason = fmt.Sprintf("insufficient data: %d candles, need %d", len(candles), minSignalBars)
		return sig, nil
	}

	levels := s.levelsFor(instrument, cfg, candles, now)

	calc := indicator.NewCalculator(cfg)
	ind, err := calc.Compute(candles)
	if err != nil {
		sig.Reason = fmt.Sprintf("indicators unavailable: %v", err)
		return sig, nil
	}
	sig.Indicators = *ind

	if failed := s.evaluator.FailedFilters(ind, cfg, now); len(failed) > 0 {
		sig.Reason = "filters failed: " + strings.Join(failed, ", ")
		return sig, nil
	}

	h := ind.ATR
	if h < minRadiusUnit {
		h = minRadiusUnit
	}
	spread := h * spreadFactor
	ask := price + spread/2
	bid := price - spread/2

	askPot := s.field.Evaluate(ask, ind.ATR, ind.EMA, ind.RSI, levels, cfg.RadiusFactor)
	bidPot := s.field.Evaluate(bid, ind.ATR, ind.EMA, ind.RSI, levels, cfg.RadiusFactor)

	dir := s.evaluator.Decide(askPot, bidPot, ind.RSI, cfg)
	if dir == domain.DirectionNone {
		sig.Potential = askPot
		sig.Reason = "potential below threshold"
		return sig, nil
	}

	if dir == domain.DirectionBuy {
		sig.Potential = askPot
	} else {
		sig.Potential = bidPot
	}
	sig.Direction = dir
	sig.Confidence = s.evaluator.Confidence(sig.Potential.Total)
	sig.EntryPrice = s.evaluator.EntryPrice(dir, bid, ask, cfg.Mode)
	sig.StopLoss, sig.TakeProfit = s.evaluator.Stops(dir, sig.EntryPrice, ind.ATR, cfg)
	sig.Size = s.evaluator.PositionSize(accountBalance, math.Abs(sig.EntryPrice-sig.StopLoss), cfg)

	s.logger.Info("signal generated",
		zap.String("instrument", instrument),
		zap.String("direction", string(sig.Direction)),
		zap.Float64("entry", sig.EntryPrice),
		zap.Float64("total_potential", sig.Potential.Total),
		zap.Float64("confidence", sig.Confidence))
	return sig, nil
}

// RebuildLevels drops the cached level set so the next evaluation
// recomputes it from scratch.
func (s *SignalService) RebuildLevels(instrument string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, instrument)
}

// Levels returns a copy of the cached level set for inspection.
func (s *SignalService) Levels(instrument string) []domain.Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[instrument]
	if !ok {
		return nil
	}
	out := make([]domain.Level, len(st.levels))
	copy(out, st.levels)
	return out
}

func (s *SignalService) levelsFor(instrument string, cfg *domain.StrategyConfig, candles []domain.Candle, now time.Time) []domain.Level {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[instrument]
	if !ok {
		st = &strategyState{}
		s.states[instrument] = st
	}

	stale := st.lastRebuild.IsZero() || now.Sub(st.lastRebuild) >= rebuildInterval
	if stale && len(candles) >= minRebuildBars {
		raw := s.extractor.Extract(candles, cfg.LevelDepth, cfg.LevelMinStrength)
		st.levels = s.decay.Apply(raw, cfg.LevelDecayDays, cfg.MaxLevels, now)
		st.lastRebuild = now
		s.logger.Debug("levels rebuilt",
			zap.String("instrument", instrument),
			zap.Int("count", len(st.levels)))
	}

	out := make([]domain.Level, len(st.levels))
	copy(out, st.levels)
	return out
}
