package usecase

import (
	"math"
	"time"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

// newsWindows are the daily UTC intervals during which the time filter
// suppresses new signals. They cover the usual macro release slots.
var newsWindows = []struct {
	fromH, fromM, toH, toM int
}{
	{14, 25, 14, 35},
	{16, 55, 17, 5},
}

// SignalEvaluator holds the pure decision math of the strategy: filter
// checks, directional thresholds, entry and exit placement and position
// sizing. It carries no state so each method can be reasoned about and
// tested in isolation.
type SignalEvaluator struct{}

func NewSignalEvaluator() *SignalEvaluator {
	return &SignalEvaluator{}
}

// FailedFilters returns the names of every enabled filter the current
// conditions violate. An empty slice means the setup may proceed.
func (e *SignalEvaluator) FailedFilters(ind *domain.Indicators, cfg *domain.StrategyConfig, now time.Time) []string {
	var failed []string
	if cfg.VolatilityFilter && ind.AvgATR > 0 && ind.ATR > ind.AvgATR*cfg.MaxATRMultiplier {
		failed = append(failed, "volatility")
	}
	if cfg.TimeFilter && inNewsWindow(now.UTC()) {
		failed = append(failed, "time")
	}
	if cfg.VolumeFilter && ind.VolumeRatio < cfg.MinVolumeRatio {
		failed = append(failed, "volume")
	}
	return failed
}

func inNewsWindow(t time.Time) bool {
	minutes := t.Hour()*60 + t.Minute()
	for _, w := range newsWindows {
		if minutes >= w.fromH*60+w.fromM && minutes <= w.toH*60+w.toM {
			return true
		}
	}
	return false
}

// Decide applies the directional thresholds. A BUY requires net buy
// pressure from levels at the ask, a total beyond the buy threshold and
// an oversold-leaning RSI; a SELL mirrors that at the bid. Both failing
// yields no signal.
func (e *SignalEvaluator) Decide(askPot, bidPot domain.Potential, rsi float64, cfg *domain.StrategyConfig) domain.Direction {
	if askPot.LevelComponent < 0 &&
		askPot.Total < -cfg.MinPotentialStrength*cfg.BuyMultiplier &&
		rsi < cfg.BuyRSIThreshold {
		return domain.DirectionBuy
	}
	if bidPot.LevelComponent > 0 &&
		bidPot.Total > cfg.MinPotentialStrength*cfg.SellMultiplier &&
		rsi > cfg.SellRSIThreshold {
		return domain.DirectionSell
	}
	return domain.DirectionNone
}

// Confidence maps the total potential onto [0, 1].
func (e *SignalEvaluator) Confidence(total float64) float64 {
	c := math.Abs(total) / 2
	if c > 1 {
		c = 1
	}
	return c
}

// EntryPrice picks the working side of the spread. Breakout mode enters
// with the market (ask for a BUY), limit mode rests on the passive side.
func (e *SignalEvaluator) EntryPrice(dir domain.Direction, bid, ask float64, mode domain.ExecutionMode) float64 {
	if dir == domain.DirectionBuy {
		if mode == domain.ModeBreakout {
			return ask
		}
		return bid
	}
	if mode == domain.ModeBreakout {
		return bid
	}
	return ask
}

// Stops places the stop loss and take profit as ATR multiples around the
// entry.
func (e *SignalEvaluator) Stops(dir domain.Direction, entry, atr float64, cfg *domain.StrategyConfig) (stopLoss, takeProfit float64) {
	if dir == domain.DirectionBuy {
		return entry - cfg.StopATRMultiple*atr, entry + cfg.TargetATRMultiple*atr
	}
	return entry + cfg.StopATRMultiple*atr, entry - cfg.TargetATRMultiple*atr
}

// PositionSize converts the configured risk percentage of the balance
// into a size given the stop distance. When dynamic sizing is off or the
// stop distance is degenerate, the fixed base size is used.
func (e *SignalEvaluator) PositionSize(balance, stopDistance float64, cfg *domain.StrategyConfig) float64 {
	if !cfg.DynamicSizing || stopDistance <= 0 {
		return cfg.BaseSize
	}
	riskAmount := balance * cfg.RiskPercent / 100
	size := riskAmount / (stopDistance * 100 * cfg.TickValue)
	if size < cfg.MinSize {
		size = cfg.MinSize
	}
	if size > cfg.MaxSize {
		size = cfg.MaxSize
	}
	return math.Round(size*100) / 100
}
