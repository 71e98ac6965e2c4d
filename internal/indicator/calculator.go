// Package indicator is the single authoritative home for indicator math.
// ATR supports Wilder smoothing and a simple-average variant as an explicit
// configuration choice; ADX uses the Wilder (library) formula.
package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/vitos/trade_signal_engine/internal/domain"
)

// avgWindow is the lookback used for the ATR and volume baselines.
const avgWindow = 20

type Calculator struct {
	cfg *domain.StrategyConfig
}

func NewCalculator(cfg *domain.StrategyConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// MinBars returns the shortest series Compute accepts for this config.
func (c *Calculator) MinBars() int {
	min := c.cfg.ATRPeriod + avgWindow + 1
	if n := c.cfg.RSIPeriod + 1; n > min {
		min = n
	}
	if n := c.cfg.EMAPeriod + 1; n > min {
		min = n
	}
	if n := 2*c.cfg.ADXPeriod + 1; n > min {
		min = n
	}
	return min
}

// Compute evaluates the full indicator snapshot over an ordered candle
// series. A series shorter than MinBars is an insufficient-data error; the
// caller resolves it as a NONE signal rather than a failure.
func (c *Calculator) Compute(candles []domain.Candle) (*domain.Indicators, error) {
	if len(candles) < c.MinBars() {
		return nil, fmt.Errorf("insufficient bars: have %d, need %d", len(candles), c.MinBars())
	}

	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, cd := range candles {
		highs[i] = cd.High
		lows[i] = cd.Low
		closes[i] = cd.Close
		volumes[i] = cd.Volume
	}

	atrSeries := c.atrSeries(highs, lows, closes)
	atr := atrSeries[len(atrSeries)-1]
	avgATR := last(talib.Sma(atrSeries, avgWindow))

	rsi := last(talib.Rsi(closes, c.cfg.RSIPeriod))
	ema := last(talib.Ema(closes, c.cfg.EMAPeriod))
	adx := last(talib.Adx(highs, lows, closes, c.cfg.ADXPeriod))

	volumeRatio := 1.0
	if avgVol := last(talib.Sma(volumes, avgWindow)); avgVol > 0 {
		volumeRatio = volumes[len(volumes)-1] / avgVol
	}

	snap := &domain.Indicators{
		ATR:         atr,
		AvgATR:      avgATR,
		RSI:         rsi,
		EMA:         ema,
		ADX:         adx,
		VolumeRatio: volumeRatio,
	}
	if math.IsNaN(snap.ATR) || math.IsNaN(snap.RSI) || math.IsNaN(snap.EMA) {
		return nil, fmt.Errorf("indicator computation produced NaN")
	}
	return snap, nil
}

func (c *Calculator) atrSeries(highs, lows, closes []float64) []float64 {
	if c.cfg.ATRMode == domain.ATRSimple {
		return talib.Sma(trueRange(highs, lows, closes), c.cfg.ATRPeriod)
	}
	return talib.Atr(highs, lows, closes, c.cfg.ATRPeriod)
}

// trueRange computes the classic max(H-L, |H-prevC|, |L-prevC|) series.
func trueRange(highs, lows, closes []float64) []float64 {
	tr := make([]float64, len(highs))
	for i := range highs {
		hl := highs[i] - lows[i]
		if i == 0 {
			tr[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
