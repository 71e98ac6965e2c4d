package usecase

import (
	"time"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

const (
	// pivotStrengthWindow bounds the neighborhood used to measure how far
	// a pivot extreme dominates the opposing side.
	pivotStrengthWindow = 50

	fractalDepth          = 5
	fractalStrengthWindow = 20
)

// LevelExtractor scans a candle series for locally dominant extrema.
// Two independent passes run unconditionally: a configurable pivot pass
// and a fixed-window fractal pass. Their results are unioned; duplicate
// levels at similar prices are acceptable because the potential field
// sums contributions.
type LevelExtractor struct{}

func NewLevelExtractor() *LevelExtractor {
	return &LevelExtractor{}
}

// Extract returns all levels above minStrength. A series shorter than a
// pass's minimum window yields an empty result for that pass, not an error.
func (e *LevelExtractor) Extract(candles []domain.Candle, depth int, minStrength float64) []domain.Level {
	levels := e.extractPass(candles, depth, pivotStrengthWindow, minStrength)
	levels = append(levels, e.extractPass(candles, fractalDepth, fractalStrengthWindow, minStrength)...)
	return levels
}

func (e *LevelExtractor) extractPass(candles []domain.Candle, depth, strengthWindow int, minStrength float64) []domain.Level {
	if len(candles) < 2*depth+1 {
		return nil
	}

	var levels []domain.Level
	for i := depth; i < len(candles)-depth; i++ {
		if isStrictHigh(candles, i, depth) {
			strength := dominance(candles, i, strengthWindow, true)
			if strength >= minStrength {
				levels = append(levels, domain.Level{
					Time:         time.Unix(candles[i].Time, 0).UTC(),
					Price:        candles[i].High,
					Strength:     strength,
					IsResistance: true,
				})
			}
		}
		if isStrictLow(candles, i, depth) {
			strength := dominance(candles, i, strengthWindow, false)
			if strength >= minStrength {
				levels = append(levels, domain.Level{
					Time:         time.Unix(candles[i].Time, 0).UTC(),
					Price:        candles[i].Low,
					Strength:     strength,
					IsResistance: false,
				})
			}
		}
	}
	return levels
}

// isStrictHigh reports whether candle i holds the strict maximum high
// within the symmetric +/-depth window.
func isStrictHigh(candles []domain.Candle, i, depth int) bool {
	for j := i - depth; j <= i+depth; j++ {
		if j == i {
			continue
		}
		if candles[j].High >= candles[i].High {
			return false
		}
	}
	return true
}

func isStrictLow(candles []domain.Candle, i, depth int) bool {
	for j := i - depth; j <= i+depth; j++ {
		if j == i {
			continue
		}
		if candles[j].Low <= candles[i].Low {
			return false
		}
	}
	return true
}

// dominance measures the maximum absolute distance from the extreme to
// any opposing-side price within the strength window, a proxy for how
// much the level dominates its neighborhood.
func dominance(candles []domain.Candle, i, window int, resistance bool) float64 {
	from := i - window
	if from < 0 {
		from = 0
	}
	to := i + window
	if to > len(candles)-1 {
		to = len(candles) - 1
	}

	var best float64
	for j := from; j <= to; j++ {
		var d float64
		if resistance {
			d = candles[i].High - candles[j].Low
		} else {
			d = candles[j].High - candles[i].Low
		}
		if d > best {
			best = d
		}
	}
	return best
}
