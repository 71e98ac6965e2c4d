package usecase

import (
	"math"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

const (
	// crossedLevelWeight discounts a level the price has already broken
	// through; it still exerts some pull but far less than an intact one.
	crossedLevelWeight = 0.15

	trendWeight = 0.05
	rsiWeight   = 0.03

	// minRadiusUnit floors the Gaussian width when ATR collapses to zero
	// on a flat series.
	minRadiusUnit = 1e-9
)

// PotentialField scores the net pressure a set of levels exerts at a
// price. Resistance above contributes positive (sell) pressure, support
// below contributes negative (buy) pressure, each weighted by a Gaussian
// of the distance. Evaluate is pure: identical inputs always produce the
// identical output.
type PotentialField struct{}

func NewPotentialField() *PotentialField {
	return &PotentialField{}
}

func (f *PotentialField) Evaluate(price, atr, ema, rsi float64, levels []domain.Level, radiusFactor float64) domain.Potential {
	h := atr
	if h < minRadiusUnit {
		h = minRadiusUnit
	}
	radius := radiusFactor * h

	var levelComp float64
	for _, lv := range levels {
		d := price - lv.Price
		if math.Abs(d) > radius {
			continue
		}
		w := lv.Strength * math.Exp(-(d*d)/(2*h*h))
		if lv.IsResistance {
			if price > lv.Price {
				w *= crossedLevelWeight
			}
			levelComp += w
		} else {
			if price < lv.Price {
				w *= crossedLevelWeight
			}
			levelComp -= w
		}
	}

	trendComp := -(price - ema)
	rsiComp := rsi - 50

	return domain.Potential{
		LevelComponent: levelComp,
		TrendComponent: trendComp,
		RSIComponent:   rsiComp,
		Total:          levelComp + trendWeight*trendComp + rsiWeight*rsiComp,
	}
}
