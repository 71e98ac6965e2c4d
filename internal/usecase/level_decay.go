package usecase

import (
	"math"
	"sort"
	"time"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

// LevelDecay re-weights extracted levels by age and keeps only the
// strongest ones. Older levels fade exponentially so the field is
// dominated by structure the market has respected recently.
type LevelDecay struct{}

func NewLevelDecay() *LevelDecay {
	return &LevelDecay{}
}

// Apply decays each level's strength relative to now, ranks the set by
// strength descending and truncates to maxLevels. The input slice is
// modified and returned.
func (d *LevelDecay) Apply(levels []domain.Level, decayDays float64, maxLevels int, now time.Time) []domain.Level {
	for i := range levels {
		ageDays := now.Sub(levels[i].Time).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		levels[i].Strength *= math.Exp(-ageDays / decayDays)
	}

	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Strength > levels[j].Strength
	})
	if maxLevels > 0 && len(levels) > maxLevels {
		levels = levels[:maxLevels]
	}
	return levels
}
