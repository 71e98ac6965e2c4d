package usecase_test

import (
	"math"
	"testing"
	"time"

	"github.com/vitos/trade_signal_engine/internal/domain"
	"github.com/vitos/trade_signal_engine/internal/usecase"
)

func TestDecayHalvesOverDecayPeriod(t *testing.T) {
	decay := usecase.NewLevelDecay()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	levels := []domain.Level{
		{Time: now.Add(-7 * 24 * time.Hour), Price: 100, Strength: 10, IsResistance: true},
	}
	out := decay.Apply(levels, 7, 60, now)

	want := 10 * math.Exp(-1)
	if !floatEquals(out[0].Strength, want) {
		t.Errorf("decayed strength = %f, want %f", out[0].Strength, want)
	}
}

func TestDecayFreshLevelUntouched(t *testing.T) {
	decay := usecase.NewLevelDecay()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	levels := []domain.Level{
		{Time: now, Price: 100, Strength: 10},
	}
	out := decay.Apply(levels, 7, 60, now)
	if !floatEquals(out[0].Strength, 10) {
		t.Errorf("fresh level strength = %f, want 10", out[0].Strength)
	}
}

func TestDecaySortsAndTruncates(t *testing.T) {
	decay := usecase.NewLevelDecay()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var levels []domain.Level
	for i := 0; i < 100; i++ {
		levels = append(levels, domain.Level{
			Time:     now,
			Price:    float64(100 + i),
			Strength: float64(i),
		})
	}

	out := decay.Apply(levels, 7, 60, now)
	if len(out) != 60 {
		t.Fatalf("Apply() kept %d levels, want 60", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Strength > out[i-1].Strength {
			t.Fatalf("levels not sorted by strength: %f after %f", out[i].Strength, out[i-1].Strength)
		}
	}
	// The strongest must survive truncation.
	if !floatEquals(out[0].Strength, 99) {
		t.Errorf("strongest level = %f, want 99", out[0].Strength)
	}
}
