package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vitos/trade_signal_engine/internal/domain"
)

// SignalTracker remembers the last signal direction per instrument and
// mode so callers can act on direction changes only. State survives
// restarts through the repository; reads go through an in-memory cache.
type SignalTracker struct {
	repo   domain.SignalStateRepository
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]domain.Direction
}

func NewSignalTracker(repo domain.SignalStateRepository, logger *zap.Logger) *SignalTracker {
	return &SignalTracker{
		repo:   repo,
		logger: logger,
		cache:  make(map[string]domain.Direction),
	}
}

// Observe records the direction for (instrument, mode) and reports
// whether it differs from the previous observation. The first
// observation ever is never a change.
func (t *SignalTracker) Observe(ctx context.Context, instrument, mode string, dir domain.Direction) (changed bool, previous domain.Direction) {
	key := instrument + "|" + mode

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, known := t.cache[key]
	if !known && t.repo != nil {
		stored, err := t.repo.GetSignalState(ctx, instrument, mode)
		if err != nil {
			t.logger.Warn("load signal state failed",
				zap.String("instrument", instrument),
				zap.String("mode", mode),
				zap.Error(err))
		} else if stored != "" {
			prev = stored
			known = true
		}
	}

	t.cache[key] = dir
	if t.repo != nil && (!known || prev != dir) {
		if err := t.repo.SaveSignalState(ctx, instrument, mode, dir); err != nil {
			t.logger.Warn("save signal state failed",
				zap.String("instrument", instrument),
				zap.String("mode", mode),
				zap.Error(err))
		}
	}
	return known && prev != dir, prev
}
