package session

import (
	"context"
	"time"

	"github.com/valarieck/waconcierge/pkg/logging"
)

// Sweeper periodically deletes expired sessions. The sweep is advisory:
// the conversation engine re-checks expiry on every read, so correctness
// does not depend on timer precision.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *logging.Logger
	onSweep  func(removed int)
}

// NewSweeper creates a sweeper over store firing every interval.
func NewSweeper(store Store, interval time.Duration, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// OnSweep registers a callback invoked with the number of removed sessions
// after each sweep that removed at least one.
func (s *Sweeper) OnSweep(fn func(removed int)) {
	s.onSweep = fn
}

// Run blocks, sweeping until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.store.Sweep(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Debug("session sweep", "removed", removed)
				if s.onSweep != nil {
					s.onSweep(removed)
				}
			}
		}
	}
}
