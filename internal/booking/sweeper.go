package booking

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically completes bookings that have ended.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(m *Manager, interval time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{manager: m, interval: interval, log: log}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("starting completion sweeper", "interval", s.interval)
	s.SweepOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("completion sweeper shutting down")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// SweepOnce runs a single completion pass.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	n, err := s.manager.CompleteElapsed(ctx)
	if err != nil {
		s.log.Error("completion sweep failed", "err", err)
		return
	}
	if n > 0 {
		s.log.Info("completed elapsed bookings", "count", n)
	}
}
