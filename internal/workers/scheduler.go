// Package workers runs background jobs for the server.
package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leadproton/server/pkg/logger"
)

// Deliverer sends follow-ups that have come due.
type Deliverer interface {
	DeliverDue(ctx context.Context) (int, error)
}

// Scheduler polls for due follow-ups on a fixed interval.
type Scheduler struct {
	deliverer Deliverer
	interval  time.Duration
	logger    *logger.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(d Deliverer, interval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		deliverer: d,
		interval:  interval,
		logger:    logger.OrGlobal(log).Named("scheduler"),
	}
}

// Run ticks until ctx is done. The first tick runs immediately.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	n, err := s.deliverer.DeliverDue(ctx)
	if err != nil {
		s.logger.Error("failed to deliver scheduled emails", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("scheduled emails delivered", zap.Int("count", n))
	}
}
