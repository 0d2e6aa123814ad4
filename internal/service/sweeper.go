package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Sweeper runs the duel expiry sweep on a fixed interval, in addition to the
// lazy sweep every duel operation performs. Duels then expire close to their
// deadline instead of on next access.
type Sweeper struct {
	sched gocron.Scheduler
	log   *slog.Logger
}

func NewSweeper(duels *DuelService, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = slog.Default()
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()

			n, err := duels.SweepExpired(ctx)
			if err != nil {
				logger.Error("duel sweep failed", "error", err)
				return
			}
			if n > 0 {
				logger.Info("duel sweep expired duels", "count", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule duel sweep: %w", err)
	}

	return &Sweeper{sched: sched, log: logger}, nil
}

func (s *Sweeper) Start() {
	s.sched.Start()
}

func (s *Sweeper) Stop() error {
	return s.sched.Shutdown()
}
