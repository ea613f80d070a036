// Package scheduler fires a trigger once on start and then at a fixed
// cadence until the context is cancelled.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/3ColumnsC/Stock-Exchange-Project/internal/logger"
)

// Trigger is invoked on every tick. It must be safe to call while a previous
// invocation is still running; the monitor drops overlapping cycles itself.
type Trigger func(ctx context.Context)

type Scheduler struct {
	interval time.Duration
	trigger  Trigger
	wg       sync.WaitGroup

	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func New(interval time.Duration, trigger Trigger) *Scheduler {
	return &Scheduler{
		interval: interval,
		trigger:  trigger,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run blocks until ctx is done, then waits for in-flight triggers to return.
// Ticks are never queued: a slow trigger does not cause a burst of catch-up
// calls afterwards.
func (s *Scheduler) Run(ctx context.Context) error {
	ticks, stop := s.newTicker(s.interval)
	defer stop()

	logger.Debug("Running initial cycle")
	s.fire(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopping, waiting for running cycle")
			s.wg.Wait()
			return nil
		case <-ticks:
			logger.Debug("Starting scheduled cycle")
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.trigger(ctx)
	}()
}
