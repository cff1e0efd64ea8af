package workflow

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/forkpromoter/internal/logfields"
)

// Scheduler runs the orchestrator periodically and on manual triggers.
// Runs are serialized, a trigger arriving while a run is in progress is
// coalesced into at most one pending run.
type Scheduler struct {
	orchestrator *Orchestrator
	interval     time.Duration
	logger       *zap.Logger

	triggerCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewScheduler(orchestrator *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     interval,
		logger:       zap.L().Named("scheduler"),
		triggerCh:    make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
}

// Start launches the schedule loop in a goroutine. The loop runs until
// Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info(
		"scheduler started",
		logfields.Event("scheduler_started"),
		zap.Duration("interval", s.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.stopCh:
			return

		case <-ticker.C:
			s.run(ctx, "schedule")

		case <-s.triggerCh:
			s.run(ctx, "manual")
		}
	}
}

// Trigger requests an immediate run. It never blocks and reports
// whether the request was accepted. A false return means a manual run
// is already pending.
func (s *Scheduler) Trigger() bool {
	select {
	case s.triggerCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop terminates the schedule loop and waits for an in-progress run to
// finish. The wait also covers a loop whose goroutine was not yet
// scheduled, Start registers it before launching.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, cause string) {
	s.logger.Info(
		"starting workflow run",
		logfields.Event("run_triggered"),
		zap.String("cause", cause),
	)

	outcome, err := s.orchestrator.Run(ctx)
	if err != nil {
		s.logger.Warn(
			"workflow run ended with error",
			logfields.Event("run_errored"),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)

		return
	}

	s.logger.Info(
		"workflow run ended",
		logfields.Event("run_ended"),
		zap.String("outcome", string(outcome)),
	)
}
