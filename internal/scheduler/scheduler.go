// Package scheduler drives periodic scan cycles. Overlap protection is
// layered: cron skips a tick while the previous one runs, and the pipeline
// itself refuses concurrent runs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner is the unit of work the scheduler triggers each interval.
type Runner interface {
	Run(ctx context.Context)
}

// RunnerFunc adapts a function into a Runner.
type RunnerFunc func(ctx context.Context)

func (f RunnerFunc) Run(ctx context.Context) { f(ctx) }

// Scheduler runs the pipeline immediately at startup and then on a fixed
// interval until its context is cancelled.
type Scheduler struct {
	interval time.Duration
	runner   Runner
	logger   *slog.Logger
}

func New(interval time.Duration, runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		runner:   runner,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. The first scan starts right away;
// subsequent scans fire every interval. A tick that lands while the
// previous scan is still going is skipped, never queued.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(&cronLogger{s.logger}),
	))

	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := c.AddFunc(spec, func() {
		s.runner.Run(ctx)
	})
	if err != nil {
		return fmt.Errorf("scheduling scan every %s: %w", s.interval, err)
	}

	s.logger.Info("scheduler started", "interval", s.interval)

	// First scan immediately; cron waits a full interval before its first fire.
	s.runner.Run(ctx)

	c.Start()
	<-ctx.Done()

	s.logger.Info("scheduler stopping, waiting for in-flight scan")
	<-c.Stop().Done()
	return ctx.Err()
}

// cronLogger adapts slog to cron's logging interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
