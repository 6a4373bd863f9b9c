// Package jobs runs periodic maintenance work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"podshare/internal/middleware"

	"github.com/robfig/cron/v3"
)

// Reconciler repairs drift between stored spot counts and memberships.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	timeout    time.Duration
}

// NewScheduler registers the capacity reconciler on spec, which accepts
// standard five-field cron expressions and descriptors such as "@every 15m".
func NewScheduler(spec string, reconciler Reconciler) (*Scheduler, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{cron: c, reconciler: reconciler, timeout: 5 * time.Minute}
	if _, err := c.AddFunc(spec, s.reconcile); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, _ = s.RunReconcile(ctx)
}

// RunReconcile runs one reconciliation pass immediately.
func (s *Scheduler) RunReconcile(ctx context.Context) (int, error) {
	start := time.Now()
	repaired, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "capacity reconcile failed",
			slog.Int("repaired", repaired),
			slog.String("error", err.Error()),
		)
		return repaired, err
	}
	middleware.Logger.InfoContext(ctx, "capacity reconcile finished",
		slog.Int("repaired", repaired),
		slog.Duration("took", time.Since(start)),
	)
	return repaired, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	middleware.Logger.Info("starting cron scheduler", slog.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running job to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts cron's logger to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	middleware.Logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)
	middleware.Logger.Error("cron: "+msg, args...)
}
