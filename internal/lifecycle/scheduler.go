package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires each sweep kind on its own cron schedule (UTC).
type Scheduler struct {
	sweeper   *Sweeper
	schedules map[Kind]string
	logger    *slog.Logger
	cron      *cron.Cron
}

func NewScheduler(sweeper *Sweeper, schedules map[Kind]string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		sweeper:   sweeper,
		schedules: schedules,
		logger:    logger,
		cron:      c,
	}
}

// Start registers every scheduled kind and starts the cron loop. Jobs run
// with ctx, so cancelling it stops in-flight sweeps between units.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, kind := range Kinds {
		spec, ok := s.schedules[kind]
		if !ok || spec == "" {
			s.logger.Info("sweep not scheduled", "kind", kind)
			continue
		}

		_, err := s.cron.AddFunc(spec, func() { s.run(ctx, kind) })
		if err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", kind, spec, err)
		}
		s.logger.Info("sweep scheduled", "kind", kind, "schedule", spec)
	}

	s.cron.Start()
	return nil
}

// Stop stops firing new jobs and waits for running ones.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("sweeps still running at shutdown")
	}
}

func (s *Scheduler) run(ctx context.Context, kind Kind) {
	report, err := s.sweeper.Run(ctx, kind)
	if errors.Is(err, ErrSweepInProgress) {
		s.logger.Info("sweep skipped, previous run still active", "kind", kind)
		return
	}
	if err != nil {
		s.logger.Error("sweep failed", "kind", kind, "error", err)
		return
	}

	level := slog.LevelInfo
	if len(report.Failures) > 0 {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "sweep completed",
		"kind", kind,
		"examined", report.Examined,
		"transitioned", report.Transitioned,
		"skipped", report.Skipped,
		"failed", len(report.Failures),
		"duration", report.Duration,
	)
}
