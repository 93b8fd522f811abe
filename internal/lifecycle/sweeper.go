package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrSweepInProgress = errors.New("sweep already in progress")
	ErrUnknownKind     = errors.New("unknown sweep kind")
)

type Clock interface {
	Now() time.Time
}

// Source lists candidates for one sweep kind and applies transitions to
// them. Apply must be idempotent: it reports false when the resource had
// already moved on (a concurrent request or an earlier run got there).
type Source interface {
	Candidates(ctx context.Context) ([]Expiring, error)
	Apply(ctx context.Context, item Expiring, t Transition) (bool, error)
}

// UnitError is one resource that failed during a sweep. The batch carries
// on and the resource is picked up again on the next run.
type UnitError struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

type Report struct {
	Kind         Kind
	StartedAt    time.Time
	Duration     time.Duration
	Examined     int
	Transitioned int
	// Skipped counts resources that were due but already transitioned.
	Skipped  int
	Failures []*UnitError
}

type Sweeper struct {
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	sources map[Kind]Source
	running map[Kind]bool
}

func NewSweeper(clock Clock, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		clock:   clock,
		logger:  logger,
		sources: make(map[Kind]Source),
		running: make(map[Kind]bool),
	}
}

func (s *Sweeper) Register(kind Kind, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[kind] = src
}

// Run performs one pass of the given kind. Only one pass per kind runs at a
// time; a second caller gets ErrSweepInProgress immediately.
func (s *Sweeper) Run(ctx context.Context, kind Kind) (Report, error) {
	report := Report{Kind: kind}

	s.mu.Lock()
	src, ok := s.sources[kind]
	if !ok {
		s.mu.Unlock()
		return report, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if s.running[kind] {
		s.mu.Unlock()
		return report, ErrSweepInProgress
	}
	s.running[kind] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, kind)
		s.mu.Unlock()
	}()

	start := time.Now()
	err := s.sweep(ctx, src, &report)
	report.Duration = time.Since(start)
	return report, err
}

func (s *Sweeper) sweep(ctx context.Context, src Source, report *Report) error {
	now := s.clock.Now()
	report.StartedAt = now

	items, err := src.Candidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list %s candidates: %w", report.Kind, err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		report.Examined++
		t := item.Evaluate(now)
		if t == NoOp {
			continue
		}

		changed, err := s.apply(ctx, src, item, t)
		if err != nil {
			report.Failures = append(report.Failures, &UnitError{Kind: report.Kind, ID: item.ID(), Err: err})
			s.logger.Warn("sweep unit failed", "kind", report.Kind, "id", item.ID(), "transition", t, "error", err)
			continue
		}
		if changed {
			report.Transitioned++
		} else {
			report.Skipped++
		}
	}
	return nil
}

// apply isolates one unit so that a panic is reported like any other
// failure instead of ending the pass.
func (s *Sweeper) apply(ctx context.Context, src Source, item Expiring, t Transition) (changed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return src.Apply(ctx, item, t)
}

// RunAll runs every registered kind once, in the order of Kinds.
func (s *Sweeper) RunAll(ctx context.Context) ([]Report, error) {
	var reports []Report
	var errs []error
	for _, kind := range Kinds {
		s.mu.Lock()
		_, ok := s.sources[kind]
		s.mu.Unlock()
		if !ok {
			continue
		}

		report, err := s.Run(ctx, kind)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
	}
	return reports, errors.Join(errs...)
}
