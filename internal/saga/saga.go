// Package saga runs multi-step writes as ordered steps, each paired with a
// compensating action that undoes it.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// ErrCompensationFailed is joined into the run error when an undo fails and
// the store may hold a partial document.
var ErrCompensationFailed = errors.New("saga: compensation failed")

// Action is one side of a step.
type Action func(ctx context.Context) error

type step struct {
	name string
	do   Action
	undo Action
}

// Saga is an ordered list of steps. It is not safe for concurrent use.
type Saga struct {
	name   string
	id     string
	steps  []step
	atomic bool
	logger *slog.Logger
}

// New starts an empty saga.
func New(name string, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{name: name, id: uuid.NewString(), logger: logger}
}

// ID returns the correlation id logged with every step.
func (s *Saga) ID() string { return s.id }

// Step appends a step. undo may be nil for steps with nothing to revert.
func (s *Saga) Step(name string, do, undo Action) *Saga {
	s.steps = append(s.steps, step{name: name, do: do, undo: undo})
	return s
}

// Atomic marks the saga as running inside a transaction: on failure no
// compensation runs and the caller's rollback discards every step.
func (s *Saga) Atomic() *Saga {
	s.atomic = true
	return s
}

// StepError reports the failing step.
type StepError struct {
	Saga string
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga %s: step %s: %v", e.Saga, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Run executes the steps in order. When a step fails, the undo actions of the
// completed steps run in reverse order, unless the saga is atomic.
func (s *Saga) Run(ctx context.Context) error {
	log := s.logger.With(slog.String("saga", s.name), slog.String("saga_id", s.id))
	for i, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, log, i, st.name, err)
		}
		if err := st.do(ctx); err != nil {
			return s.fail(ctx, log, i, st.name, err)
		}
		log.Debug("saga step done", slog.String("step", st.name))
	}
	return nil
}

func (s *Saga) fail(ctx context.Context, log *slog.Logger, failed int, name string, err error) error {
	stepErr := &StepError{Saga: s.name, Step: name, Err: err}
	if s.atomic {
		return stepErr
	}
	log.Warn("saga step failed, compensating", slog.String("step", name), slog.Any("error", err))

	undoCtx := context.WithoutCancel(ctx)
	var undoErrs []error
	for i := failed - 1; i >= 0; i-- {
		st := s.steps[i]
		if st.undo == nil {
			continue
		}
		if uerr := st.undo(undoCtx); uerr != nil {
			log.Error("saga compensation", slog.String("step", st.name), slog.Any("error", uerr))
			undoErrs = append(undoErrs, fmt.Errorf("undo %s: %w", st.name, uerr))
		}
	}
	if len(undoErrs) > 0 {
		return errors.Join(stepErr, ErrCompensationFailed, errors.Join(undoErrs...))
	}
	return stepErr
}
