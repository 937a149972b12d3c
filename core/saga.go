/*
saga.go - Compensating-action runner for multi-step write workflows

PURPOSE:
  Several workflows perform a sequence of dependent writes with no
  database transaction spanning them (activity creation mints a points
  entry; batch creation spawns a BatchYear). The Saga records a
  compensating action for each completed step; when a later step fails,
  the completed steps are unwound in reverse order so a mid-workflow
  failure does not leave a half-written state behind.

USAGE:
  saga := core.NewSaga("attendance.create")
  err := saga.Step(ctx, "insert record",
      func(ctx context.Context) error { return store.Insert(ctx, rec) },
      func(ctx context.Context) error { return store.Delete(ctx, rec.ID) },
  )

  A failing Step automatically unwinds every previously completed step.
  Compensation failures cannot be recovered automatically: they are
  logged and reported through Unwound() for out-of-band reconciliation.
*/
package core

import (
	"context"
	"fmt"
	"log"
)

// CompensateFn undoes a completed saga step.
type CompensateFn func(ctx context.Context) error

type sagaStep struct {
	name string
	undo CompensateFn
}

// Saga runs a multi-step workflow with reverse-order compensation.
// A Saga is single-use and not safe for concurrent use.
type Saga struct {
	name   string
	done   []sagaStep
	failed []string // names of compensations that themselves failed
}

func NewSaga(name string) *Saga {
	return &Saga{name: name}
}

// Step executes do. On success the compensation (which may be nil for
// read-only steps) is recorded. On failure every previously completed
// step is compensated in reverse order and the step error is returned,
// wrapped with the step name.
func (s *Saga) Step(ctx context.Context, name string, do func(ctx context.Context) error, undo CompensateFn) error {
	if err := do(ctx); err != nil {
		s.unwind(ctx)
		return fmt.Errorf("%s: %s: %w", s.name, name, err)
	}
	if undo != nil {
		s.done = append(s.done, sagaStep{name: name, undo: undo})
	}
	return nil
}

func (s *Saga) unwind(ctx context.Context) {
	for i := len(s.done) - 1; i >= 0; i-- {
		step := s.done[i]
		if err := step.undo(ctx); err != nil {
			s.failed = append(s.failed, step.name)
			log.Printf("saga %s: compensation %q failed: %v", s.name, step.name, err)
		}
	}
	s.done = nil
}

// Unwound returns the names of compensations that failed during unwinding.
// A non-empty result means the stores need manual reconciliation.
func (s *Saga) Unwound() []string { return s.failed }
