/*
batch.go - Batch lifecycle and the enrollment resolver

PURPOSE:
  A batch always has exactly one active enrollment context: the BatchYear
  for (batch, batch.currYear). Creating or advancing a batch therefore
  spawns a BatchYear in the same workflow; the two writes run as a saga
  so a BatchYear failure compensates the batch write instead of leaving
  the pair inconsistent.

ENROLLMENT RESOLUTION:
  student -> student.batch -> batch.currYear -> BatchYear(batch, year)

  Resolution failure is a setup/data error: no automatic recovery,
  callers abort the enclosing workflow.
*/
package roster

import (
	"context"
	"time"

	"github.com/khedma/ministry-engine/core"
)

// =============================================================================
// ENROLLMENT RESOLVER
// =============================================================================

// Resolver derives a student's active enrollment context. No side effects.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// ResolveBatchYear finds the unique BatchYear for (batchID, yearID).
func (r *Resolver) ResolveBatchYear(ctx context.Context, batchID, yearID core.ID) (*BatchYear, error) {
	rows, err := r.store.ListBatchYears(ctx, BatchYearFilter{BatchID: batchID, YearID: yearID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &core.NotFoundError{Entity: "batch year"}
	}
	return &rows[0], nil
}

// ResolveForStudent resolves the student's current enrollment context via
// the student's batch and that batch's current year.
func (r *Resolver) ResolveForStudent(ctx context.Context, s *Student) (*BatchYear, error) {
	batch, err := r.store.GetBatch(ctx, s.Batch)
	if err != nil {
		return nil, err
	}
	if batch.CurrYear.IsZero() {
		return nil, core.Configf("batch %s has no current year", batch.ID)
	}
	return r.ResolveBatchYear(ctx, batch.ID, batch.CurrYear)
}

// ResolveStudent finds a student by id or, when the id is zero, by
// unique mobile number. Excluded students still resolve: activity can
// be recorded for them.
func (r *Resolver) ResolveStudent(ctx context.Context, id core.ID, mobile string) (*Student, error) {
	if !id.IsZero() {
		return r.store.GetStudent(ctx, id)
	}
	if mobile == "" {
		return nil, core.Validationf("student reference requires an id or mobile number")
	}
	rows, err := r.store.ListStudents(ctx, StudentFilter{Mobile: mobile, IncludeExcluded: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &core.NotFoundError{Entity: "student"}
	}
	return &rows[0], nil
}

// =============================================================================
// BATCH SERVICE
// =============================================================================

// BatchService owns the batch lifecycle. It is the only writer of
// BatchYear rows outside the derived-counter refreshes.
type BatchService struct {
	store Store
	now   func() time.Time
}

func NewBatchService(store Store) *BatchService {
	return &BatchService{store: store, now: time.Now}
}

// Create persists the batch and its first BatchYear. If the BatchYear
// write fails the batch insert is compensated.
func (s *BatchService) Create(ctx context.Context, b *Batch) (*Batch, error) {
	if b.CurrYear.IsZero() {
		return nil, core.Validationf("batch requires a current year")
	}
	if _, err := s.store.GetYear(ctx, b.CurrYear); err != nil {
		return nil, err
	}
	if b.ID.IsZero() {
		b.ID = core.NewID()
	}

	saga := core.NewSaga("batch.create")
	if err := saga.Step(ctx, "insert batch",
		func(ctx context.Context) error { return s.store.InsertBatch(ctx, b) },
		func(ctx context.Context) error { return s.store.DeleteBatch(ctx, b.ID) },
	); err != nil {
		return nil, err
	}
	if err := saga.Step(ctx, "insert batch year",
		func(ctx context.Context) error { return s.insertBatchYear(ctx, b.ID, b.CurrYear) },
		nil,
	); err != nil {
		return nil, err
	}
	return b, nil
}

// Advance moves the batch to the next academic year and creates the new
// BatchYear. The prior BatchYear's counters are left untouched. If the
// BatchYear write fails the currYear update is reverted.
func (s *BatchService) Advance(ctx context.Context, batchID, nextYearID core.ID) (*Batch, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetYear(ctx, nextYearID); err != nil {
		return nil, err
	}
	prevYear := batch.CurrYear

	saga := core.NewSaga("batch.advance")
	if err := saga.Step(ctx, "set current year",
		func(ctx context.Context) error { return s.store.SetBatchCurrYear(ctx, batchID, nextYearID) },
		func(ctx context.Context) error { return s.store.SetBatchCurrYear(ctx, batchID, prevYear) },
	); err != nil {
		return nil, err
	}
	if err := saga.Step(ctx, "insert batch year",
		func(ctx context.Context) error { return s.insertBatchYear(ctx, batchID, nextYearID) },
		nil,
	); err != nil {
		return nil, err
	}
	batch.CurrYear = nextYearID
	return batch, nil
}

func (s *BatchService) insertBatchYear(ctx context.Context, batchID, yearID core.ID) error {
	now := s.now()
	start := core.DayOf(now)
	return s.store.InsertBatchYear(ctx, &BatchYear{
		ID:           core.NewID(),
		Batch:        batchID,
		Year:         yearID,
		AcademicYear: AcademicYearLabel(now),
		StartDate:    start,
		EndDate:      start.AddYears(1),
	})
}

// Delete removes the batch and all its BatchYears. Students and activity
// records referencing those BatchYears are NOT cascaded; orphaned
// references are an accepted risk of deleting a live batch.
func (s *BatchService) Delete(ctx context.Context, id core.ID) error {
	if err := s.store.DeleteBatch(ctx, id); err != nil {
		return err
	}
	_, err := s.store.DeleteBatchYearsByBatch(ctx, id)
	return err
}
