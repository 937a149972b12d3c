/*
student.go - Student service and the cascading deletion coordinator

PURPOSE:
  Create/update rules for students (batch immutability, WhatsApp
  defaulting, GPS coordinate derivation) and the full teardown of a
  student's footprint across the activity and points stores.

DELETION ORDER:
  attendance -> masses -> confessions -> points (bulk) -> home visits
  -> summaries -> student row

  Every step is attempted even when an earlier one fails; failures are
  joined and reported together so a partial teardown is visible rather
  than silently truncated.
*/
package roster

import (
	"context"
	"errors"

	"github.com/khedma/ministry-engine/core"
)

// =============================================================================
// CONSUMER INTERFACES
// =============================================================================
// Implemented by the activity and points services. Declared here so the
// roster package stays at the bottom of the dependency graph.

// ActivityCleaner removes a student's activity footprint.
type ActivityCleaner interface {
	// DeleteStudentActivity removes all attendance, mass and confession
	// rows for the student and refreshes the derived counters of the
	// given enrollment context. A zero batchYearID skips the refreshes.
	DeleteStudentActivity(ctx context.Context, studentID, batchYearID core.ID) error

	// DeleteStudentHomeVisits removes the student's home visit history.
	DeleteStudentHomeVisits(ctx context.Context, studentID core.ID) error
}

// LedgerCleaner removes a student's points footprint.
type LedgerCleaner interface {
	// PurgeStudent bulk-deletes the student's ledger entries and year
	// summaries without per-entry recomputes.
	PurgeStudent(ctx context.Context, studentID core.ID) error
}

// SummarySeeder creates the empty per-year summary row for a new student.
type SummarySeeder interface {
	SeedSummary(ctx context.Context, studentID, batchYearID core.ID) error
}

// =============================================================================
// STUDENT SERVICE
// =============================================================================

// StudentService owns student lifecycle rules. All collaborators are
// injected at construction; there is no lazy lookup.
type StudentService struct {
	store    Store
	resolver *Resolver
	activity ActivityCleaner
	ledger   LedgerCleaner
	seeder   SummarySeeder
}

func NewStudentService(store Store, resolver *Resolver, activity ActivityCleaner, ledger LedgerCleaner, seeder SummarySeeder) *StudentService {
	return &StudentService{
		store:    store,
		resolver: resolver,
		activity: activity,
		ledger:   ledger,
		seeder:   seeder,
	}
}

// Create validates references, applies defaults and persists the student,
// then seeds the empty summary row for the current enrollment context.
// The summary seed is compensated by removing the student on failure.
func (s *StudentService) Create(ctx context.Context, st *Student) (*Student, error) {
	if st.FullName == "" {
		return nil, core.Validationf("student requires a full name")
	}
	if st.MobileNumber == "" {
		return nil, core.Validationf("student requires a mobile number")
	}
	if _, err := s.store.GetBatch(ctx, st.Batch); err != nil {
		return nil, err
	}
	if !st.Class.IsZero() {
		if _, err := s.store.GetClass(ctx, st.Class); err != nil {
			return nil, err
		}
	}
	if !st.Servant.IsZero() {
		if _, err := s.store.GetServant(ctx, st.Servant); err != nil {
			return nil, err
		}
	}
	if st.WhatsAppNumber == "" {
		st.WhatsAppNumber = st.MobileNumber
	}
	st.Address.DeriveCoordinates()
	if st.ID.IsZero() {
		st.ID = core.NewID()
	}

	saga := core.NewSaga("student.create")
	if err := saga.Step(ctx, "insert student",
		func(ctx context.Context) error { return s.store.InsertStudent(ctx, st) },
		func(ctx context.Context) error { _, err := s.store.DeleteStudent(ctx, st.ID); return err },
	); err != nil {
		return nil, err
	}
	if err := saga.Step(ctx, "seed year summary",
		func(ctx context.Context) error {
			by, err := s.resolver.ResolveForStudent(ctx, st)
			if err != nil {
				return err
			}
			return s.seeder.SeedSummary(ctx, st.ID, by.ID)
		},
		nil,
	); err != nil {
		return nil, err
	}
	return st, nil
}

// Update applies the mutable fields. The batch assignment is immutable
// after creation; attempting to change it is rejected outright rather
// than silently ignored.
func (s *StudentService) Update(ctx context.Context, st *Student) (*Student, error) {
	existing, err := s.store.GetStudent(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	if !st.Batch.IsZero() && st.Batch != existing.Batch {
		return nil, core.Validationf("student batch cannot change after creation")
	}
	st.Batch = existing.Batch
	st.CreatedAt = existing.CreatedAt
	if st.WhatsAppNumber == "" {
		st.WhatsAppNumber = st.MobileNumber
	}
	st.Address.DeriveCoordinates()
	return s.store.UpdateStudent(ctx, st)
}

// SetExcluded soft-hides (or restores) a student. No data is removed.
func (s *StudentService) SetExcluded(ctx context.Context, id core.ID, excluded bool) (*Student, error) {
	return s.store.SetStudentExcluded(ctx, id, excluded)
}

// Delete tears down the student's entire footprint. Each cleanup step is
// attempted regardless of earlier failures; the joined error reports
// everything that went wrong. The student row itself is removed last so
// a failed teardown remains discoverable and re-runnable.
func (s *StudentService) Delete(ctx context.Context, id core.ID) error {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return err
	}

	// Counter refreshes target the current enrollment context only;
	// prior years keep their historical counters.
	var batchYearID core.ID
	if by, err := s.resolver.ResolveForStudent(ctx, st); err == nil {
		batchYearID = by.ID
	}

	var errs []error
	if err := s.activity.DeleteStudentActivity(ctx, id, batchYearID); err != nil {
		errs = append(errs, err)
	}
	if err := s.ledger.PurgeStudent(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if err := s.activity.DeleteStudentHomeVisits(ctx, id); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.store.DeleteStudent(ctx, id); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
