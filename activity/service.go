/*
service.go - Activity workflows: saga-based creation and cascades

PURPOSE:
  Creating an activity record is a five-step workflow spanning three
  stores: resolve the student, resolve the enrollment context, insert
  the record, refresh the derived counter, mint the ledger entry. The
  steps run as a saga; a mint failure deletes the record and re-refreshes
  the counter so no unpointed record survives.

KEY DECISIONS:
  - Date moves do NOT move the minted ledger entry: the points date is
    pinned to the original award.
  - Deleting a record revokes its ledger entry, which recomputes the
    student's summary.
*/
package activity

import (
	"context"
	"errors"
	"time"

	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/roster"
)

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================
// Implemented by the roster and points services; injected at construction.

// StudentRef identifies a student by id or, failing that, by unique
// mobile number. Exactly one field must be set.
type StudentRef struct {
	ID     core.ID
	Mobile string
}

// StudentDirectory resolves student references by id or unique mobile.
type StudentDirectory interface {
	ResolveStudent(ctx context.Context, id core.ID, mobile string) (*roster.Student, error)
}

// EnrollmentResolver derives a student's active enrollment context.
type EnrollmentResolver interface {
	ResolveForStudent(ctx context.Context, s *roster.Student) (*roster.BatchYear, error)
}

// PointMinter connects activity records to the rewards ledger.
type PointMinter interface {
	AwardActivity(ctx context.Context, studentID, batchYearID core.ID, src core.Source, at time.Time) error
	DeleteBySource(ctx context.Context, src core.Source) error
}

// =============================================================================
// SERVICE
// =============================================================================

// Service owns the activity workflows.
type Service struct {
	store      Store
	students   StudentDirectory
	enrollment EnrollmentResolver
	minter     PointMinter
}

func NewService(store Store, students StudentDirectory, enrollment EnrollmentResolver, minter PointMinter) *Service {
	return &Service{store: store, students: students, enrollment: enrollment, minter: minter}
}

// Create records an activity event and mints its ledger entry. The
// record date is the event timestamp's calendar day; for attendance the
// timestamp additionally selects the point tier.
func (s *Service) Create(ctx context.Context, kind Kind, ref StudentRef, at time.Time, notes string) (*Record, error) {
	if !kind.Valid() {
		return nil, core.Validationf("unknown activity kind %q", kind)
	}
	student, err := s.students.ResolveStudent(ctx, ref.ID, ref.Mobile)
	if err != nil {
		return nil, err
	}
	by, err := s.enrollment.ResolveForStudent(ctx, student)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:        core.NewID(),
		Kind:      kind,
		Student:   student.ID,
		BatchYear: by.ID,
		Date:      core.DayOf(at),
		At:        at,
		Notes:     notes,
	}

	saga := core.NewSaga(string(kind) + ".create")
	if err := saga.Step(ctx, "insert record",
		func(ctx context.Context) error { return s.store.InsertRecord(ctx, rec) },
		func(ctx context.Context) error {
			if _, err := s.store.DeleteRecord(ctx, kind, rec.ID); err != nil {
				return err
			}
			return s.refreshCounter(ctx, kind, by.ID)
		},
	); err != nil {
		return nil, err
	}
	if err := saga.Step(ctx, "refresh counter",
		func(ctx context.Context) error { return s.refreshCounter(ctx, kind, by.ID) },
		nil,
	); err != nil {
		return nil, err
	}
	if err := saga.Step(ctx, "mint points",
		func(ctx context.Context) error {
			return s.minter.AwardActivity(ctx, student.ID, by.ID, kind.Source(rec.ID), at)
		},
		nil,
	); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get fetches one record.
func (s *Service) Get(ctx context.Context, kind Kind, id core.ID) (*Record, error) {
	return s.store.GetRecord(ctx, kind, id)
}

// List queries records of one kind.
func (s *Service) List(ctx context.Context, kind Kind, f RecordFilter) ([]Record, error) {
	return s.store.ListRecords(ctx, kind, f)
}

// Update moves a record to a new timestamp and refreshes the derived
// counter. The ledger entry minted at creation keeps its original date.
func (s *Service) Update(ctx context.Context, kind Kind, id core.ID, at time.Time, notes string) (*Record, error) {
	rec, err := s.store.GetRecord(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	rec.Date = core.DayOf(at)
	rec.At = at
	rec.Notes = notes
	updated, err := s.store.UpdateRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	if err := s.refreshCounter(ctx, kind, rec.BatchYear); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a record, revokes its ledger entry and refreshes the
// derived counter.
func (s *Service) Delete(ctx context.Context, kind Kind, id core.ID) error {
	rec, err := s.store.DeleteRecord(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.minter.DeleteBySource(ctx, kind.Source(rec.ID)); err != nil {
		return err
	}
	return s.refreshCounter(ctx, kind, rec.BatchYear)
}

func (s *Service) refreshCounter(ctx context.Context, kind Kind, batchYearID core.ID) error {
	var err error
	switch kind {
	case KindAttendance:
		_, err = s.store.RefreshAttendanceCount(ctx, batchYearID)
	case KindConfession:
		_, err = s.store.RefreshConfessionMonths(ctx, batchYearID)
	}
	return err
}

// =============================================================================
// STUDENT TEARDOWN
// =============================================================================

// DeleteStudentActivity removes every record of the student across all
// kinds. All kinds are attempted even when one fails; counter refreshes
// run only for the given enrollment context.
func (s *Service) DeleteStudentActivity(ctx context.Context, studentID, batchYearID core.ID) error {
	var errs []error
	for _, kind := range Kinds {
		if _, err := s.store.DeleteRecordsByStudent(ctx, kind, studentID); err != nil {
			errs = append(errs, err)
			continue
		}
		if !batchYearID.IsZero() {
			if err := s.refreshCounter(ctx, kind, batchYearID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// DeleteStudentHomeVisits removes the student's home visit history.
func (s *Service) DeleteStudentHomeVisits(ctx context.Context, studentID core.ID) error {
	_, err := s.store.DeleteHomeVisitsByStudent(ctx, studentID)
	return err
}

// =============================================================================
// HOME VISITS
// =============================================================================

// CreateHomeVisit records a pastoral visit. No points, no counters.
func (s *Service) CreateHomeVisit(ctx context.Context, v *HomeVisit) (*HomeVisit, error) {
	if len(v.Servants) == 0 {
		return nil, core.Validationf("home visit requires at least one servant")
	}
	if _, err := s.students.ResolveStudent(ctx, v.Student, ""); err != nil {
		return nil, err
	}
	if v.ID.IsZero() {
		v.ID = core.NewID()
	}
	v.VisitDate = v.VisitDate.Normalize()
	if err := s.store.InsertHomeVisit(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetHomeVisit fetches one visit.
func (s *Service) GetHomeVisit(ctx context.Context, id core.ID) (*HomeVisit, error) {
	return s.store.GetHomeVisit(ctx, id)
}

// ListHomeVisits queries visits.
func (s *Service) ListHomeVisits(ctx context.Context, f HomeVisitFilter) ([]HomeVisit, error) {
	return s.store.ListHomeVisits(ctx, f)
}

// UpdateHomeVisit changes the visit date, notes and servant list.
func (s *Service) UpdateHomeVisit(ctx context.Context, v *HomeVisit) (*HomeVisit, error) {
	if len(v.Servants) == 0 {
		return nil, core.Validationf("home visit requires at least one servant")
	}
	existing, err := s.store.GetHomeVisit(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	v.Student = existing.Student
	v.CreatedAt = existing.CreatedAt
	v.VisitDate = v.VisitDate.Normalize()
	return s.store.UpdateHomeVisit(ctx, v)
}

// DeleteHomeVisit removes a visit.
func (s *Service) DeleteHomeVisit(ctx context.Context, id core.ID) error {
	return s.store.DeleteHomeVisit(ctx, id)
}
