/*
service.go - Ledger service: minting, recompute and totals

PURPOSE:
  All ledger writes flow through this service so every mutation is
  followed by a full summary recompute for the affected (student,
  batchYear) pair. Recompute-by-scan keeps the summary idempotent:
  running it twice changes nothing, and a crash between write and
  recompute heals on the next mutation.

KEY DECISIONS:
  - Points snapshot the type's value at mint time.
  - Bonus entries bypass the per-day uniqueness rule.
  - Summary rows are upserted, never incremented.
*/
package points

import (
	"context"
	"time"

	"github.com/khedma/ministry-engine/core"
)

// Service owns the rewards ledger. The policy is injected resolved;
// a missing point type is a startup failure, not a request failure.
type Service struct {
	store  Store
	policy *PolicyConfig
}

func NewService(store Store, policy *PolicyConfig) *Service {
	return &Service{store: store, policy: policy}
}

// =============================================================================
// MINTING
// =============================================================================

// Award mints the ledger entry for an activity event. For attendance the
// arrival time selects the tier; confessions and masses use their fixed
// configured type. The entry date is the activity's normalized day.
func (s *Service) Award(ctx context.Context, studentID, batchYearID core.ID, src core.Source, at time.Time) (*Entry, error) {
	var typeID core.ID
	var err error
	switch src.Type {
	case core.SourceAttendance:
		typeID, err = s.policy.AttendanceTypeFor(at)
	default:
		typeID, err = s.policy.TypeFor(src.Type)
	}
	if err != nil {
		return nil, err
	}
	pt, err := s.store.GetPointType(ctx, typeID)
	if err != nil {
		return nil, err
	}

	e := &Entry{
		ID:        core.NewID(),
		Student:   studentID,
		BatchYear: batchYearID,
		Type:      pt.ID,
		Points:    pt.Value,
		Date:      core.DayOf(at),
		Source:    src,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.InsertEntry(ctx, e); err != nil {
		return nil, err
	}
	if err := s.Recompute(ctx, e.Student, e.BatchYear); err != nil {
		return nil, err
	}
	return e, nil
}

// AwardActivity is Award for callers that do not consume the minted
// entry.
func (s *Service) AwardActivity(ctx context.Context, studentID, batchYearID core.ID, src core.Source, at time.Time) error {
	_, err := s.Award(ctx, studentID, batchYearID, src, at)
	return err
}

// Create records an administrative entry, typically a bonus. When Points
// is zero the type's current value is snapshotted.
func (s *Service) Create(ctx context.Context, e *Entry) (*Entry, error) {
	if e.Source.Type == "" {
		e.Source = core.Bonus()
	}
	if e.Points == 0 && !e.Type.IsZero() {
		pt, err := s.store.GetPointType(ctx, e.Type)
		if err != nil {
			return nil, err
		}
		e.Points = pt.Value
	}
	if e.ID.IsZero() {
		e.ID = core.NewID()
	}
	e.Date = e.Date.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.InsertEntry(ctx, e); err != nil {
		return nil, err
	}
	if err := s.Recompute(ctx, e.Student, e.BatchYear); err != nil {
		return nil, err
	}
	return e, nil
}

// =============================================================================
// CORRECTIONS
// =============================================================================

// Update applies an administrative correction. When the correction moves
// the entry between students or enrollment contexts, both the old and
// new summaries are recomputed.
func (s *Service) Update(ctx context.Context, e *Entry) (*Entry, error) {
	prev, err := s.store.GetEntry(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.Date = e.Date.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateEntry(ctx, e)
	if err != nil {
		return nil, err
	}
	if err := s.Recompute(ctx, updated.Student, updated.BatchYear); err != nil {
		return nil, err
	}
	if prev.Student != updated.Student || prev.BatchYear != updated.BatchYear {
		if err := s.Recompute(ctx, prev.Student, prev.BatchYear); err != nil {
			return nil, err
		}
	}
	return updated, nil
}

// Delete removes an entry and recomputes the affected summary.
func (s *Service) Delete(ctx context.Context, id core.ID) error {
	e, err := s.store.DeleteEntry(ctx, id)
	if err != nil {
		return err
	}
	return s.Recompute(ctx, e.Student, e.BatchYear)
}

// DeleteBySource removes the entry minted for an activity record, if one
// exists. Activity records created before point minting was wired up
// have no ledger entry; that is not an error.
func (s *Service) DeleteBySource(ctx context.Context, src core.Source) error {
	entries, err := s.store.ListEntries(ctx, EntryFilter{SourceType: src.Type, SourceID: src.ID})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.Delete(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

// Recompute rebuilds the (student, batchYear) summary from the surviving
// ledger entries. Idempotent: the result depends only on the ledger.
func (s *Service) Recompute(ctx context.Context, studentID, batchYearID core.ID) error {
	totals, err := s.store.Totals(ctx, studentID, batchYearID)
	if err != nil {
		return err
	}
	return s.store.UpdateSummaryTotals(ctx, &Summary{
		Student:          studentID,
		BatchYear:        batchYearID,
		AttendanceCount:  totals.BySource[core.SourceAttendance].Count,
		ConfessionsCount: totals.BySource[core.SourceConfession].Count,
		MassesCount:      totals.BySource[core.SourceMass].Count,
		TotalPoints:      totals.Overall.Points,
	})
}

// StudentTotals aggregates a student's ledger on the fly. A zero
// batchYearID spans the student's whole history.
func (s *Service) StudentTotals(ctx context.Context, studentID, batchYearID core.ID) (*Totals, error) {
	return s.store.Totals(ctx, studentID, batchYearID)
}

// SeedSummary creates the empty rollup row for a newly created student.
func (s *Service) SeedSummary(ctx context.Context, studentID, batchYearID core.ID) error {
	return s.store.InsertSummary(ctx, &Summary{
		ID:        core.NewID(),
		Student:   studentID,
		BatchYear: batchYearID,
	})
}

// PurgeStudent bulk-removes a student's ledger and summaries. Used only
// during full teardown; no recompute runs because the summaries are
// deleted with the entries.
func (s *Service) PurgeStudent(ctx context.Context, studentID core.ID) error {
	if _, err := s.store.DeleteEntriesByStudent(ctx, studentID); err != nil {
		return err
	}
	_, err := s.store.DeleteSummariesByStudent(ctx, studentID)
	return err
}
