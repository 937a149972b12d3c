/*
store.go - Persistence interface for activity records and home visits

PURPOSE:
  Storage contract for the three per-kind record tables and home visits.
  The store enforces the per-day uniqueness invariants:

    attendance/confessions/masses (student, date, batchYear)  UNIQUE
    home_visits (student, visit_date)                         UNIQUE

  It also owns the derived-counter refreshes on BatchYear rows, which
  always fully recompute from the record tables.
*/
package activity

import (
	"context"

	"github.com/khedma/ministry-engine/core"
)

// Store persists activity records and home visits.
type Store interface {
	// Records (per kind)
	InsertRecord(ctx context.Context, r *Record) error
	GetRecord(ctx context.Context, kind Kind, id core.ID) (*Record, error)
	ListRecords(ctx context.Context, kind Kind, f RecordFilter) ([]Record, error)
	UpdateRecord(ctx context.Context, r *Record) (*Record, error)
	// DeleteRecord returns the removed record so callers can clean up the
	// ledger entry it minted.
	DeleteRecord(ctx context.Context, kind Kind, id core.ID) (*Record, error)
	DeleteRecordsByStudent(ctx context.Context, kind Kind, studentID core.ID) (int, error)

	// Derived counters. Both overwrite the BatchYear column with a full
	// recompute from the record tables and return the new value.
	RefreshAttendanceCount(ctx context.Context, batchYearID core.ID) (int, error)
	RefreshConfessionMonths(ctx context.Context, batchYearID core.ID) (int, error)

	// Home visits
	InsertHomeVisit(ctx context.Context, v *HomeVisit) error
	GetHomeVisit(ctx context.Context, id core.ID) (*HomeVisit, error)
	ListHomeVisits(ctx context.Context, f HomeVisitFilter) ([]HomeVisit, error)
	UpdateHomeVisit(ctx context.Context, v *HomeVisit) (*HomeVisit, error)
	DeleteHomeVisit(ctx context.Context, id core.ID) error
	DeleteHomeVisitsByStudent(ctx context.Context, studentID core.ID) (int, error)
}
