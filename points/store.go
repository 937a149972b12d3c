/*
store.go - Persistence interface for the rewards ledger

PURPOSE:
  Storage contract for point types, ledger entries and summaries. The
  store enforces the activity-uniqueness invariant:

    entries (student, date, batchYear, type)  UNIQUE
      WHERE sourceType IN (attendance, confession, mass)

  Bonus entries are exempt: a student may receive the same bonus type
  any number of times on the same day.

IMPLEMENTATIONS:
  - store/sqlite: production store (partial unique index)
  - store/memory: map-backed store for service tests
*/
package points

import (
	"context"

	"github.com/khedma/ministry-engine/core"
)

// Store persists the rewards ledger.
type Store interface {
	// Point types
	InsertPointType(ctx context.Context, t *PointType) error
	GetPointType(ctx context.Context, id core.ID) (*PointType, error)
	GetPointTypeByName(ctx context.Context, name string) (*PointType, error)
	ListPointTypes(ctx context.Context) ([]PointType, error)
	UpdatePointType(ctx context.Context, t *PointType) (*PointType, error)
	DeletePointType(ctx context.Context, id core.ID) error

	// Ledger entries
	InsertEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id core.ID) (*Entry, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]Entry, error)
	UpdateEntry(ctx context.Context, e *Entry) (*Entry, error)
	// DeleteEntry returns the removed entry so callers can recompute the
	// affected summary.
	DeleteEntry(ctx context.Context, id core.ID) (*Entry, error)
	// DeleteEntriesByStudent bulk-removes a student's ledger without
	// per-entry bookkeeping. Used only by full teardown.
	DeleteEntriesByStudent(ctx context.Context, studentID core.ID) (int, error)

	// Totals aggregates the student's surviving entries by source type.
	// A zero batchYearID aggregates across all enrollment contexts.
	Totals(ctx context.Context, studentID, batchYearID core.ID) (*Totals, error)

	// Summaries
	InsertSummary(ctx context.Context, s *Summary) error
	GetSummary(ctx context.Context, studentID, batchYearID core.ID) (*Summary, error)
	ListSummaries(ctx context.Context, f SummaryFilter) ([]Summary, error)
	// UpdateSummaryTotals overwrites the derived columns of the
	// (student, batchYear) row, creating it when absent.
	UpdateSummaryTotals(ctx context.Context, s *Summary) error
	DeleteSummariesByStudent(ctx context.Context, studentID core.ID) (int, error)
}
