/*
Package points provides the rewards ledger: point types, immutable ledger
entries, per-year summaries and the accrual policy.

PURPOSE:
  Every point a student earns is an Entry in an append-style ledger tied
  to its originating activity. Per-year summaries are never incremented
  in place: any ledger mutation triggers a full recompute from the
  surviving entries, so the summary is always derivable state.

KEY CONCEPTS:
  - PointType: a named point value ("Attendance Lvl 1" = 40)
  - Entry: one accrual event, provenance-tagged with a core.Source
  - Summary: denormalized per-(student, batchYear) rollup
  - Policy: maps activity facts (arrival time) onto point types

SEE ALSO:
  - policy.go: tier windows and startup type seeding
  - service.go: minting, recompute and totals
*/
package points

import (
	"time"

	"github.com/khedma/ministry-engine/core"
)

// =============================================================================
// POINT TYPES
// =============================================================================

// PointType is a named, valued accrual category. Unique on Name.
// Value is a positive integer.
type PointType struct {
	ID          core.ID   `json:"id"`
	Name        string    `json:"name"`
	Value       int       `json:"points"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Validate enforces the model constraints shared by create and update
// paths. Every minted entry snapshots a type's value, so a non-positive
// value here would poison the ledger.
func (t *PointType) Validate() error {
	if t.Name == "" {
		return core.Validationf("point type requires a name")
	}
	if t.Value < 1 {
		return core.Validationf("point type value must be a positive integer")
	}
	return nil
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

// Entry is one accrual event. Points snapshots the type's value at mint
// time so later type edits do not rewrite history. Entries are immutable
// except for administrative corrections through the service.
type Entry struct {
	ID        core.ID     `json:"id"`
	Student   core.ID     `json:"student"`
	BatchYear core.ID     `json:"batchYear"`
	Type      core.ID     `json:"type"`
	Points    int         `json:"points"`
	Date      core.Day    `json:"date"`
	Source    core.Source `json:"source"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Validate enforces the ledger entry invariants shared by create and
// update paths.
func (e *Entry) Validate() error {
	if e.Student.IsZero() {
		return core.Validationf("ledger entry requires a student")
	}
	if e.BatchYear.IsZero() {
		return core.Validationf("ledger entry requires a batch year")
	}
	if e.Points < 1 {
		return core.Validationf("ledger entry points must be a positive integer")
	}
	return e.Source.Validate()
}

// =============================================================================
// SUMMARIES
// =============================================================================

// Summary is the denormalized rollup for one (student, batchYear) pair.
// Counts are per activity source; TotalPoints sums every entry including
// bonuses. Rows are only written by full recompute or seeding.
type Summary struct {
	ID               core.ID   `json:"id"`
	Student          core.ID   `json:"student"`
	BatchYear        core.ID   `json:"batchYear"`
	AttendanceCount  int       `json:"attendanceCount"`
	ConfessionsCount int       `json:"confessionsCount"`
	MassesCount      int       `json:"massesCount"`
	TotalPoints      int       `json:"totalPoints"`
	CreatedAt        time.Time `json:"createdAt"`
}

// SourceTotal is one aggregation bucket of a totals query.
type SourceTotal struct {
	Count  int `json:"count"`
	Points int `json:"points"`
}

// Totals is the on-the-fly aggregation of a student's ledger, optionally
// scoped to one enrollment context.
type Totals struct {
	BySource map[core.SourceType]SourceTotal `json:"bySource"`
	Overall  SourceTotal                     `json:"overall"`
}

// =============================================================================
// QUERY FILTERS
// =============================================================================
// Zero values mean "no constraint".

// EntryFilter selects ledger entries.
type EntryFilter struct {
	ID           core.ID         // exact match on id
	StudentID    core.ID         // exact match on student
	StudentName  string          // substring match on the student's full name
	BatchYearID  core.ID         // exact match on batch year
	AcademicYear string          // substring match on the academicYear label
	TypeID       core.ID         // exact match on type
	TypeName     string          // substring match on the type name
	Date         core.Day        // exact match on the normalized date
	SourceType   core.SourceType // exact match on provenance kind
	SourceID     core.ID         // exact match on provenance id
}

// SummaryFilter selects summary rows.
type SummaryFilter struct {
	StudentID   core.ID // exact match on student
	BatchYearID core.ID // exact match on batch year
	StudentName string  // substring match on the student's full name
}
