/*
Package activity provides the event log: attendance, confession and mass
records plus home visits.

PURPOSE:
  Activity records are the facts that drive the rewards ledger. Each
  record kind maps onto a points source type; creating a record mints
  the matching ledger entry and refreshes the derived counters on the
  enrollment context. Home visits are pastoral records with no points
  or counter side effects.

KEY CONCEPTS:
  - Kind: discriminates the three per-day record tables
  - Record: one activity fact, unique per (student, date, batchYear)
  - HomeVisit: unique per (student, visitDate), requires servants

SEE ALSO:
  - service.go: The saga-based create workflow and cascades
*/
package activity

import (
	"time"

	"github.com/khedma/ministry-engine/core"
)

// =============================================================================
// RECORDS
// =============================================================================

// Kind discriminates the activity record tables.
type Kind string

const (
	KindAttendance Kind = "attendance"
	KindConfession Kind = "confession"
	KindMass       Kind = "mass"
)

// Kinds lists every record kind, in cascade-deletion order.
var Kinds = []Kind{KindAttendance, KindMass, KindConfession}

// Valid reports whether k names a record table.
func (k Kind) Valid() bool {
	switch k {
	case KindAttendance, KindConfession, KindMass:
		return true
	}
	return false
}

// Source returns the points provenance tag for a record of this kind.
func (k Kind) Source(id core.ID) core.Source {
	return core.Source{Type: core.SourceType(k), ID: id}
}

// Record is one activity fact. Date is the uniqueness key; At keeps the
// full arrival timestamp, which for attendance selects the point tier.
type Record struct {
	ID        core.ID   `json:"id"`
	Kind      Kind      `json:"-"`
	Student   core.ID   `json:"student"`
	BatchYear core.ID   `json:"batchYear"`
	Date      core.Day  `json:"date"`
	At        time.Time `json:"time"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// =============================================================================
// HOME VISITS
// =============================================================================

// HomeVisit is a pastoral visit record. Unique on (Student, VisitDate);
// at least one servant must be named. Visits never mint points.
type HomeVisit struct {
	ID        core.ID   `json:"id"`
	Student   core.ID   `json:"student"`
	VisitDate core.Day  `json:"visitDate"`
	Servants  []core.ID `json:"servants"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// =============================================================================
// QUERY FILTERS
// =============================================================================
// Zero values mean "no constraint".

// RecordFilter selects activity records of one kind.
type RecordFilter struct {
	ID           core.ID  // exact match on id
	StudentID    core.ID  // exact match on student
	StudentName  string   // substring match on the student's full name
	BatchYearID  core.ID  // exact match on batch year
	AcademicYear string   // substring match on the academicYear label
	Date         core.Day // exact match on the normalized date
	DateFrom     core.Day // inclusive lower bound on date
	DateTo       core.Day // inclusive upper bound on date
}

// HomeVisitFilter selects home visits.
type HomeVisitFilter struct {
	ID          core.ID  // exact match on id
	StudentID   core.ID  // exact match on student
	StudentName string   // substring match on the student's full name
	ServantID   core.ID  // visits naming this servant
	VisitDate   core.Day // exact match on the normalized date
}
