/*
Package core provides the shared kernel for the ministry engine.

PURPOSE:
  This package contains the domain-agnostic building blocks used by every
  other package: typed identifiers, calendar-day values, the point-source
  tagged union, the error taxonomy, and the saga runner for multi-step
  write workflows.

KEY CONCEPTS IN THIS FILE (types.go):
  - ID: Type-safe record identifier (UUID string)
  - Day: A calendar date with the time-of-day stripped (ledger key)
  - Source: Provenance of a points entry (activity-linked or bonus)

DESIGN PRINCIPLES:
  1. Normalization at the boundary: every Day is midnight UTC, always
  2. Type safety: IDs are strings but never bare strings
  3. Provenance: every points entry is traceable to its source activity

SEE ALSO:
  - errors.go: Error taxonomy (NotFound, Duplicate, Validation, Config)
  - saga.go: Compensating-action runner for multi-step workflows
*/
package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID identifies a stored record. Empty ID means "not persisted yet".
type ID string

// NewID returns a fresh random record identifier.
func NewID() ID { return ID(uuid.NewString()) }

func (id ID) IsZero() bool   { return id == "" }
func (id ID) String() string { return string(id) }

// =============================================================================
// DAY - Calendar date with time-of-day stripped
// =============================================================================

// Day is a calendar date. Activity records and points entries are keyed by
// Day: the uniqueness invariants in the storage layer operate on whole days,
// so any timestamp is truncated to midnight UTC before it is persisted.
type Day struct {
	t time.Time
}

// DayOf truncates a timestamp to its calendar day.
func DayOf(t time.Time) Day {
	return Day{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// NewDay builds a Day from its components.
func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses a "2006-01-02" date string.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Day{}, err
	}
	return DayOf(t), nil
}

// Today returns the current calendar day.
func Today() Day { return DayOf(time.Now().UTC()) }

func (d Day) Time() time.Time    { return d.t }
func (d Day) IsZero() bool       { return d.t.IsZero() }
func (d Day) Equal(o Day) bool   { return d.t.Equal(o.t) }
func (d Day) Before(o Day) bool  { return d.t.Before(o.t) }
func (d Day) After(o Day) bool   { return d.t.After(o.t) }
func (d Day) AddDays(n int) Day  { return Day{t: d.t.AddDate(0, 0, n)} }
func (d Day) AddYears(n int) Day { return Day{t: d.t.AddDate(n, 0, 0)} }
func (d Day) Year() int          { return d.t.Year() }
func (d Day) Month() time.Month  { return d.t.Month() }
func (d Day) String() string     { return d.t.Format("2006-01-02") }

// MonthKey returns the "2006-01" grouping key used by the confession-month
// counter (count of distinct calendar months with at least one confession).
func (d Day) MonthKey() string { return d.t.Format("2006-01") }

// Normalize re-truncates to midnight UTC. Days built through the
// constructors are already normalized; this guards values decoded from
// external input.
func (d Day) Normalize() Day {
	if d.t.IsZero() {
		return d
	}
	return DayOf(d.t)
}

// MarshalJSON encodes the day as "2006-01-02"; the zero Day encodes as null.
func (d Day) MarshalJSON() ([]byte, error) {
	if d.t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "2006-01-02", a full RFC 3339 timestamp, or null.
func (d *Day) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		*d = Day{}
		return nil
	}
	day, err := ParseDay(s)
	if err != nil {
		t, rferr := time.Parse(time.RFC3339, s)
		if rferr != nil {
			return err
		}
		day = DayOf(t)
	}
	*d = day
	return nil
}

// =============================================================================
// SOURCE - Provenance of a points entry (tagged union)
// =============================================================================

// SourceType tags where a points entry came from.
type SourceType string

const (
	SourceAttendance SourceType = "attendance"
	SourceConfession SourceType = "confession"
	SourceMass       SourceType = "mass"
	SourceBonus      SourceType = "bonus"
)

// ActivitySources lists the source types that correspond to a stored
// activity record. Entries with these sources are subject to the ledger's
// (student, date, batchYear, type) uniqueness key; bonus entries are not.
var ActivitySources = []SourceType{SourceAttendance, SourceConfession, SourceMass}

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceAttendance, SourceConfession, SourceMass, SourceBonus:
		return true
	}
	return false
}

// IsActivity reports whether t references a stored activity record.
func (t SourceType) IsActivity() bool { return t != SourceBonus && t.Valid() }

// Source is the provenance of a points entry: either a reference to the
// activity record that generated it, or a manual bonus with no reference.
type Source struct {
	Type SourceType `json:"sourceType"`
	ID   ID         `json:"sourceId,omitempty"` // empty iff Type == SourceBonus
}

// Bonus returns the provenance tag for a manual points entry.
func Bonus() Source { return Source{Type: SourceBonus} }

// Validate enforces the tagged-union shape: activity sources carry an ID,
// bonus carries none.
func (s Source) Validate() error {
	if !s.Type.Valid() {
		return Validationf("unknown source type %q", s.Type)
	}
	if s.Type.IsActivity() && s.ID.IsZero() {
		return Validationf("source type %q requires a source id", s.Type)
	}
	if s.Type == SourceBonus && !s.ID.IsZero() {
		return Validationf("bonus points must not carry a source id")
	}
	return nil
}
