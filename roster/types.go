/*
Package roster provides the membership domain: reference entities, batches
and their academic-year enrollment contexts, and students.

PURPOSE:
  Everything about WHO is tracked lives here. The activity and points
  packages consume these types but never mutate them directly.

KEY CONCEPTS:
  - Batch: a cohort of students progressing together through academic years
  - BatchYear: the resolved enrollment context for a (batch, year) pair;
    the unit of aggregation for attendance/confession counters
  - Enrollment resolution: student -> batch -> currYear -> BatchYear

SEE ALSO:
  - store.go: Storage interface with the compound uniqueness contract
  - batch.go: Batch lifecycle and the enrollment resolver
  - student.go: Student service and the cascading deletion coordinator
*/
package roster

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khedma/ministry-engine/core"
)

// =============================================================================
// REFERENCE ENTITIES
// =============================================================================

// Class is a teaching group label. Unique on Name.
type Class struct {
	ID        core.ID   `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Year is an academic-calendar label (e.g. "2025"). Unique on Name.
type Year struct {
	ID        core.ID   `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Servant is a ministry worker. Unique on Name, Email and MobileNumber.
// Credentials and role checks live outside this system; only the identity
// surface is kept here.
type Servant struct {
	ID            core.ID   `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	MobileNumber  string    `json:"mobileNumber"`
	BirthDate     core.Day  `json:"birthDate,omitempty"`
	AssignedClass core.ID   `json:"assignedClass,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// =============================================================================
// BATCH / BATCH YEAR
// =============================================================================

// Batch is a cohort with a single mutable pointer to the academic year the
// cohort is currently progressing through. Unique on Name.
type Batch struct {
	ID          core.ID   `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CurrYear    core.ID   `json:"currYear"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BatchYear is the enrollment context for a cohort within one academic
// year. Unique on (Batch, Year). The two counters are derived from the
// activity tables and are only ever fully recomputed, never incremented.
type BatchYear struct {
	ID           core.ID `json:"id"`
	Batch        core.ID `json:"batch"`
	Year         core.ID `json:"year"`
	AcademicYear string  `json:"academicYear"` // e.g. "2025-2026"

	// TotalAttendanceCount is the number of distinct attendance dates
	// recorded under this context (dates, not rows).
	TotalAttendanceCount int `json:"totalAttendanceCount"`

	// ConfessionMonths is the number of distinct calendar months with at
	// least one confession recorded under this context.
	ConfessionMonths int `json:"maxNoOfConfessions"`

	StartDate core.Day  `json:"startDate"`
	EndDate   core.Day  `json:"endDate"`
	CreatedAt time.Time `json:"createdAt"`
}

// AcademicYearLabel synthesizes the "<Y>-<Y+1>" label for a BatchYear
// created at the given time.
func AcademicYearLabel(now time.Time) string {
	y := now.Year()
	return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006") + "-" +
		time.Date(y+1, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}

// =============================================================================
// STUDENT
// =============================================================================

// Address is a student's home address. Latitude/Longitude are derived from
// GPSLocationURL on create and update, never supplied directly.
type Address struct {
	Region      string `json:"region"`
	Street      string `json:"street"`
	Building    string `json:"building"`
	Floor       string `json:"floor"`
	Apartment   string `json:"apartment"`
	Description string `json:"addressDescription,omitempty"`
	GPSURL      string `json:"gpsLocationURL,omitempty"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
}

// Student is a tracked member. Unique on FullName and on MobileNumber.
// Batch is immutable after creation; excluded students are soft-hidden
// from active rosters but never deleted by exclusion.
type Student struct {
	ID       core.ID `json:"id"`
	FullName string  `json:"fullName"`
	Image    string  `json:"image,omitempty"`

	Class   core.ID `json:"class"`
	Servant core.ID `json:"servant"`
	Batch   core.ID `json:"batch"`

	MobileNumber   string `json:"mobileNumber"`
	WhatsAppNumber string `json:"whatsAppNumber,omitempty"`
	MotherName     string `json:"motherName,omitempty"`
	FatherMobile   string `json:"frMobileNumber"`
	MotherMobile   string `json:"mrMobileNumber"`

	BirthDate          core.Day `json:"birthDate"`
	School             string   `json:"school,omitempty"`
	FatherOfConfession string   `json:"frOfConfession,omitempty"`
	IsDeacon           bool     `json:"isDeacon"`

	Address Address `json:"address"`
	Notes   string  `json:"notes,omitempty"`

	IsExcluded bool      `json:"isExcluded"`
	CreatedAt  time.Time `json:"createdAt"`
}

// gpsCoordPattern matches a "lat,lng" pair embedded in a maps URL.
var gpsCoordPattern = regexp.MustCompile(`([-+]?[0-9]*\.?[0-9]+),([-+]?[0-9]*\.?[0-9]+)`)

// DeriveCoordinates extracts latitude/longitude from the GPS URL into the
// address, clearing them when the URL carries no parsable pair. Values are
// round-tripped through decimal to reject garbage like "12.34.56".
func (a *Address) DeriveCoordinates() {
	a.Latitude, a.Longitude = "", ""
	if a.GPSURL == "" {
		return
	}
	m := gpsCoordPattern.FindStringSubmatch(a.GPSURL)
	if m == nil {
		return
	}
	lat, err1 := decimal.NewFromString(m[1])
	lng, err2 := decimal.NewFromString(m[2])
	if err1 != nil || err2 != nil {
		return
	}
	a.Latitude = lat.String()
	a.Longitude = lng.String()
}

// =============================================================================
// QUERY FILTERS
// =============================================================================
// Each optional field documents its matching semantics. Zero values mean
// "no constraint".

// NameFilter selects reference entities (Class, Year, Servant).
type NameFilter struct {
	ID   core.ID // exact match on id
	Name string  // case-insensitive substring match on name
}

// BatchFilter selects batches.
type BatchFilter struct {
	ID           core.ID // exact match on id
	Name         string  // case-insensitive substring match on name
	CurrYearName string  // substring match on the current year's name
}

// BatchYearFilter selects enrollment contexts.
type BatchYearFilter struct {
	ID           core.ID // exact match on id
	BatchID      core.ID // exact match on batch
	YearID       core.ID // exact match on year
	BatchName    string  // substring match on the batch name (ignored when BatchID set)
	YearName     string  // substring match on the year name (ignored when YearID set)
	AcademicYear string  // substring match on the academicYear label
}

// StudentFilter selects students. Excluded students are hidden unless
// IncludeExcluded is set.
type StudentFilter struct {
	ID              core.ID     // exact match on id
	Name            string      // case-insensitive substring match on fullName
	BatchName       string      // substring match on batch name
	ClassName       string      // substring match on class name
	ServantName     string      // substring match on servant name
	Mobile          string      // exact match on mobileNumber
	AnyMobile       string      // exact match on any of the four contact numbers (ignored when Mobile set)
	BirthMonth      time.Month  // 0 = off; selects by birth month, sorted by day of month
	IncludeExcluded bool        // when false, isExcluded rows are omitted
}
