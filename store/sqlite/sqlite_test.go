package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khedma/ministry-engine/activity"
	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/points"
	"github.com/khedma/ministry-engine/roster"
	"github.com/khedma/ministry-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedContext inserts a year, batch, batch year and student directly,
// bypassing the service layer.
func seedContext(t *testing.T, store *sqlite.Store) (*roster.Student, *roster.BatchYear) {
	ctx := context.Background()

	year := &roster.Year{ID: core.NewID(), Name: "2025"}
	require.NoError(t, store.InsertYear(ctx, year))

	batch := &roster.Batch{ID: core.NewID(), Name: "Grade 7", CurrYear: year.ID}
	require.NoError(t, store.InsertBatch(ctx, batch))

	by := &roster.BatchYear{
		ID: core.NewID(), Batch: batch.ID, Year: year.ID,
		AcademicYear: "2025-2026",
		StartDate:    core.NewDay(2025, time.September, 1),
		EndDate:      core.NewDay(2026, time.September, 1),
	}
	require.NoError(t, store.InsertBatchYear(ctx, by))

	st := &roster.Student{
		ID: core.NewID(), FullName: "Mina Gerges",
		MobileNumber: "01200000001", Batch: batch.ID,
	}
	require.NoError(t, store.InsertStudent(ctx, st))
	return st, by
}

func insertRecord(t *testing.T, store *sqlite.Store, kind activity.Kind, st *roster.Student, by *roster.BatchYear, y int, m time.Month, d int) *activity.Record {
	at := time.Date(y, m, d, 18, 0, 0, 0, time.UTC)
	rec := &activity.Record{
		ID: core.NewID(), Kind: kind,
		Student: st.ID, BatchYear: by.ID,
		Date: core.DayOf(at), At: at,
	}
	require.NoError(t, store.InsertRecord(context.Background(), rec))
	return rec
}

// =============================================================================
// DERIVED COUNTER TESTS
// =============================================================================

func TestRefreshAttendanceCount_DistinctDates(t *testing.T) {
	// GIVEN: Attendance from two students on overlapping dates
	// WHEN: Refreshing the counter
	// THEN: It counts distinct dates, not rows

	store := newTestStore(t)
	ctx := context.Background()
	st, by := seedContext(t, store)

	other := &roster.Student{
		ID: core.NewID(), FullName: "Kirollos Adel",
		MobileNumber: "01200000002", Batch: st.Batch,
	}
	require.NoError(t, store.InsertStudent(ctx, other))

	insertRecord(t, store, activity.KindAttendance, st, by, 2025, time.March, 14)
	insertRecord(t, store, activity.KindAttendance, other, by, 2025, time.March, 14)
	insertRecord(t, store, activity.KindAttendance, st, by, 2025, time.March, 21)

	n, err := store.RefreshAttendanceCount(ctx, by.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetBatchYear(ctx, by.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalAttendanceCount)
}

func TestRefreshConfessionMonths_DistinctMonths(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st, by := seedContext(t, store)

	insertRecord(t, store, activity.KindConfession, st, by, 2025, time.March, 7)
	insertRecord(t, store, activity.KindConfession, st, by, 2025, time.March, 21)
	insertRecord(t, store, activity.KindConfession, st, by, 2025, time.April, 4)

	n, err := store.RefreshConfessionMonths(ctx, by.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRefreshCounter_UnknownBatchYear(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RefreshAttendanceCount(context.Background(), core.NewID())
	assert.True(t, core.IsNotFound(err))
}

// =============================================================================
// LEDGER UNIQUENESS TESTS
// =============================================================================

func insertEntry(t *testing.T, store *sqlite.Store, st *roster.Student, by *roster.BatchYear, typeID core.ID, src core.Source, pts int) error {
	t.Helper()
	return store.InsertEntry(context.Background(), &points.Entry{
		ID: core.NewID(), Student: st.ID, BatchYear: by.ID,
		Type: typeID, Points: pts, Source: src,
		Date: core.NewDay(2025, time.March, 14),
	})
}

func TestLedger_ActivityEntriesUniquePerDayAndType(t *testing.T) {
	// GIVEN: An attendance entry for the day
	// WHEN: Inserting another with the same (student, date, context, type)
	// THEN: The partial unique index rejects it; bonus rows are exempt

	store := newTestStore(t)
	ctx := context.Background()
	st, by := seedContext(t, store)

	pt := &points.PointType{ID: core.NewID(), Name: "Lvl 1", Value: 40}
	require.NoError(t, store.InsertPointType(ctx, pt))

	src := core.Source{Type: core.SourceAttendance, ID: core.NewID()}
	require.NoError(t, insertEntry(t, store, st, by, pt.ID, src, 40))

	err := insertEntry(t, store, st, by, pt.ID,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()}, 40)
	assert.True(t, core.IsDuplicate(err))

	require.NoError(t, insertEntry(t, store, st, by, "", core.Bonus(), 15))
	require.NoError(t, insertEntry(t, store, st, by, "", core.Bonus(), 15))
}

func TestLedger_FilterBySource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st, by := seedContext(t, store)

	pt := &points.PointType{ID: core.NewID(), Name: "Mass", Value: 10}
	require.NoError(t, store.InsertPointType(ctx, pt))

	src := core.Source{Type: core.SourceMass, ID: core.NewID()}
	require.NoError(t, insertEntry(t, store, st, by, pt.ID, src, 10))
	require.NoError(t, insertEntry(t, store, st, by, "", core.Bonus(), 5))

	entries, err := store.ListEntries(ctx, points.EntryFilter{
		SourceType: core.SourceMass, SourceID: src.ID,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].Points)
	assert.Equal(t, src, entries[0].Source)
}

// =============================================================================
// DUPLICATE MAPPING TESTS
// =============================================================================

func TestDuplicateMapping_NamedFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st, _ := seedContext(t, store)

	clash := &roster.Student{
		ID: core.NewID(), FullName: st.FullName,
		MobileNumber: "01200009999", Batch: st.Batch,
	}
	err := store.InsertStudent(ctx, clash)
	require.True(t, core.IsDuplicate(err))

	var dup *core.DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "student", dup.Entity)
	assert.Equal(t, []string{"fullName"}, dup.Fields)
}

// =============================================================================
// QUERY FILTER TESTS
// =============================================================================

func TestListRecords_DateRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st, by := seedContext(t, store)

	insertRecord(t, store, activity.KindAttendance, st, by, 2025, time.March, 7)
	insertRecord(t, store, activity.KindAttendance, st, by, 2025, time.March, 14)
	insertRecord(t, store, activity.KindAttendance, st, by, 2025, time.March, 21)

	rows, err := store.ListRecords(ctx, activity.KindAttendance, activity.RecordFilter{
		DateFrom: core.NewDay(2025, time.March, 10),
		DateTo:   core.NewDay(2025, time.March, 14),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-03-14", rows[0].Date.String())
}

func TestListStudents_ExcludedHiddenByDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st, _ := seedContext(t, store)

	_, err := store.SetStudentExcluded(ctx, st.ID, true)
	require.NoError(t, err)

	visible, err := store.ListStudents(ctx, roster.StudentFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := store.ListStudents(ctx, roster.StudentFilter{IncludeExcluded: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestListStudents_NameSubstring(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedContext(t, store)

	rows, err := store.ListStudents(ctx, roster.StudentFilter{Name: "Gerges"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = store.ListStudents(ctx, roster.StudentFilter{Name: "Nobody"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// =============================================================================
// HOME VISIT TESTS
// =============================================================================

func TestHomeVisit_ServantListRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st, _ := seedContext(t, store)

	a := &roster.Servant{ID: core.NewID(), Name: "Abanoub", Email: "a@example.org", MobileNumber: "01000000001"}
	b := &roster.Servant{ID: core.NewID(), Name: "Kirollos", Email: "k@example.org", MobileNumber: "01000000002"}
	require.NoError(t, store.InsertServant(ctx, a))
	require.NoError(t, store.InsertServant(ctx, b))

	visit := &activity.HomeVisit{
		ID: core.NewID(), Student: st.ID,
		VisitDate: core.NewDay(2025, time.March, 15),
		Servants:  []core.ID{a.ID, b.ID},
	}
	require.NoError(t, store.InsertHomeVisit(ctx, visit))

	got, err := store.GetHomeVisit(ctx, visit.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{a.ID, b.ID}, got.Servants)

	// Replacing the servant list keeps exactly the new set.
	got.Servants = []core.ID{b.ID}
	updated, err := store.UpdateHomeVisit(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, []core.ID{b.ID}, updated.Servants)
}

// =============================================================================
// SUMMARY UPSERT TESTS
// =============================================================================

func TestUpdateSummaryTotals_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	st, by := seedContext(t, store)

	sum := &points.Summary{
		Student: st.ID, BatchYear: by.ID,
		AttendanceCount: 1, TotalPoints: 40,
	}
	require.NoError(t, store.UpdateSummaryTotals(ctx, sum))

	sum.TotalPoints = 60
	sum.MassesCount = 2
	require.NoError(t, store.UpdateSummaryTotals(ctx, sum))

	got, err := store.GetSummary(ctx, st.ID, by.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.TotalPoints)
	assert.Equal(t, 2, got.MassesCount)

	rows, err := store.ListSummaries(ctx, points.SummaryFilter{StudentID: st.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

// =============================================================================
// POINT TYPE CONSTRAINT TESTS
// =============================================================================

func TestPointTypes_NonPositiveValueRejected(t *testing.T) {
	// GIVEN: A store with one valid type
	// WHEN: Creating a negative-value type or zeroing an existing one
	// THEN: Both writes fail and the stored value survives

	store := newTestStore(t)
	ctx := context.Background()

	err := store.InsertPointType(ctx, &points.PointType{
		ID: core.NewID(), Name: "Penalty", Value: -5,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	pt := &points.PointType{ID: core.NewID(), Name: "Lvl 1", Value: 40}
	require.NoError(t, store.InsertPointType(ctx, pt))

	pt.Value = 0
	_, err = store.UpdatePointType(ctx, pt)
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err := store.GetPointType(ctx, pt.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Value)
}
