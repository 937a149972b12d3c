package activity_test

import (
	"context"
	"errors"
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

type fixture struct {
	store     *sqlite.Store
	activity  *activity.Service
	points    *points.Service
	students  *roster.StudentService
	batches   *roster.BatchService
	resolver  *roster.Resolver
	student   *roster.Student
	batchYear *roster.BatchYear
}

func policySpec() points.PolicySpec {
	return points.PolicySpec{
		Types: map[string]points.PointType{
			"Lvl 1":      {Value: 40},
			"Lvl 2":      {Value: 20},
			"Lvl 3":      {Value: 10},
			"Lvl 4":      {Value: 5},
			"Confession": {Value: 20},
			"Mass":       {Value: 10},
		},
		AttendanceTiers: []points.TierSpec{
			{Start: "17:30", End: "18:15", Type: "Lvl 1"},
			{Start: "18:16", End: "18:30", Type: "Lvl 2"},
			{Start: "18:31", End: "19:00", Type: "Lvl 3"},
			{Start: "19:01", End: "23:59", Type: "Lvl 4"},
		},
		AttendanceDefault: "Lvl 4",
		ConfessionType:    "Confession",
		MassType:          "Mass",
	}
}

func newFixture(t *testing.T) *fixture {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	policy, err := points.EnsurePolicyTypes(ctx, store, policySpec())
	require.NoError(t, err)

	pointsSvc := points.NewService(store, policy)
	resolver := roster.NewResolver(store)
	batchSvc := roster.NewBatchService(store)
	activitySvc := activity.NewService(store, resolver, resolver, pointsSvc)
	studentSvc := roster.NewStudentService(store, resolver, activitySvc, pointsSvc, pointsSvc)

	year := &roster.Year{ID: core.NewID(), Name: "2025"}
	require.NoError(t, store.InsertYear(ctx, year))

	batch, err := batchSvc.Create(ctx, &roster.Batch{Name: "Grade 7", CurrYear: year.ID})
	require.NoError(t, err)

	student, err := studentSvc.Create(ctx, &roster.Student{
		FullName:     "Mina Gerges",
		MobileNumber: "01200000001",
		Batch:        batch.ID,
	})
	require.NoError(t, err)

	by, err := resolver.ResolveForStudent(ctx, student)
	require.NoError(t, err)

	return &fixture{
		store:     store,
		activity:  activitySvc,
		points:    pointsSvc,
		students:  studentSvc,
		batches:   batchSvc,
		resolver:  resolver,
		student:   student,
		batchYear: by,
	}
}

func meetingTime(day int, hour, min int) time.Time {
	return time.Date(2025, time.March, day, hour, min, 0, 0, time.UTC)
}

// =============================================================================
// CREATE WORKFLOW TESTS
// =============================================================================

func TestCreateAttendance_EndToEnd(t *testing.T) {
	// GIVEN: An enrolled student
	// WHEN: Recording an on-time Friday arrival
	// THEN: Record stored, counter refreshed, tier points minted,
	//       summary recomputed

	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.activity.Create(ctx, activity.KindAttendance,
		activity.StudentRef{ID: f.student.ID}, meetingTime(14, 17, 45), "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14", rec.Date.String())

	by, err := f.store.GetBatchYear(ctx, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, by.TotalAttendanceCount)

	entries, err := f.store.ListEntries(ctx, points.EntryFilter{
		SourceType: core.SourceAttendance, SourceID: rec.ID,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 40, entries[0].Points)

	sum, err := f.store.GetSummary(ctx, f.student.ID, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AttendanceCount)
	assert.Equal(t, 40, sum.TotalPoints)
}

func TestCreateAttendance_ByMobileNumber(t *testing.T) {
	f := newFixture(t)

	rec, err := f.activity.Create(context.Background(), activity.KindAttendance,
		activity.StudentRef{Mobile: "01200000001"}, meetingTime(14, 18, 20), "")
	require.NoError(t, err)
	assert.Equal(t, f.student.ID, rec.Student)
}

func TestCreateAttendance_SameDayRejected(t *testing.T) {
	// GIVEN: An attendance record for the day
	// WHEN: Recording the same student on the same day again
	// THEN: Rejected; the counter stays at one day

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.activity.Create(ctx, activity.KindAttendance,
		activity.StudentRef{ID: f.student.ID}, meetingTime(14, 17, 45), "")
	require.NoError(t, err)

	_, err = f.activity.Create(ctx, activity.KindAttendance,
		activity.StudentRef{ID: f.student.ID}, meetingTime(14, 19, 30), "")
	assert.True(t, core.IsDuplicate(err))

	by, err := f.store.GetBatchYear(ctx, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, by.TotalAttendanceCount)
}

func TestCreateConfession_MonthCounter(t *testing.T) {
	// Two confessions in March and one in April count two distinct months.
	f := newFixture(t)
	ctx := context.Background()

	for _, day := range []int{7, 21} {
		_, err := f.activity.Create(ctx, activity.KindConfession,
			activity.StudentRef{ID: f.student.ID}, meetingTime(day, 11, 0), "")
		require.NoError(t, err)
	}
	_, err := f.activity.Create(ctx, activity.KindConfession,
		activity.StudentRef{ID: f.student.ID},
		time.Date(2025, time.April, 4, 11, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)

	by, err := f.store.GetBatchYear(ctx, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, by.ConfessionMonths)
}

func TestCreateMass_NoCounterSideEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.activity.Create(ctx, activity.KindMass,
		activity.StudentRef{ID: f.student.ID}, meetingTime(16, 9, 0), "")
	require.NoError(t, err)

	by, err := f.store.GetBatchYear(ctx, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, by.TotalAttendanceCount)
	assert.Equal(t, 0, by.ConfessionMonths)

	sum, err := f.store.GetSummary(ctx, f.student.ID, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.MassesCount)
	assert.Equal(t, 10, sum.TotalPoints)
}

func TestCreate_UnknownStudentFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.activity.Create(context.Background(), activity.KindAttendance,
		activity.StudentRef{ID: core.NewID()}, meetingTime(14, 18, 0), "")
	assert.True(t, core.IsNotFound(err))
}

// =============================================================================
// SAGA COMPENSATION TESTS
// =============================================================================

type failingMinter struct{}

func (failingMinter) AwardActivity(context.Context, core.ID, core.ID, core.Source, time.Time) error {
	return errors.New("mint failed")
}

func (failingMinter) DeleteBySource(context.Context, core.Source) error { return nil }

func TestCreate_MintFailureCompensates(t *testing.T) {
	// GIVEN: A points service that always fails
	// WHEN: Recording an attendance
	// THEN: The inserted record is removed and the counter re-refreshed,
	//       so the workflow leaves no trace

	f := newFixture(t)
	ctx := context.Background()
	broken := activity.NewService(f.store, f.resolver, f.resolver, failingMinter{})

	_, err := broken.Create(ctx, activity.KindAttendance,
		activity.StudentRef{ID: f.student.ID}, meetingTime(14, 17, 45), "")
	require.Error(t, err)

	records, lerr := f.store.ListRecords(ctx, activity.KindAttendance,
		activity.RecordFilter{StudentID: f.student.ID})
	require.NoError(t, lerr)
	assert.Empty(t, records)

	by, berr := f.store.GetBatchYear(ctx, f.batchYear.ID)
	require.NoError(t, berr)
	assert.Equal(t, 0, by.TotalAttendanceCount)
}

// =============================================================================
// UPDATE / DELETE TESTS
// =============================================================================

func TestUpdate_MovesDateButPinsPoints(t *testing.T) {
	// GIVEN: An attendance record and its minted entry
	// WHEN: Moving the record to another day
	// THEN: The counter follows the record; the ledger entry keeps its
	//       original date

	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.activity.Create(ctx, activity.KindAttendance,
		activity.StudentRef{ID: f.student.ID}, meetingTime(14, 17, 45), "")
	require.NoError(t, err)

	moved, err := f.activity.Update(ctx, activity.KindAttendance, rec.ID,
		meetingTime(21, 17, 45), "rescheduled")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-21", moved.Date.String())

	entries, err := f.store.ListEntries(ctx, points.EntryFilter{
		SourceType: core.SourceAttendance, SourceID: rec.ID,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2025-03-14", entries[0].Date.String())
}

func TestDelete_RevokesPointsAndRefreshesCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.activity.Create(ctx, activity.KindAttendance,
		activity.StudentRef{ID: f.student.ID}, meetingTime(14, 17, 45), "")
	require.NoError(t, err)

	require.NoError(t, f.activity.Delete(ctx, activity.KindAttendance, rec.ID))

	entries, err := f.store.ListEntries(ctx, points.EntryFilter{
		SourceType: core.SourceAttendance, SourceID: rec.ID,
	})
	require.NoError(t, err)
	assert.Empty(t, entries)

	by, err := f.store.GetBatchYear(ctx, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, by.TotalAttendanceCount)

	sum, err := f.store.GetSummary(ctx, f.student.ID, f.batchYear.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.TotalPoints)
}

// =============================================================================
// HOME VISIT TESTS
// =============================================================================

func TestHomeVisit_RequiresServants(t *testing.T) {
	f := newFixture(t)

	_, err := f.activity.CreateHomeVisit(context.Background(), &activity.HomeVisit{
		Student:   f.student.ID,
		VisitDate: core.NewDay(2025, time.March, 15),
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestHomeVisit_UniquePerStudentAndDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	servant := &roster.Servant{
		ID: core.NewID(), Name: "Abanoub", Email: "abanoub@example.org", MobileNumber: "01000000001",
	}
	require.NoError(t, f.store.InsertServant(ctx, servant))

	visit := &activity.HomeVisit{
		Student:   f.student.ID,
		VisitDate: core.NewDay(2025, time.March, 15),
		Servants:  []core.ID{servant.ID},
	}
	_, err := f.activity.CreateHomeVisit(ctx, visit)
	require.NoError(t, err)

	_, err = f.activity.CreateHomeVisit(ctx, &activity.HomeVisit{
		Student:   f.student.ID,
		VisitDate: core.NewDay(2025, time.March, 15),
		Servants:  []core.ID{servant.ID},
	})
	assert.True(t, core.IsDuplicate(err))
}

func TestHomeVisit_NoPointsMinted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	servant := &roster.Servant{
		ID: core.NewID(), Name: "Kirollos", Email: "kirollos@example.org", MobileNumber: "01000000002",
	}
	require.NoError(t, f.store.InsertServant(ctx, servant))

	_, err := f.activity.CreateHomeVisit(ctx, &activity.HomeVisit{
		Student:   f.student.ID,
		VisitDate: core.NewDay(2025, time.March, 15),
		Servants:  []core.ID{servant.ID},
	})
	require.NoError(t, err)

	totals, err := f.points.StudentTotals(ctx, f.student.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Overall.Points)
}
