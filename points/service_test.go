package points_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/points"
	"github.com/khedma/ministry-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*points.Service, *memory.Store, *points.PolicyConfig) {
	store := memory.New()
	cfg, err := points.EnsurePolicyTypes(context.Background(), store, testSpec())
	require.NoError(t, err)
	return points.NewService(store, cfg), store, cfg
}

func fridayAt(hour, min int) time.Time {
	return time.Date(2025, time.March, 14, hour, min, 0, 0, time.UTC)
}

const (
	student   = core.ID("student-1")
	batchYear = core.ID("by-1")
)

// =============================================================================
// MINTING TESTS
// =============================================================================

func TestAward_AttendanceSnapshotsTierValue(t *testing.T) {
	// GIVEN: The seeded tier policy
	// WHEN: Awarding an on-time arrival
	// THEN: The entry carries the top tier's value and the activity date

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	src := core.Source{Type: core.SourceAttendance, ID: core.NewID()}
	e, err := svc.Award(ctx, student, batchYear, src, fridayAt(17, 45))
	require.NoError(t, err)

	assert.Equal(t, 40, e.Points)
	assert.Equal(t, "2025-03-14", e.Date.String())
	assert.Equal(t, src, e.Source)
}

func TestAward_ConfessionUsesFixedType(t *testing.T) {
	svc, store, cfg := newTestService(t)
	ctx := context.Background()

	src := core.Source{Type: core.SourceConfession, ID: core.NewID()}
	e, err := svc.Award(ctx, student, batchYear, src, fridayAt(10, 0))
	require.NoError(t, err)

	assert.Equal(t, cfg.ConfessionType, e.Type)
	pt, err := store.GetPointType(ctx, cfg.ConfessionType)
	require.NoError(t, err)
	assert.Equal(t, pt.Value, e.Points)
}

func TestAward_DuplicateActivityEntryRejected(t *testing.T) {
	// GIVEN: An attendance entry for the day
	// WHEN: A second attendance award lands on the same day and tier
	// THEN: The ledger's uniqueness key rejects it

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()}, fridayAt(17, 45))
	require.NoError(t, err)

	_, err = svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()}, fridayAt(17, 50))
	assert.True(t, core.IsDuplicate(err))
}

func TestCreate_RepeatedBonusesAllowed(t *testing.T) {
	// Bonus entries are exempt from the per-day uniqueness key.
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, &points.Entry{
			Student:   student,
			BatchYear: batchYear,
			Points:    15,
			Date:      core.NewDay(2025, time.March, 14),
		})
		require.NoError(t, err)
	}

	totals, err := svc.StudentTotals(ctx, student, batchYear)
	require.NoError(t, err)
	assert.Equal(t, 3, totals.BySource[core.SourceBonus].Count)
	assert.Equal(t, 45, totals.Overall.Points)
}

func TestCreate_ZeroPointsRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), &points.Entry{
		Student:   student,
		BatchYear: batchYear,
		Date:      core.NewDay(2025, time.March, 14),
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCreate_NegativePointsRejected(t *testing.T) {
	// Entries flow straight into summary totals; only positive integers
	// are ever minted.
	svc, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), &points.Entry{
		Student:   student,
		BatchYear: batchYear,
		Points:    -5,
		Date:      core.NewDay(2025, time.March, 14),
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

// =============================================================================
// SUMMARY RECOMPUTE TESTS
// =============================================================================

func TestRecompute_SummaryDerivedFromLedger(t *testing.T) {
	// GIVEN: Attendance, mass and bonus entries across the year
	// WHEN: Reading the summary
	// THEN: Counts split by source and the total includes bonuses

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()}, fridayAt(17, 45))
	require.NoError(t, err)
	_, err = svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceMass, ID: core.NewID()}, fridayAt(9, 0))
	require.NoError(t, err)
	_, err = svc.Create(ctx, &points.Entry{
		Student: student, BatchYear: batchYear, Points: 7,
		Date: core.NewDay(2025, time.March, 20),
	})
	require.NoError(t, err)

	sum, err := store.GetSummary(ctx, student, batchYear)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AttendanceCount)
	assert.Equal(t, 1, sum.MassesCount)
	assert.Equal(t, 0, sum.ConfessionsCount)
	assert.Equal(t, 40+10+7, sum.TotalPoints)
}

func TestRecompute_Idempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()}, fridayAt(18, 20))
	require.NoError(t, err)

	require.NoError(t, svc.Recompute(ctx, student, batchYear))
	require.NoError(t, svc.Recompute(ctx, student, batchYear))

	sum, err := store.GetSummary(ctx, student, batchYear)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AttendanceCount)
	assert.Equal(t, 20, sum.TotalPoints)
}

func TestDelete_TriggersRecompute(t *testing.T) {
	// GIVEN: Two entries and their summary
	// WHEN: Deleting one
	// THEN: The summary reflects only the survivor

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	kept, err := svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()}, fridayAt(17, 45))
	require.NoError(t, err)
	dropped, err := svc.Create(ctx, &points.Entry{
		Student: student, BatchYear: batchYear, Points: 100,
		Date: core.NewDay(2025, time.March, 21),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, dropped.ID))

	sum, err := store.GetSummary(ctx, student, batchYear)
	require.NoError(t, err)
	assert.Equal(t, kept.Points, sum.TotalPoints)
	assert.Equal(t, 1, sum.AttendanceCount)
}

func TestDeleteBySource_MissingEntryIsNoError(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.DeleteBySource(context.Background(),
		core.Source{Type: core.SourceAttendance, ID: core.NewID()})
	assert.NoError(t, err)
}

func TestUpdate_MoveBetweenContextsRecomputesBoth(t *testing.T) {
	// GIVEN: An entry under one enrollment context
	// WHEN: A correction moves it to another
	// THEN: Both summaries are recomputed

	svc, store, _ := newTestService(t)
	ctx := context.Background()
	otherYear := core.ID("by-2")

	e, err := svc.Create(ctx, &points.Entry{
		Student: student, BatchYear: batchYear, Points: 30,
		Date: core.NewDay(2025, time.March, 14),
	})
	require.NoError(t, err)

	e.BatchYear = otherYear
	_, err = svc.Update(ctx, e)
	require.NoError(t, err)

	oldSum, err := store.GetSummary(ctx, student, batchYear)
	require.NoError(t, err)
	assert.Equal(t, 0, oldSum.TotalPoints)

	newSum, err := store.GetSummary(ctx, student, otherYear)
	require.NoError(t, err)
	assert.Equal(t, 30, newSum.TotalPoints)
}

func TestUpdate_ActivityDateCollisionRejected(t *testing.T) {
	// GIVEN: Two same-tier attendance entries a week apart
	// WHEN: A correction moves one onto the other's day
	// THEN: The per-day uniqueness key rejects the move and the entry
	//       keeps its original date

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()}, fridayAt(17, 45))
	require.NoError(t, err)

	moved, err := svc.Award(ctx, student, batchYear,
		core.Source{Type: core.SourceAttendance, ID: core.NewID()},
		time.Date(2025, time.March, 21, 17, 45, 0, 0, time.UTC))
	require.NoError(t, err)

	moved.Date = core.NewDay(2025, time.March, 14)
	_, err = svc.Update(ctx, moved)
	assert.True(t, core.IsDuplicate(err))

	got, err := store.GetEntry(ctx, moved.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-21", got.Date.String())
}

// =============================================================================
// TOTALS / TEARDOWN TESTS
// =============================================================================

func TestStudentTotals_OptionalContextScope(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &points.Entry{
		Student: student, BatchYear: batchYear, Points: 10,
		Date: core.NewDay(2025, time.March, 14),
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &points.Entry{
		Student: student, BatchYear: "by-2", Points: 5,
		Date: core.NewDay(2026, time.January, 9),
	})
	require.NoError(t, err)

	scoped, err := svc.StudentTotals(ctx, student, batchYear)
	require.NoError(t, err)
	assert.Equal(t, 10, scoped.Overall.Points)

	all, err := svc.StudentTotals(ctx, student, "")
	require.NoError(t, err)
	assert.Equal(t, 15, all.Overall.Points)
}

func TestPurgeStudent_RemovesLedgerAndSummaries(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedSummary(ctx, student, batchYear))
	_, err := svc.Create(ctx, &points.Entry{
		Student: student, BatchYear: batchYear, Points: 10,
		Date: core.NewDay(2025, time.March, 14),
	})
	require.NoError(t, err)

	require.NoError(t, svc.PurgeStudent(ctx, student))

	entries, err := store.ListEntries(ctx, points.EntryFilter{StudentID: student})
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.GetSummary(ctx, student, batchYear)
	assert.True(t, core.IsNotFound(err))
}

func TestSeedSummary_DuplicateRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SeedSummary(ctx, student, batchYear))
	err := svc.SeedSummary(ctx, student, batchYear)
	assert.True(t, core.IsDuplicate(err))
}
