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

func tierPolicy() *points.PolicyConfig {
	return &points.PolicyConfig{
		AttendanceTiers: []points.TierWindow{
			{Start: "17:30", End: "18:15", Type: "lvl1"},
			{Start: "18:16", End: "18:30", Type: "lvl2"},
			{Start: "18:31", End: "19:00", Type: "lvl3"},
			{Start: "19:01", End: "23:59", Type: "lvl4"},
		},
		AttendanceDefault: "lvl4",
		ConfessionType:    "confession",
		MassType:          "mass",
	}
}

func arrival(hour, min, sec int) time.Time {
	return time.Date(2025, time.March, 14, hour, min, sec, 0, time.UTC)
}

// =============================================================================
// TIER MATCHING TESTS
// =============================================================================

func TestPolicy_AttendanceTiers(t *testing.T) {
	// GIVEN: The four-tier arrival policy
	// WHEN: Arriving at various times
	// THEN: Window bounds are inclusive; gaps and misses fall to the default

	policy := tierPolicy()

	cases := []struct {
		name string
		at   time.Time
		want core.ID
	}{
		{"window start is inclusive", arrival(17, 30, 0), "lvl1"},
		{"mid window", arrival(18, 0, 0), "lvl1"},
		{"window end is inclusive", arrival(18, 15, 0), "lvl1"},
		{"next window start", arrival(18, 16, 0), "lvl2"},
		{"third window", arrival(18, 45, 0), "lvl3"},
		{"late arrival", arrival(21, 0, 0), "lvl4"},
		{"last second past end falls to default", arrival(23, 59, 59), "lvl4"},
		{"before all windows falls to default", arrival(8, 0, 0), "lvl4"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := policy.AttendanceTypeFor(tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPolicy_SecondsWithinEndMinuteFallThrough(t *testing.T) {
	// 18:15:30 is past the 18:15 bound and before 18:16, so it earns the
	// default rather than either neighboring tier.
	policy := tierPolicy()

	got, err := policy.AttendanceTypeFor(arrival(18, 15, 30))
	require.NoError(t, err)
	assert.Equal(t, core.ID("lvl4"), got)
}

func TestPolicy_MissingDefaultIsConfigurationError(t *testing.T) {
	policy := &points.PolicyConfig{}

	_, err := policy.AttendanceTypeFor(arrival(18, 0, 0))
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestPolicy_FixedTypes(t *testing.T) {
	policy := tierPolicy()

	conf, err := policy.TypeFor(core.SourceConfession)
	require.NoError(t, err)
	assert.Equal(t, core.ID("confession"), conf)

	mass, err := policy.TypeFor(core.SourceMass)
	require.NoError(t, err)
	assert.Equal(t, core.ID("mass"), mass)

	_, err = policy.TypeFor(core.SourceBonus)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestPolicy_MissingFixedTypeIsConfigurationError(t *testing.T) {
	policy := &points.PolicyConfig{}

	_, err := policy.TypeFor(core.SourceMass)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

// =============================================================================
// SEEDING TESTS
// =============================================================================

func testSpec() points.PolicySpec {
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

func TestEnsurePolicyTypes_SeedsMissingTypes(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Resolving the by-name policy
	// THEN: Every referenced type is created and the config carries real ids

	store := memory.New()
	ctx := context.Background()

	cfg, err := points.EnsurePolicyTypes(ctx, store, testSpec())
	require.NoError(t, err)

	types, err := store.ListPointTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 6)

	lvl1, err := store.GetPointType(ctx, cfg.AttendanceTiers[0].Type)
	require.NoError(t, err)
	assert.Equal(t, 40, lvl1.Value)
	assert.False(t, cfg.ConfessionType.IsZero())
	assert.False(t, cfg.MassType.IsZero())
}

func TestEnsurePolicyTypes_ExistingTypesKeepStoredValues(t *testing.T) {
	// Re-seeding must not clobber operator edits to the stored values.
	store := memory.New()
	ctx := context.Background()

	edited := &points.PointType{ID: core.NewID(), Name: "Lvl 1", Value: 55}
	require.NoError(t, store.InsertPointType(ctx, edited))

	cfg, err := points.EnsurePolicyTypes(ctx, store, testSpec())
	require.NoError(t, err)

	got, err := store.GetPointType(ctx, cfg.AttendanceTiers[0].Type)
	require.NoError(t, err)
	assert.Equal(t, edited.ID, got.ID)
	assert.Equal(t, 55, got.Value)
}

func TestEnsurePolicyTypes_UndefinedTypeFails(t *testing.T) {
	spec := testSpec()
	delete(spec.Types, "Mass")

	_, err := points.EnsurePolicyTypes(context.Background(), memory.New(), spec)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

// =============================================================================
// POINT TYPE CONSTRAINT TESTS
// =============================================================================

func TestPointType_NonPositiveValueRejected(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Creating types with negative or zero values
	// THEN: Both are rejected, so no tier can ever mint a non-positive entry

	store := memory.New()
	ctx := context.Background()

	err := store.InsertPointType(ctx, &points.PointType{
		ID: core.NewID(), Name: "Penalty", Value: -5,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	err = store.InsertPointType(ctx, &points.PointType{
		ID: core.NewID(), Name: "Nothing", Value: 0,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	types, err := store.ListPointTypes(ctx)
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestPointType_UpdateToNonPositiveValueRejected(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	pt := &points.PointType{ID: core.NewID(), Name: "Lvl 1", Value: 40}
	require.NoError(t, store.InsertPointType(ctx, pt))

	pt.Value = -1
	_, err := store.UpdatePointType(ctx, pt)
	assert.ErrorIs(t, err, core.ErrValidation)

	got, err := store.GetPointType(ctx, pt.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.Value)
}

func TestEnsurePolicyTypes_NonPositiveSpecValueFails(t *testing.T) {
	// A mistyped config value must fail startup seeding, not reach the
	// ledger.
	spec := testSpec()
	spec.Types["Lvl 4"] = points.PointType{Value: -5}

	_, err := points.EnsurePolicyTypes(context.Background(), memory.New(), spec)
	assert.ErrorIs(t, err, core.ErrValidation)
}
