package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khedma/ministry-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "./data/ministry.db", cfg.DBPath)
	assert.NotZero(t, cfg.ShutdownTimeout)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("MINISTRY_ADDR", ":9999")
	t.Setenv("MINISTRY_DB_PATH", "/tmp/test.db")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Addr)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
}

func TestLoad_PolicyShape(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	p := cfg.Policy

	// Every tier, the default and the fixed types must name a defined
	// point type or startup seeding fails.
	for _, tier := range p.AttendanceTiers {
		assert.Contains(t, p.Types, tier.Type)
	}
	assert.Contains(t, p.Types, p.AttendanceDefault)
	assert.Contains(t, p.Types, p.ConfessionType)
	assert.Contains(t, p.Types, p.MassType)

	assert.Equal(t, 40, p.Types[config.TypeAttendanceLvl1].Value)
	assert.Equal(t, 5, p.Types[config.TypeAttendanceLvl4].Value)
	assert.Equal(t, 20, p.Types[config.TypeConfession].Value)
	assert.Equal(t, 10, p.Types[config.TypeMass].Value)

	require.Len(t, p.AttendanceTiers, 4)
	assert.Equal(t, "17:30", p.AttendanceTiers[0].Start)
	assert.Equal(t, "23:59", p.AttendanceTiers[3].End)
}
