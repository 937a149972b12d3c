/*
Package config loads runtime configuration.

PURPOSE:
  Single place where defaults, an optional .env file and environment
  variables are merged. The result is a plain struct handed to main;
  nothing else in the tree reads the environment.

PRECEDENCE (highest wins):
  1. Environment variables (prefix MINISTRY_)
  2. .env file next to the binary, when present
  3. Baked-in defaults

POLICY DEFAULTS:
  The default attendance tiers reward early arrival to the Friday
  meeting: 17:30-18:15 full points, then two decreasing windows, with
  everything after 19:00 earning the floor value.
*/
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/khedma/ministry-engine/points"
)

// Config is the resolved runtime configuration.
type Config struct {
	Addr            string
	DBPath          string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	Policy          points.PolicySpec
}

// Load merges defaults, the optional .env file and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("db_path", "./data/ministry.db")
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("points.attendance_lvl1", 40)
	v.SetDefault("points.attendance_lvl2", 20)
	v.SetDefault("points.attendance_lvl3", 10)
	v.SetDefault("points.attendance_lvl4", 5)
	v.SetDefault("points.confession", 20)
	v.SetDefault("points.mass", 10)

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, err
		}
	}
	v.SetEnvPrefix("ministry")
	v.AutomaticEnv()

	return &Config{
		Addr:            v.GetString("addr"),
		DBPath:          v.GetString("db_path"),
		AllowedOrigins:  v.GetStringSlice("allowed_origins"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Policy:          policySpec(v),
	}, nil
}

// Point type names are stable identifiers: the seeding step looks types
// up by name, so renaming one here creates a new type instead of
// updating the old one.
const (
	TypeAttendanceLvl1 = "Attendance Level 1"
	TypeAttendanceLvl2 = "Attendance Level 2"
	TypeAttendanceLvl3 = "Attendance Level 3"
	TypeAttendanceLvl4 = "Attendance Level 4"
	TypeConfession     = "Confession"
	TypeMass           = "Mass"
)

func policySpec(v *viper.Viper) points.PolicySpec {
	return points.PolicySpec{
		Types: map[string]points.PointType{
			TypeAttendanceLvl1: {Value: v.GetInt("points.attendance_lvl1"), Description: "Arrived 17:30-18:15"},
			TypeAttendanceLvl2: {Value: v.GetInt("points.attendance_lvl2"), Description: "Arrived 18:16-18:30"},
			TypeAttendanceLvl3: {Value: v.GetInt("points.attendance_lvl3"), Description: "Arrived 18:31-19:00"},
			TypeAttendanceLvl4: {Value: v.GetInt("points.attendance_lvl4"), Description: "Arrived after 19:00"},
			TypeConfession:     {Value: v.GetInt("points.confession"), Description: "Attended confession"},
			TypeMass:           {Value: v.GetInt("points.mass"), Description: "Attended mass"},
		},
		AttendanceTiers: []points.TierSpec{
			{Start: "17:30", End: "18:15", Type: TypeAttendanceLvl1},
			{Start: "18:16", End: "18:30", Type: TypeAttendanceLvl2},
			{Start: "18:31", End: "19:00", Type: TypeAttendanceLvl3},
			{Start: "19:01", End: "23:59", Type: TypeAttendanceLvl4},
		},
		AttendanceDefault: TypeAttendanceLvl4,
		ConfessionType:    TypeConfession,
		MassType:          TypeMass,
	}
}
