/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (roster.Store, activity.Store,
  points.Store) in one Store so a single database file carries the whole
  system. The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

UNIQUENESS ENFORCEMENT:
  Every compound uniqueness invariant lives here as a UNIQUE constraint
  or index; the services never pre-check for duplicates. Violations are
  mapped onto *core.DuplicateError by inspecting the failed column set.

KEY INDEXES:
  - idx_unique_activity_points: one activity-sourced ledger entry per
    (student, date, batchYear, type); bonus entries exempt via the
    partial WHERE clause
  - attendance/confessions/masses UNIQUE(student, date, batch_year)
  - home_visits UNIQUE(student, visit_date)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/ministry.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - roster.go, activity.go, points.go: per-interface implementations
  - store/memory: map-backed points store for engine tests
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/khedma/ministry-engine/core"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Reference entities
	CREATE TABLE IF NOT EXISTS classes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_classes_name ON classes(name);

	CREATE TABLE IF NOT EXISTS years (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_years_name ON years(name);

	CREATE TABLE IF NOT EXISTS servants (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		mobile_number TEXT NOT NULL,
		birth_date TEXT,
		assigned_class TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_servants_name ON servants(name);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_servants_email ON servants(email);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_servants_mobile ON servants(mobile_number);

	-- Batches and enrollment contexts
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		curr_year TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_batches_name ON batches(name);

	CREATE TABLE IF NOT EXISTS batch_years (
		id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL,
		year_id TEXT NOT NULL,
		academic_year TEXT NOT NULL,
		total_attendance_count INTEGER NOT NULL DEFAULT 0,
		confession_months INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_batch_years_batch_year
		ON batch_years(batch_id, year_id);

	-- Students
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		image TEXT,
		class_id TEXT,
		servant_id TEXT,
		batch_id TEXT NOT NULL,
		mobile_number TEXT NOT NULL,
		whatsapp_number TEXT,
		mother_name TEXT,
		father_mobile TEXT,
		mother_mobile TEXT,
		birth_date TEXT,
		school TEXT,
		father_of_confession TEXT,
		is_deacon BOOLEAN NOT NULL DEFAULT FALSE,
		addr_region TEXT,
		addr_street TEXT,
		addr_building TEXT,
		addr_floor TEXT,
		addr_apartment TEXT,
		addr_description TEXT,
		gps_url TEXT,
		latitude TEXT,
		longitude TEXT,
		notes TEXT,
		is_excluded BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_students_full_name ON students(full_name);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_students_mobile ON students(mobile_number);
	CREATE INDEX IF NOT EXISTS idx_students_batch ON students(batch_id);

	-- Activity records: one table per kind, identical shape
	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		batch_year_id TEXT NOT NULL,
		date TEXT NOT NULL,
		at TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_unique_day
		ON attendance(student_id, date, batch_year_id);
	CREATE INDEX IF NOT EXISTS idx_attendance_batch_year ON attendance(batch_year_id);

	CREATE TABLE IF NOT EXISTS confessions (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		batch_year_id TEXT NOT NULL,
		date TEXT NOT NULL,
		at TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_confessions_unique_day
		ON confessions(student_id, date, batch_year_id);
	CREATE INDEX IF NOT EXISTS idx_confessions_batch_year ON confessions(batch_year_id);

	CREATE TABLE IF NOT EXISTS masses (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		batch_year_id TEXT NOT NULL,
		date TEXT NOT NULL,
		at TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_masses_unique_day
		ON masses(student_id, date, batch_year_id);

	-- Home visits
	CREATE TABLE IF NOT EXISTS home_visits (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		visit_date TEXT NOT NULL,
		notes TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_home_visits_unique_day
		ON home_visits(student_id, visit_date);

	CREATE TABLE IF NOT EXISTS home_visit_servants (
		visit_id TEXT NOT NULL,
		servant_id TEXT NOT NULL,
		PRIMARY KEY (visit_id, servant_id)
	);

	-- Rewards ledger
	CREATE TABLE IF NOT EXISTS point_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		value INTEGER NOT NULL,
		description TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_point_types_name ON point_types(name);

	CREATE TABLE IF NOT EXISTS points (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		batch_year_id TEXT NOT NULL,
		type_id TEXT NOT NULL,
		points INTEGER NOT NULL,
		date TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one activity-sourced entry per (student, date, context, type).
	-- Bonus entries are exempt: the same bonus can be awarded repeatedly
	-- on the same day.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_activity_points
		ON points(student_id, date, batch_year_id, type_id)
		WHERE source_type IN ('attendance', 'confession', 'mass');

	CREATE INDEX IF NOT EXISTS idx_points_student ON points(student_id);
	CREATE INDEX IF NOT EXISTS idx_points_source ON points(source_type, source_id);

	-- Per-year summaries (derived, recomputed from points)
	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		batch_year_id TEXT NOT NULL,
		attendance_count INTEGER NOT NULL DEFAULT 0,
		confessions_count INTEGER NOT NULL DEFAULT 0,
		masses_count INTEGER NOT NULL DEFAULT 0,
		total_points INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_summaries_student_year
		ON summaries(student_id, batch_year_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDay(d core.Day) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDay(s string) core.Day {
	if s == "" {
		return core.Day{}
	}
	d, _ := core.ParseDay(s)
	return d
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// timeLayout is the storage format for full timestamps. Days are stored
// as "2006-01-02" so the uniqueness indexes compare whole dates.
const timeLayout = time.RFC3339

func nowString() string {
	return time.Now().UTC().Format(timeLayout)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// duplicateIndexes maps the column set of a failed UNIQUE constraint onto
// the entity and fields reported to clients. go-sqlite3 reports failures
// as "UNIQUE constraint failed: table.col, table.col".
var duplicateIndexes = []struct {
	needle string
	entity string
	fields []string
}{
	{"classes.name", "class", []string{"name"}},
	{"years.name", "year", []string{"name"}},
	{"servants.name", "servant", []string{"name"}},
	{"servants.email", "servant", []string{"email"}},
	{"servants.mobile_number", "servant", []string{"mobileNumber"}},
	{"batches.name", "batch", []string{"name"}},
	{"batch_years.batch_id", "batch year", []string{"batch", "year"}},
	{"students.full_name", "student", []string{"fullName"}},
	{"students.mobile_number", "student", []string{"mobileNumber"}},
	{"attendance.student_id", "attendance", []string{"student", "date", "batchYear"}},
	{"confessions.student_id", "confession", []string{"student", "date", "batchYear"}},
	{"masses.student_id", "mass", []string{"student", "date", "batchYear"}},
	{"home_visits.student_id", "home visit", []string{"student", "visitDate"}},
	{"point_types.name", "point type", []string{"name"}},
	{"points.student_id", "points entry", []string{"student", "date", "batchYear", "type"}},
	{"summaries.student_id", "summary", []string{"student", "batchYear"}},
}

// mapDuplicate converts a UNIQUE violation into a *core.DuplicateError,
// passing every other error through untouched.
func mapDuplicate(err error) error {
	if !isUniqueConstraintError(err) {
		return err
	}
	msg := err.Error()
	for _, d := range duplicateIndexes {
		if strings.Contains(msg, d.needle) {
			return &core.DuplicateError{Entity: d.entity, Fields: d.fields}
		}
	}
	return fmt.Errorf("%w: %v", core.ErrDuplicate, err)
}
