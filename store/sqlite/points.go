/*
points.go - points.Store implementation

The ledger table carries the partial unique index that enforces one
activity-sourced entry per (student, date, batchYear, type). Totals is a
single GROUP BY over the surviving entries; summary rows are written only
through UpdateSummaryTotals (upsert) and seeding.
*/
package sqlite

import (
	"context"
	"database/sql"

	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/points"
)

// =============================================================================
// POINT TYPES
// =============================================================================

func (s *Store) InsertPointType(ctx context.Context, t *points.PointType) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO point_types (id, name, value, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Value, nullString(t.Description), nowString())
	return mapDuplicate(err)
}

func scanPointType(row scanner) (*points.PointType, error) {
	var t points.PointType
	var description sql.NullString
	var createdAt string
	if err := row.Scan(&t.ID, &t.Name, &t.Value, &description, &createdAt); err != nil {
		return nil, err
	}
	t.Description = description.String
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

func (s *Store) GetPointType(ctx context.Context, id core.ID) (*points.PointType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanPointType(s.db.QueryRowContext(ctx,
		"SELECT id, name, value, description, created_at FROM point_types WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "point type", ID: id}
	}
	return t, err
}

func (s *Store) GetPointTypeByName(ctx context.Context, name string) (*points.PointType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := scanPointType(s.db.QueryRowContext(ctx,
		"SELECT id, name, value, description, created_at FROM point_types WHERE name = ?", name))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "point type"}
	}
	return t, err
}

func (s *Store) ListPointTypes(ctx context.Context) ([]points.PointType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, value, description, created_at FROM point_types ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []points.PointType
	for rows.Next() {
		t, err := scanPointType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePointType(ctx context.Context, t *points.PointType) (*points.PointType, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx,
		"UPDATE point_types SET name = ?, value = ?, description = ? WHERE id = ?",
		t.Name, t.Value, nullString(t.Description), t.ID)
	s.mu.Unlock()
	if err != nil {
		return nil, mapDuplicate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.NotFoundError{Entity: "point type", ID: t.ID}
	}
	return s.GetPointType(ctx, t.ID)
}

func (s *Store) DeletePointType(ctx context.Context, id core.ID) error {
	return s.deleteByID(ctx, "point_types", "point type", id)
}

// =============================================================================
// LEDGER ENTRIES
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e *points.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points
		(id, student_id, batch_year_id, type_id, points, date, source_type, source_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Student, e.BatchYear, e.Type, e.Points, e.Date.String(),
		string(e.Source.Type), nullString(e.Source.ID.String()), nowString())
	return mapDuplicate(err)
}

func scanEntry(row scanner) (*points.Entry, error) {
	var e points.Entry
	var date, sourceType, createdAt string
	var sourceID sql.NullString
	if err := row.Scan(&e.ID, &e.Student, &e.BatchYear, &e.Type, &e.Points,
		&date, &sourceType, &sourceID, &createdAt); err != nil {
		return nil, err
	}
	e.Date = parseDay(date)
	e.Source = core.Source{Type: core.SourceType(sourceType), ID: core.ID(sourceID.String)}
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

const entryColumns = `
	p.id, p.student_id, p.batch_year_id, p.type_id, p.points,
	p.date, p.source_type, p.source_id, p.created_at`

func (s *Store) GetEntry(ctx context.Context, id core.ID) (*points.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := scanEntry(s.db.QueryRowContext(ctx,
		"SELECT"+entryColumns+" FROM points p WHERE p.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "points entry", ID: id}
	}
	return e, err
}

func (s *Store) ListEntries(ctx context.Context, f points.EntryFilter) ([]points.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT" + entryColumns + " FROM points p WHERE 1=1"
	var args []any
	if !f.ID.IsZero() {
		query += " AND p.id = ?"
		args = append(args, f.ID)
	}
	if !f.StudentID.IsZero() {
		query += " AND p.student_id = ?"
		args = append(args, f.StudentID)
	}
	if f.StudentName != "" {
		query += " AND p.student_id IN (SELECT id FROM students WHERE full_name LIKE '%' || ? || '%')"
		args = append(args, f.StudentName)
	}
	if !f.BatchYearID.IsZero() {
		query += " AND p.batch_year_id = ?"
		args = append(args, f.BatchYearID)
	}
	if f.AcademicYear != "" {
		query += " AND p.batch_year_id IN (SELECT id FROM batch_years WHERE academic_year LIKE '%' || ? || '%')"
		args = append(args, f.AcademicYear)
	}
	if !f.TypeID.IsZero() {
		query += " AND p.type_id = ?"
		args = append(args, f.TypeID)
	}
	if f.TypeName != "" {
		query += " AND p.type_id IN (SELECT id FROM point_types WHERE name LIKE '%' || ? || '%')"
		args = append(args, f.TypeName)
	}
	if !f.Date.IsZero() {
		query += " AND p.date = ?"
		args = append(args, f.Date.String())
	}
	if f.SourceType != "" {
		query += " AND p.source_type = ?"
		args = append(args, string(f.SourceType))
	}
	if !f.SourceID.IsZero() {
		query += " AND p.source_id = ?"
		args = append(args, f.SourceID)
	}
	query += " ORDER BY p.date DESC, p.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []points.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEntry(ctx context.Context, e *points.Entry) (*points.Entry, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE points SET student_id = ?, batch_year_id = ?, type_id = ?, points = ?, date = ?
		WHERE id = ?`,
		e.Student, e.BatchYear, e.Type, e.Points, e.Date.String(), e.ID)
	s.mu.Unlock()
	if err != nil {
		return nil, mapDuplicate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.NotFoundError{Entity: "points entry", ID: e.ID}
	}
	return s.GetEntry(ctx, e.ID)
}

func (s *Store) DeleteEntry(ctx context.Context, id core.ID) (*points.Entry, error) {
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deleteByID(ctx, "points", "points entry", id); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) DeleteEntriesByStudent(ctx context.Context, studentID core.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM points WHERE student_id = ?", studentID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Totals aggregates the student's entries by source type in one scan.
func (s *Store) Totals(ctx context.Context, studentID, batchYearID core.ID) (*points.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT source_type, COUNT(*), COALESCE(SUM(points), 0)
		FROM points WHERE student_id = ?`
	args := []any{studentID}
	if !batchYearID.IsZero() {
		query += " AND batch_year_id = ?"
		args = append(args, batchYearID)
	}
	query += " GROUP BY source_type"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := &points.Totals{BySource: make(map[core.SourceType]points.SourceTotal)}
	for rows.Next() {
		var sourceType string
		var count, sum int
		if err := rows.Scan(&sourceType, &count, &sum); err != nil {
			return nil, err
		}
		totals.BySource[core.SourceType(sourceType)] = points.SourceTotal{Count: count, Points: sum}
		totals.Overall.Count += count
		totals.Overall.Points += sum
	}
	return totals, rows.Err()
}

// =============================================================================
// SUMMARIES
// =============================================================================

func (s *Store) InsertSummary(ctx context.Context, sum *points.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries
		(id, student_id, batch_year_id, attendance_count, confessions_count,
		 masses_count, total_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.Student, sum.BatchYear, sum.AttendanceCount,
		sum.ConfessionsCount, sum.MassesCount, sum.TotalPoints, nowString())
	return mapDuplicate(err)
}

func scanSummary(row scanner) (*points.Summary, error) {
	var sum points.Summary
	var createdAt string
	if err := row.Scan(&sum.ID, &sum.Student, &sum.BatchYear, &sum.AttendanceCount,
		&sum.ConfessionsCount, &sum.MassesCount, &sum.TotalPoints, &createdAt); err != nil {
		return nil, err
	}
	sum.CreatedAt = parseTime(createdAt)
	return &sum, nil
}

const summaryColumns = `
	sm.id, sm.student_id, sm.batch_year_id, sm.attendance_count,
	sm.confessions_count, sm.masses_count, sm.total_points, sm.created_at`

func (s *Store) GetSummary(ctx context.Context, studentID, batchYearID core.ID) (*points.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, err := scanSummary(s.db.QueryRowContext(ctx,
		"SELECT"+summaryColumns+" FROM summaries sm WHERE sm.student_id = ? AND sm.batch_year_id = ?",
		studentID, batchYearID))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "summary"}
	}
	return sum, err
}

func (s *Store) ListSummaries(ctx context.Context, f points.SummaryFilter) ([]points.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT" + summaryColumns + " FROM summaries sm WHERE 1=1"
	var args []any
	if !f.StudentID.IsZero() {
		query += " AND sm.student_id = ?"
		args = append(args, f.StudentID)
	}
	if !f.BatchYearID.IsZero() {
		query += " AND sm.batch_year_id = ?"
		args = append(args, f.BatchYearID)
	}
	if f.StudentName != "" {
		query += " AND sm.student_id IN (SELECT id FROM students WHERE full_name LIKE '%' || ? || '%')"
		args = append(args, f.StudentName)
	}
	query += " ORDER BY sm.total_points DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []points.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, rows.Err()
}

// UpdateSummaryTotals upserts the derived columns of the (student,
// batchYear) row.
func (s *Store) UpdateSummaryTotals(ctx context.Context, sum *points.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries
		(id, student_id, batch_year_id, attendance_count, confessions_count,
		 masses_count, total_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, batch_year_id) DO UPDATE SET
			attendance_count = excluded.attendance_count,
			confessions_count = excluded.confessions_count,
			masses_count = excluded.masses_count,
			total_points = excluded.total_points`,
		core.NewID(), sum.Student, sum.BatchYear, sum.AttendanceCount,
		sum.ConfessionsCount, sum.MassesCount, sum.TotalPoints, nowString())
	return err
}

func (s *Store) DeleteSummariesByStudent(ctx context.Context, studentID core.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM summaries WHERE student_id = ?", studentID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
