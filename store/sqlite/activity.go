/*
activity.go - activity.Store implementation

The three record kinds share one table shape; kindTable dispatches onto
the physical table. Counter refreshes are single UPDATE statements that
fully recompute from the record tables, so concurrent refreshes converge
on the same value.
*/
package sqlite

import (
	"context"
	"database/sql"

	"github.com/khedma/ministry-engine/activity"
	"github.com/khedma/ministry-engine/core"
)

var kindTables = map[activity.Kind]string{
	activity.KindAttendance: "attendance",
	activity.KindConfession: "confessions",
	activity.KindMass:       "masses",
}

func kindTable(kind activity.Kind) (string, error) {
	table, ok := kindTables[kind]
	if !ok {
		return "", core.Validationf("unknown activity kind %q", kind)
	}
	return table, nil
}

// =============================================================================
// RECORDS
// =============================================================================

func (s *Store) InsertRecord(ctx context.Context, r *activity.Record) error {
	table, err := kindTable(r.Kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+` (id, student_id, batch_year_id, date, at, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Student, r.BatchYear, r.Date.String(),
		r.At.UTC().Format(timeLayout), nullString(r.Notes), nowString())
	return mapDuplicate(err)
}

func scanRecord(kind activity.Kind, row scanner) (*activity.Record, error) {
	var r activity.Record
	var date, at, createdAt string
	var notes sql.NullString
	if err := row.Scan(&r.ID, &r.Student, &r.BatchYear, &date, &at, &notes, &createdAt); err != nil {
		return nil, err
	}
	r.Kind = kind
	r.Date = parseDay(date)
	r.At = parseTime(at)
	r.Notes = notes.String
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

func (s *Store) GetRecord(ctx context.Context, kind activity.Kind, id core.ID) (*activity.Record, error) {
	table, err := kindTable(kind)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRecord(kind, s.db.QueryRowContext(ctx, `
		SELECT id, student_id, batch_year_id, date, at, notes, created_at
		FROM `+table+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: string(kind) + " record", ID: id}
	}
	return r, err
}

func (s *Store) ListRecords(ctx context.Context, kind activity.Kind, f activity.RecordFilter) ([]activity.Record, error) {
	table, err := kindTable(kind)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT r.id, r.student_id, r.batch_year_id, r.date, r.at, r.notes, r.created_at
		FROM ` + table + ` r WHERE 1=1`
	var args []any
	if !f.ID.IsZero() {
		query += " AND r.id = ?"
		args = append(args, f.ID)
	}
	if !f.StudentID.IsZero() {
		query += " AND r.student_id = ?"
		args = append(args, f.StudentID)
	}
	if f.StudentName != "" {
		query += " AND r.student_id IN (SELECT id FROM students WHERE full_name LIKE '%' || ? || '%')"
		args = append(args, f.StudentName)
	}
	if !f.BatchYearID.IsZero() {
		query += " AND r.batch_year_id = ?"
		args = append(args, f.BatchYearID)
	}
	if f.AcademicYear != "" {
		query += " AND r.batch_year_id IN (SELECT id FROM batch_years WHERE academic_year LIKE '%' || ? || '%')"
		args = append(args, f.AcademicYear)
	}
	if !f.Date.IsZero() {
		query += " AND r.date = ?"
		args = append(args, f.Date.String())
	}
	if !f.DateFrom.IsZero() {
		query += " AND r.date >= ?"
		args = append(args, f.DateFrom.String())
	}
	if !f.DateTo.IsZero() {
		query += " AND r.date <= ?"
		args = append(args, f.DateTo.String())
	}
	query += " ORDER BY r.date DESC, r.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []activity.Record
	for rows.Next() {
		r, err := scanRecord(kind, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRecord(ctx context.Context, r *activity.Record) (*activity.Record, error) {
	table, err := kindTable(r.Kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE `+table+` SET date = ?, at = ?, notes = ? WHERE id = ?`,
		r.Date.String(), r.At.UTC().Format(timeLayout), nullString(r.Notes), r.ID)
	s.mu.Unlock()
	if err != nil {
		return nil, mapDuplicate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.NotFoundError{Entity: string(r.Kind) + " record", ID: r.ID}
	}
	return s.GetRecord(ctx, r.Kind, r.ID)
}

func (s *Store) DeleteRecord(ctx context.Context, kind activity.Kind, id core.ID) (*activity.Record, error) {
	r, err := s.GetRecord(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.deleteByID(ctx, kindTables[kind], string(kind)+" record", id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) DeleteRecordsByStudent(ctx context.Context, kind activity.Kind, studentID core.ID) (int, error) {
	table, err := kindTable(kind)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE student_id = ?", studentID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// DERIVED COUNTERS
// =============================================================================

// RefreshAttendanceCount recounts distinct attendance dates (dates, not
// rows) for the enrollment context.
func (s *Store) RefreshAttendanceCount(ctx context.Context, batchYearID core.ID) (int, error) {
	return s.refreshCounter(ctx, batchYearID, `
		UPDATE batch_years SET total_attendance_count =
			(SELECT COUNT(DISTINCT date) FROM attendance WHERE batch_year_id = ?)
		WHERE id = ?`, "total_attendance_count")
}

// RefreshConfessionMonths recounts distinct calendar months with at
// least one confession for the enrollment context.
func (s *Store) RefreshConfessionMonths(ctx context.Context, batchYearID core.ID) (int, error) {
	return s.refreshCounter(ctx, batchYearID, `
		UPDATE batch_years SET confession_months =
			(SELECT COUNT(DISTINCT strftime('%Y-%m', date)) FROM confessions WHERE batch_year_id = ?)
		WHERE id = ?`, "confession_months")
}

func (s *Store) refreshCounter(ctx context.Context, batchYearID core.ID, update, column string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, update, batchYearID, batchYearID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, &core.NotFoundError{Entity: "batch year", ID: batchYearID}
	}

	var value int
	err = s.db.QueryRowContext(ctx,
		"SELECT "+column+" FROM batch_years WHERE id = ?", batchYearID).Scan(&value)
	return value, err
}

// =============================================================================
// HOME VISITS
// =============================================================================

func (s *Store) InsertHomeVisit(ctx context.Context, v *activity.HomeVisit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO home_visits (id, student_id, visit_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.Student, v.VisitDate.String(), nullString(v.Notes), nowString())
	if err != nil {
		return mapDuplicate(err)
	}
	for _, servantID := range v.Servants {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO home_visit_servants (visit_id, servant_id) VALUES (?, ?)",
			v.ID, servantID); err != nil {
			return mapDuplicate(err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetHomeVisit(ctx context.Context, id core.ID) (*activity.HomeVisit, error) {
	visits, err := s.ListHomeVisits(ctx, activity.HomeVisitFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if len(visits) == 0 {
		return nil, &core.NotFoundError{Entity: "home visit", ID: id}
	}
	return &visits[0], nil
}

func (s *Store) ListHomeVisits(ctx context.Context, f activity.HomeVisitFilter) ([]activity.HomeVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT v.id, v.student_id, v.visit_date, v.notes, v.created_at
		FROM home_visits v WHERE 1=1`
	var args []any
	if !f.ID.IsZero() {
		query += " AND v.id = ?"
		args = append(args, f.ID)
	}
	if !f.StudentID.IsZero() {
		query += " AND v.student_id = ?"
		args = append(args, f.StudentID)
	}
	if f.StudentName != "" {
		query += " AND v.student_id IN (SELECT id FROM students WHERE full_name LIKE '%' || ? || '%')"
		args = append(args, f.StudentName)
	}
	if !f.ServantID.IsZero() {
		query += " AND v.id IN (SELECT visit_id FROM home_visit_servants WHERE servant_id = ?)"
		args = append(args, f.ServantID)
	}
	if !f.VisitDate.IsZero() {
		query += " AND v.visit_date = ?"
		args = append(args, f.VisitDate.String())
	}
	query += " ORDER BY v.visit_date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []activity.HomeVisit
	for rows.Next() {
		var v activity.HomeVisit
		var visitDate, createdAt string
		var notes sql.NullString
		if err := rows.Scan(&v.ID, &v.Student, &visitDate, &notes, &createdAt); err != nil {
			return nil, err
		}
		v.VisitDate = parseDay(visitDate)
		v.Notes = notes.String
		v.CreatedAt = parseTime(createdAt)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		servants, err := s.visitServants(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Servants = servants
	}
	return out, nil
}

func (s *Store) visitServants(ctx context.Context, visitID core.ID) ([]core.ID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT servant_id FROM home_visit_servants WHERE visit_id = ? ORDER BY servant_id", visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, core.ID(id))
	}
	return out, rows.Err()
}

func (s *Store) UpdateHomeVisit(ctx context.Context, v *activity.HomeVisit) (*activity.HomeVisit, error) {
	s.mu.Lock()
	err := func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx,
			"UPDATE home_visits SET visit_date = ?, notes = ? WHERE id = ?",
			v.VisitDate.String(), nullString(v.Notes), v.ID)
		if err != nil {
			return mapDuplicate(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &core.NotFoundError{Entity: "home visit", ID: v.ID}
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM home_visit_servants WHERE visit_id = ?", v.ID); err != nil {
			return err
		}
		for _, servantID := range v.Servants {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO home_visit_servants (visit_id, servant_id) VALUES (?, ?)",
				v.ID, servantID); err != nil {
				return mapDuplicate(err)
			}
		}
		return tx.Commit()
	}()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.GetHomeVisit(ctx, v.ID)
}

func (s *Store) DeleteHomeVisit(ctx context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM home_visits WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "home visit", ID: id}
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM home_visit_servants WHERE visit_id = ?", id)
	return err
}

func (s *Store) DeleteHomeVisitsByStudent(ctx context.Context, studentID core.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM home_visit_servants WHERE visit_id IN
			(SELECT id FROM home_visits WHERE student_id = ?)`, studentID)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM home_visits WHERE student_id = ?", studentID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
