/*
roster.go - roster.Store implementation

Reference entities, batches, enrollment contexts and students. Query
filters compile into dynamic WHERE clauses; name-based filters join the
referenced table and match with LIKE.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/khedma/ministry-engine/core"
	"github.com/khedma/ministry-engine/roster"
)

type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// CLASSES / YEARS
// =============================================================================
// The two tables share a shape; the named wrappers keep the interface
// honest about which entity an id refers to.

func (s *Store) insertNamed(ctx context.Context, table string, id core.ID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, name, created_at) VALUES (?, ?, ?)", table),
		id, name, nowString())
	return mapDuplicate(err)
}

func (s *Store) getNamed(ctx context.Context, table, entity string, id core.ID) (core.ID, string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gotID, name, createdAt string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id, name, created_at FROM %s WHERE id = ?", table), id,
	).Scan(&gotID, &name, &createdAt)
	if err == sql.ErrNoRows {
		return "", "", "", &core.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return "", "", "", err
	}
	return core.ID(gotID), name, createdAt, nil
}

func (s *Store) listNamed(ctx context.Context, table string, f roster.NameFilter) ([]core.ID, []string, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf("SELECT id, name, created_at FROM %s WHERE 1=1", table)
	var args []any
	if !f.ID.IsZero() {
		query += " AND id = ?"
		args = append(args, f.ID)
	}
	if f.Name != "" {
		query += " AND name LIKE '%' || ? || '%'"
		args = append(args, f.Name)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()

	var ids []core.ID
	var names, createds []string
	for rows.Next() {
		var id, name, created string
		if err := rows.Scan(&id, &name, &created); err != nil {
			return nil, nil, nil, err
		}
		ids = append(ids, core.ID(id))
		names = append(names, name)
		createds = append(createds, created)
	}
	return ids, names, createds, rows.Err()
}

func (s *Store) updateNamed(ctx context.Context, table, entity string, id core.ID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET name = ? WHERE id = ?", table), name, id)
	if err != nil {
		return mapDuplicate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func (s *Store) deleteByID(ctx context.Context, table, entity string, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func (s *Store) InsertClass(ctx context.Context, c *roster.Class) error {
	return s.insertNamed(ctx, "classes", c.ID, c.Name)
}

func (s *Store) GetClass(ctx context.Context, id core.ID) (*roster.Class, error) {
	gotID, name, created, err := s.getNamed(ctx, "classes", "class", id)
	if err != nil {
		return nil, err
	}
	return &roster.Class{ID: gotID, Name: name, CreatedAt: parseTime(created)}, nil
}

func (s *Store) ListClasses(ctx context.Context, f roster.NameFilter) ([]roster.Class, error) {
	ids, names, createds, err := s.listNamed(ctx, "classes", f)
	if err != nil {
		return nil, err
	}
	out := make([]roster.Class, len(ids))
	for i := range ids {
		out[i] = roster.Class{ID: ids[i], Name: names[i], CreatedAt: parseTime(createds[i])}
	}
	return out, nil
}

func (s *Store) UpdateClass(ctx context.Context, id core.ID, name string) (*roster.Class, error) {
	if err := s.updateNamed(ctx, "classes", "class", id, name); err != nil {
		return nil, err
	}
	return s.GetClass(ctx, id)
}

func (s *Store) DeleteClass(ctx context.Context, id core.ID) error {
	return s.deleteByID(ctx, "classes", "class", id)
}

func (s *Store) InsertYear(ctx context.Context, y *roster.Year) error {
	return s.insertNamed(ctx, "years", y.ID, y.Name)
}

func (s *Store) GetYear(ctx context.Context, id core.ID) (*roster.Year, error) {
	gotID, name, created, err := s.getNamed(ctx, "years", "year", id)
	if err != nil {
		return nil, err
	}
	return &roster.Year{ID: gotID, Name: name, CreatedAt: parseTime(created)}, nil
}

func (s *Store) ListYears(ctx context.Context, f roster.NameFilter) ([]roster.Year, error) {
	ids, names, createds, err := s.listNamed(ctx, "years", f)
	if err != nil {
		return nil, err
	}
	out := make([]roster.Year, len(ids))
	for i := range ids {
		out[i] = roster.Year{ID: ids[i], Name: names[i], CreatedAt: parseTime(createds[i])}
	}
	return out, nil
}

func (s *Store) UpdateYear(ctx context.Context, id core.ID, name string) (*roster.Year, error) {
	if err := s.updateNamed(ctx, "years", "year", id, name); err != nil {
		return nil, err
	}
	return s.GetYear(ctx, id)
}

func (s *Store) DeleteYear(ctx context.Context, id core.ID) error {
	return s.deleteByID(ctx, "years", "year", id)
}

// =============================================================================
// SERVANTS
// =============================================================================

func (s *Store) InsertServant(ctx context.Context, sv *roster.Servant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO servants (id, name, email, mobile_number, birth_date, assigned_class, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sv.ID, sv.Name, sv.Email, sv.MobileNumber,
		nullDay(sv.BirthDate), nullString(sv.AssignedClass.String()), nowString())
	return mapDuplicate(err)
}

func scanServant(row scanner) (*roster.Servant, error) {
	var sv roster.Servant
	var birthDate, assignedClass sql.NullString
	var createdAt string
	if err := row.Scan(&sv.ID, &sv.Name, &sv.Email, &sv.MobileNumber,
		&birthDate, &assignedClass, &createdAt); err != nil {
		return nil, err
	}
	sv.BirthDate = parseDay(birthDate.String)
	sv.AssignedClass = core.ID(assignedClass.String)
	sv.CreatedAt = parseTime(createdAt)
	return &sv, nil
}

func (s *Store) GetServant(ctx context.Context, id core.ID) (*roster.Servant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, err := scanServant(s.db.QueryRowContext(ctx, `
		SELECT id, name, email, mobile_number, birth_date, assigned_class, created_at
		FROM servants WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "servant", ID: id}
	}
	return sv, err
}

func (s *Store) ListServants(ctx context.Context, f roster.NameFilter) ([]roster.Servant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, email, mobile_number, birth_date, assigned_class, created_at
		FROM servants WHERE 1=1`
	var args []any
	if !f.ID.IsZero() {
		query += " AND id = ?"
		args = append(args, f.ID)
	}
	if f.Name != "" {
		query += " AND name LIKE '%' || ? || '%'"
		args = append(args, f.Name)
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.Servant
	for rows.Next() {
		sv, err := scanServant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sv)
	}
	return out, rows.Err()
}

func (s *Store) UpdateServant(ctx context.Context, sv *roster.Servant) (*roster.Servant, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE servants SET name = ?, email = ?, mobile_number = ?, birth_date = ?, assigned_class = ?
		WHERE id = ?`,
		sv.Name, sv.Email, sv.MobileNumber,
		nullDay(sv.BirthDate), nullString(sv.AssignedClass.String()), sv.ID)
	s.mu.Unlock()
	if err != nil {
		return nil, mapDuplicate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.NotFoundError{Entity: "servant", ID: sv.ID}
	}
	return s.GetServant(ctx, sv.ID)
}

func (s *Store) DeleteServant(ctx context.Context, id core.ID) error {
	return s.deleteByID(ctx, "servants", "servant", id)
}

// =============================================================================
// BATCHES
// =============================================================================

func (s *Store) InsertBatch(ctx context.Context, b *roster.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (id, name, description, curr_year, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Name, nullString(b.Description), b.CurrYear, nowString())
	return mapDuplicate(err)
}

func scanBatch(row scanner) (*roster.Batch, error) {
	var b roster.Batch
	var description sql.NullString
	var createdAt string
	if err := row.Scan(&b.ID, &b.Name, &description, &b.CurrYear, &createdAt); err != nil {
		return nil, err
	}
	b.Description = description.String
	b.CreatedAt = parseTime(createdAt)
	return &b, nil
}

func (s *Store) GetBatch(ctx context.Context, id core.ID) (*roster.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := scanBatch(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, curr_year, created_at FROM batches WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "batch", ID: id}
	}
	return b, err
}

func (s *Store) ListBatches(ctx context.Context, f roster.BatchFilter) ([]roster.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT b.id, b.name, b.description, b.curr_year, b.created_at
		FROM batches b WHERE 1=1`
	var args []any
	if !f.ID.IsZero() {
		query += " AND b.id = ?"
		args = append(args, f.ID)
	}
	if f.Name != "" {
		query += " AND b.name LIKE '%' || ? || '%'"
		args = append(args, f.Name)
	}
	if f.CurrYearName != "" {
		query += " AND b.curr_year IN (SELECT id FROM years WHERE name LIKE '%' || ? || '%')"
		args = append(args, f.CurrYearName)
	}
	query += " ORDER BY b.name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) UpdateBatch(ctx context.Context, b *roster.Batch) (*roster.Batch, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches SET name = ?, description = ? WHERE id = ?`,
		b.Name, nullString(b.Description), b.ID)
	s.mu.Unlock()
	if err != nil {
		return nil, mapDuplicate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.NotFoundError{Entity: "batch", ID: b.ID}
	}
	return s.GetBatch(ctx, b.ID)
}

func (s *Store) SetBatchCurrYear(ctx context.Context, id, yearID core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE batches SET curr_year = ? WHERE id = ?", yearID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Entity: "batch", ID: id}
	}
	return nil
}

func (s *Store) DeleteBatch(ctx context.Context, id core.ID) error {
	return s.deleteByID(ctx, "batches", "batch", id)
}

// =============================================================================
// BATCH YEARS
// =============================================================================

func (s *Store) InsertBatchYear(ctx context.Context, by *roster.BatchYear) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batch_years
		(id, batch_id, year_id, academic_year, total_attendance_count, confession_months,
		 start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		by.ID, by.Batch, by.Year, by.AcademicYear,
		by.TotalAttendanceCount, by.ConfessionMonths,
		by.StartDate.String(), by.EndDate.String(), nowString())
	return mapDuplicate(err)
}

func scanBatchYear(row scanner) (*roster.BatchYear, error) {
	var by roster.BatchYear
	var startDate, endDate, createdAt string
	if err := row.Scan(&by.ID, &by.Batch, &by.Year, &by.AcademicYear,
		&by.TotalAttendanceCount, &by.ConfessionMonths,
		&startDate, &endDate, &createdAt); err != nil {
		return nil, err
	}
	by.StartDate = parseDay(startDate)
	by.EndDate = parseDay(endDate)
	by.CreatedAt = parseTime(createdAt)
	return &by, nil
}

const batchYearColumns = `
	by_.id, by_.batch_id, by_.year_id, by_.academic_year,
	by_.total_attendance_count, by_.confession_months,
	by_.start_date, by_.end_date, by_.created_at`

func (s *Store) GetBatchYear(ctx context.Context, id core.ID) (*roster.BatchYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	by, err := scanBatchYear(s.db.QueryRowContext(ctx,
		"SELECT"+batchYearColumns+" FROM batch_years by_ WHERE by_.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "batch year", ID: id}
	}
	return by, err
}

func (s *Store) ListBatchYears(ctx context.Context, f roster.BatchYearFilter) ([]roster.BatchYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT" + batchYearColumns + " FROM batch_years by_ WHERE 1=1"
	var args []any
	if !f.ID.IsZero() {
		query += " AND by_.id = ?"
		args = append(args, f.ID)
	}
	if !f.BatchID.IsZero() {
		query += " AND by_.batch_id = ?"
		args = append(args, f.BatchID)
	} else if f.BatchName != "" {
		query += " AND by_.batch_id IN (SELECT id FROM batches WHERE name LIKE '%' || ? || '%')"
		args = append(args, f.BatchName)
	}
	if !f.YearID.IsZero() {
		query += " AND by_.year_id = ?"
		args = append(args, f.YearID)
	} else if f.YearName != "" {
		query += " AND by_.year_id IN (SELECT id FROM years WHERE name LIKE '%' || ? || '%')"
		args = append(args, f.YearName)
	}
	if f.AcademicYear != "" {
		query += " AND by_.academic_year LIKE '%' || ? || '%'"
		args = append(args, f.AcademicYear)
	}
	query += " ORDER BY by_.start_date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.BatchYear
	for rows.Next() {
		by, err := scanBatchYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *by)
	}
	return out, rows.Err()
}

func (s *Store) DeleteBatchYear(ctx context.Context, id core.ID) error {
	return s.deleteByID(ctx, "batch_years", "batch year", id)
}

func (s *Store) DeleteBatchYearsByBatch(ctx context.Context, batchID core.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM batch_years WHERE batch_id = ?", batchID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// STUDENTS
// =============================================================================

const studentColumns = `
	st.id, st.full_name, st.image, st.class_id, st.servant_id, st.batch_id,
	st.mobile_number, st.whatsapp_number, st.mother_name, st.father_mobile, st.mother_mobile,
	st.birth_date, st.school, st.father_of_confession, st.is_deacon,
	st.addr_region, st.addr_street, st.addr_building, st.addr_floor, st.addr_apartment,
	st.addr_description, st.gps_url, st.latitude, st.longitude,
	st.notes, st.is_excluded, st.created_at`

func (s *Store) InsertStudent(ctx context.Context, st *roster.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students
		(id, full_name, image, class_id, servant_id, batch_id,
		 mobile_number, whatsapp_number, mother_name, father_mobile, mother_mobile,
		 birth_date, school, father_of_confession, is_deacon,
		 addr_region, addr_street, addr_building, addr_floor, addr_apartment,
		 addr_description, gps_url, latitude, longitude, notes, is_excluded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.FullName, nullString(st.Image),
		nullString(st.Class.String()), nullString(st.Servant.String()), st.Batch,
		st.MobileNumber, nullString(st.WhatsAppNumber), nullString(st.MotherName),
		nullString(st.FatherMobile), nullString(st.MotherMobile),
		nullDay(st.BirthDate), nullString(st.School), nullString(st.FatherOfConfession), st.IsDeacon,
		nullString(st.Address.Region), nullString(st.Address.Street), nullString(st.Address.Building),
		nullString(st.Address.Floor), nullString(st.Address.Apartment),
		nullString(st.Address.Description), nullString(st.Address.GPSURL),
		nullString(st.Address.Latitude), nullString(st.Address.Longitude),
		nullString(st.Notes), st.IsExcluded, nowString())
	return mapDuplicate(err)
}

func scanStudent(row scanner) (*roster.Student, error) {
	var st roster.Student
	var image, classID, servantID, whatsapp, motherName, fatherMobile, motherMobile sql.NullString
	var birthDate, school, fatherOfConfession sql.NullString
	var region, street, building, floor, apartment, description, gpsURL, lat, lng sql.NullString
	var notes sql.NullString
	var createdAt string

	if err := row.Scan(&st.ID, &st.FullName, &image, &classID, &servantID, &st.Batch,
		&st.MobileNumber, &whatsapp, &motherName, &fatherMobile, &motherMobile,
		&birthDate, &school, &fatherOfConfession, &st.IsDeacon,
		&region, &street, &building, &floor, &apartment,
		&description, &gpsURL, &lat, &lng,
		&notes, &st.IsExcluded, &createdAt); err != nil {
		return nil, err
	}

	st.Image = image.String
	st.Class = core.ID(classID.String)
	st.Servant = core.ID(servantID.String)
	st.WhatsAppNumber = whatsapp.String
	st.MotherName = motherName.String
	st.FatherMobile = fatherMobile.String
	st.MotherMobile = motherMobile.String
	st.BirthDate = parseDay(birthDate.String)
	st.School = school.String
	st.FatherOfConfession = fatherOfConfession.String
	st.Address = roster.Address{
		Region: region.String, Street: street.String, Building: building.String,
		Floor: floor.String, Apartment: apartment.String, Description: description.String,
		GPSURL: gpsURL.String, Latitude: lat.String, Longitude: lng.String,
	}
	st.Notes = notes.String
	st.CreatedAt = parseTime(createdAt)
	return &st, nil
}

func (s *Store) GetStudent(ctx context.Context, id core.ID) (*roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := scanStudent(s.db.QueryRowContext(ctx,
		"SELECT"+studentColumns+" FROM students st WHERE st.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Entity: "student", ID: id}
	}
	return st, err
}

func (s *Store) ListStudents(ctx context.Context, f roster.StudentFilter) ([]roster.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT" + studentColumns + " FROM students st WHERE 1=1"
	var args []any
	if !f.ID.IsZero() {
		query += " AND st.id = ?"
		args = append(args, f.ID)
	}
	if f.Name != "" {
		query += " AND st.full_name LIKE '%' || ? || '%'"
		args = append(args, f.Name)
	}
	if f.BatchName != "" {
		query += " AND st.batch_id IN (SELECT id FROM batches WHERE name LIKE '%' || ? || '%')"
		args = append(args, f.BatchName)
	}
	if f.ClassName != "" {
		query += " AND st.class_id IN (SELECT id FROM classes WHERE name LIKE '%' || ? || '%')"
		args = append(args, f.ClassName)
	}
	if f.ServantName != "" {
		query += " AND st.servant_id IN (SELECT id FROM servants WHERE name LIKE '%' || ? || '%')"
		args = append(args, f.ServantName)
	}
	if f.Mobile != "" {
		query += " AND st.mobile_number = ?"
		args = append(args, f.Mobile)
	} else if f.AnyMobile != "" {
		query += ` AND (st.mobile_number = ? OR st.whatsapp_number = ?
			OR st.father_mobile = ? OR st.mother_mobile = ?)`
		args = append(args, f.AnyMobile, f.AnyMobile, f.AnyMobile, f.AnyMobile)
	}
	if f.BirthMonth != 0 {
		query += " AND CAST(strftime('%m', st.birth_date) AS INTEGER) = ?"
		args = append(args, int(f.BirthMonth))
	}
	if !f.IncludeExcluded {
		query += " AND st.is_excluded = FALSE"
	}
	if f.BirthMonth != 0 {
		query += " ORDER BY CAST(strftime('%d', st.birth_date) AS INTEGER) ASC"
	} else {
		query += " ORDER BY st.full_name ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStudent(ctx context.Context, st *roster.Student) (*roster.Student, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE students SET
			full_name = ?, image = ?, class_id = ?, servant_id = ?,
			mobile_number = ?, whatsapp_number = ?, mother_name = ?,
			father_mobile = ?, mother_mobile = ?,
			birth_date = ?, school = ?, father_of_confession = ?, is_deacon = ?,
			addr_region = ?, addr_street = ?, addr_building = ?, addr_floor = ?,
			addr_apartment = ?, addr_description = ?, gps_url = ?, latitude = ?, longitude = ?,
			notes = ?
		WHERE id = ?`,
		st.FullName, nullString(st.Image),
		nullString(st.Class.String()), nullString(st.Servant.String()),
		st.MobileNumber, nullString(st.WhatsAppNumber), nullString(st.MotherName),
		nullString(st.FatherMobile), nullString(st.MotherMobile),
		nullDay(st.BirthDate), nullString(st.School), nullString(st.FatherOfConfession), st.IsDeacon,
		nullString(st.Address.Region), nullString(st.Address.Street), nullString(st.Address.Building),
		nullString(st.Address.Floor), nullString(st.Address.Apartment),
		nullString(st.Address.Description), nullString(st.Address.GPSURL),
		nullString(st.Address.Latitude), nullString(st.Address.Longitude),
		nullString(st.Notes), st.ID)
	s.mu.Unlock()
	if err != nil {
		return nil, mapDuplicate(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.NotFoundError{Entity: "student", ID: st.ID}
	}
	return s.GetStudent(ctx, st.ID)
}

func (s *Store) SetStudentExcluded(ctx context.Context, id core.ID, excluded bool) (*roster.Student, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx,
		"UPDATE students SET is_excluded = ? WHERE id = ?", excluded, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &core.NotFoundError{Entity: "student", ID: id}
	}
	return s.GetStudent(ctx, id)
}

func (s *Store) DeleteStudent(ctx context.Context, id core.ID) (*roster.Student, error) {
	st, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.deleteByID(ctx, "students", "student", id); err != nil {
		return nil, err
	}
	return st, nil
}
