package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hrledger/internal/ledger"
)

const attendanceColumns = `a.id, a.employee_id, a.date, a.check_in, a.check_out, a.total_hours,
	a.status, a.notes, a.flagged, a.created_at`

func scanAttendance(row rowScanner) (ledger.AttendanceRecord, error) {
	var r ledger.AttendanceRecord
	err := row.Scan(&r.ID, &r.EmployeeID, &r.Date, &r.CheckIn, &r.CheckOut, &r.TotalHours,
		&r.Status, &r.Notes, &r.Flagged, &r.CreatedAt)
	return r, err
}

func collectAttendance(rows *sql.Rows, op string) ([]ledger.AttendanceRecord, error) {
	defer rows.Close()
	var out []ledger.AttendanceRecord
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, wrap(op, err, nil)
		}
		out = append(out, rec)
	}
	return out, wrap(op, rows.Err(), nil)
}

func optionalAttendance(row *sql.Row, op string) (*ledger.AttendanceRecord, error) {
	rec, err := scanAttendance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(op, err, nil)
	}
	return &rec, nil
}

// FindOpenSession returns the employee's open session on date, or nil.
func (l *Ledger) FindOpenSession(ctx context.Context, employeeID int64, date time.Time) (*ledger.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance a
		WHERE a.employee_id = $1 AND a.date = $2
		  AND a.check_in IS NOT NULL AND a.check_out IS NULL
		LIMIT 1`, employeeID, date)
	return optionalAttendance(row, "find open session")
}

// FindUnstartedAttendance returns a record for date that has no check-in yet, or nil.
func (l *Ledger) FindUnstartedAttendance(ctx context.Context, employeeID int64, date time.Time) (*ledger.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance a
		WHERE a.employee_id = $1 AND a.date = $2 AND a.check_in IS NULL
		ORDER BY a.created_at DESC
		LIMIT 1`, employeeID, date)
	return optionalAttendance(row, "find unstarted attendance")
}

// InsertAttendance inserts rec unless it would be a second open session for the same day.
func (l *Ledger) InsertAttendance(ctx context.Context, rec ledger.AttendanceRecord) (ledger.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO attendance AS a (employee_id, date, check_in, check_out, total_hours, status, notes, flagged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (employee_id, date) WHERE check_in IS NOT NULL AND check_out IS NULL DO NOTHING
		RETURNING `+attendanceColumns,
		rec.EmployeeID, rec.Date, rec.CheckIn, rec.CheckOut, rec.TotalHours, rec.Status, rec.Notes, rec.Flagged)
	out, err := scanAttendance(row)
	if isUniqueViolation(err) {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}
	return out, wrap("insert attendance", err, ledger.ErrAlreadyCheckedIn)
}

// StartSession stamps check-in on a record that has none yet.
func (l *Ledger) StartSession(ctx context.Context, id int64, checkIn time.Time, status ledger.AttendanceStatus) (ledger.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		UPDATE attendance AS a SET check_in = $2, status = $3
		WHERE a.id = $1 AND a.check_in IS NULL
		RETURNING `+attendanceColumns, id, checkIn, status)
	out, err := scanAttendance(row)
	if isUniqueViolation(err) {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}
	return out, wrap("start session", err, ledger.ErrAlreadyCheckedIn)
}

// CloseSession stamps check-out on a session that is still open.
func (l *Ledger) CloseSession(ctx context.Context, id int64, checkOut time.Time, totalHours float64, flagged bool) (ledger.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		UPDATE attendance AS a SET check_out = $2, total_hours = $3, flagged = $4
		WHERE a.id = $1 AND a.check_out IS NULL
		RETURNING `+attendanceColumns, id, checkOut, totalHours, flagged)
	out, err := scanAttendance(row)
	return out, wrap("close session", err, ledger.ErrAlreadyCheckedOut)
}

// GetAttendance returns ledger.ErrNotFound for records outside the company.
func (l *Ledger) GetAttendance(ctx context.Context, companyID, id int64) (ledger.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance a
		JOIN employees e ON e.id = a.employee_id
		WHERE a.id = $1 AND e.company_id = $2`, id, companyID)
	rec, err := scanAttendance(row)
	return rec, wrap("get attendance", err, ledger.ErrNotFound)
}

// UpdateAttendance overwrites an existing record visible to the company.
func (l *Ledger) UpdateAttendance(ctx context.Context, companyID int64, rec ledger.AttendanceRecord) (ledger.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		UPDATE attendance AS a
		SET employee_id = $3, date = $4, check_in = $5, check_out = $6, total_hours = $7,
			status = $8, notes = $9, flagged = $10
		FROM employees e
		WHERE a.id = $1 AND e.id = a.employee_id AND e.company_id = $2
		RETURNING `+attendanceColumns,
		rec.ID, companyID, rec.EmployeeID, rec.Date, rec.CheckIn, rec.CheckOut, rec.TotalHours,
		rec.Status, rec.Notes, rec.Flagged)
	out, err := scanAttendance(row)
	if isUniqueViolation(err) {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}
	return out, wrap("update attendance", err, ledger.ErrNotFound)
}

// ListAttendanceByEmployee returns records within r, newest date first.
func (l *Ledger) ListAttendanceByEmployee(ctx context.Context, companyID, employeeID int64, r ledger.DateRange) ([]ledger.AttendanceRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance a
		JOIN employees e ON e.id = a.employee_id
		WHERE a.employee_id = $1 AND e.company_id = $2
		  AND ($3::date IS NULL OR a.date >= $3::date)
		  AND ($4::date IS NULL OR a.date <= $4::date)
		ORDER BY a.date DESC, a.created_at DESC`, employeeID, companyID, r.From, r.To)
	if err != nil {
		return nil, wrap("list attendance", err, nil)
	}
	return collectAttendance(rows, "list attendance")
}

// ListAttendanceByCompany returns every record, or only those on date when set.
func (l *Ledger) ListAttendanceByCompany(ctx context.Context, companyID int64, date *time.Time) ([]ledger.AttendanceRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance a
		JOIN employees e ON e.id = a.employee_id
		WHERE e.company_id = $1
		  AND ($2::date IS NULL OR a.date = $2::date)
		ORDER BY a.date DESC, a.created_at DESC`, companyID, date)
	if err != nil {
		return nil, wrap("list attendance", err, nil)
	}
	return collectAttendance(rows, "list attendance")
}
