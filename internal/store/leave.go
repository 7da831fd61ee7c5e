package store

import (
	"context"
	"database/sql"
	"errors"

	"hrledger/internal/ledger"
)

const leaveColumns = `l.id, l.employee_id, l.leave_type, l.start_date, l.end_date, l.days, l.status, l.reason,
	l.approved_by, l.approved_at, l.admin_comments, l.created_at`

func scanLeave(row rowScanner) (ledger.LeaveRequest, error) {
	var r ledger.LeaveRequest
	err := row.Scan(&r.ID, &r.EmployeeID, &r.Type, &r.StartDate, &r.EndDate, &r.Days, &r.Status, &r.Reason,
		&r.ApprovedBy, &r.ApprovedAt, &r.AdminComments, &r.CreatedAt)
	return r, err
}

func collectLeave(rows *sql.Rows) ([]ledger.LeaveRequest, error) {
	defer rows.Close()
	var out []ledger.LeaveRequest
	for rows.Next() {
		req, err := scanLeave(rows)
		if err != nil {
			return nil, wrap("scan leave request", err, nil)
		}
		out = append(out, req)
	}
	return out, wrap("list leave requests", rows.Err(), nil)
}

// InsertLeave stores a new request.
func (l *Ledger) InsertLeave(ctx context.Context, req ledger.LeaveRequest) (ledger.LeaveRequest, error) {
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO leave_requests AS l (employee_id, leave_type, start_date, end_date, days, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+leaveColumns,
		req.EmployeeID, req.Type, req.StartDate, req.EndDate, req.Days, req.Status, req.Reason)
	out, err := scanLeave(row)
	return out, wrap("insert leave request", err, nil)
}

// GetLeave returns ledger.ErrNotFound outside the company.
func (l *Ledger) GetLeave(ctx context.Context, companyID, id int64) (ledger.LeaveRequest, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_requests l
		JOIN employees e ON e.id = l.employee_id
		WHERE l.id = $1 AND e.company_id = $2`, id, companyID)
	req, err := scanLeave(row)
	return req, wrap("get leave request", err, ledger.ErrNotFound)
}

// UpdateLeaveStatusIfPending applies review only while the request is still pending.
// ok is false when no row matched; the caller decides between not found and not pending.
func (l *Ledger) UpdateLeaveStatusIfPending(ctx context.Context, companyID, id int64, review ledger.LeaveReview) (ledger.LeaveRequest, bool, error) {
	row := l.db.QueryRowContext(ctx, `
		UPDATE leave_requests AS l
		SET status = $3, approved_by = $4, admin_comments = $5, approved_at = $6
		FROM employees e
		WHERE l.id = $1 AND e.id = l.employee_id AND e.company_id = $2
		  AND l.status = 'pending'
		RETURNING `+leaveColumns,
		id, companyID, review.Status, review.ReviewerID, review.Comments, review.At)
	req, err := scanLeave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.LeaveRequest{}, false, nil
	}
	if err != nil {
		return ledger.LeaveRequest{}, false, wrap("adjudicate leave request", err, nil)
	}
	return req, true, nil
}

// ListLeaveByEmployee orders newest first.
func (l *Ledger) ListLeaveByEmployee(ctx context.Context, companyID, employeeID int64) ([]ledger.LeaveRequest, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_requests l
		JOIN employees e ON e.id = l.employee_id
		WHERE l.employee_id = $1 AND e.company_id = $2
		ORDER BY l.created_at DESC, l.id DESC`, employeeID, companyID)
	if err != nil {
		return nil, wrap("list leave requests", err, nil)
	}
	return collectLeave(rows)
}

// ListLeaveByCompany orders newest first.
func (l *Ledger) ListLeaveByCompany(ctx context.Context, companyID int64) ([]ledger.LeaveRequest, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_requests l
		JOIN employees e ON e.id = l.employee_id
		WHERE e.company_id = $1
		ORDER BY l.created_at DESC, l.id DESC`, companyID)
	if err != nil {
		return nil, wrap("list leave requests", err, nil)
	}
	return collectLeave(rows)
}
