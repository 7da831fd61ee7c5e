package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hrledger/internal/ledger"
)

const payrollColumns = `p.id, p.employee_id, p.pay_period_start, p.pay_period_end, p.base_salary::float8,
	p.bonus::float8, p.deductions::float8, p.net_pay::float8, p.status, p.processed_at, p.paid_at,
	p.idempotency_key, p.created_at`

func scanPayroll(row rowScanner) (ledger.PayrollRecord, error) {
	var r ledger.PayrollRecord
	err := row.Scan(&r.ID, &r.EmployeeID, &r.PeriodStart, &r.PeriodEnd, &r.BaseSalary,
		&r.Bonus, &r.Deductions, &r.NetPay, &r.Status, &r.ProcessedAt, &r.PaidAt,
		&r.IdempotencyKey, &r.CreatedAt)
	return r, err
}

func collectPayroll(rows *sql.Rows) ([]ledger.PayrollRecord, error) {
	defer rows.Close()
	var out []ledger.PayrollRecord
	for rows.Next() {
		rec, err := scanPayroll(rows)
		if err != nil {
			return nil, wrap("scan payroll", err, nil)
		}
		out = append(out, rec)
	}
	return out, wrap("list payroll", rows.Err(), nil)
}

// conditional runs a guarded UPDATE returning one payroll row; ok is false when the guard matched nothing.
func (l *Ledger) conditional(ctx context.Context, op, query string, args ...any) (ledger.PayrollRecord, bool, error) {
	rec, err := scanPayroll(l.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.PayrollRecord{}, false, nil
	}
	if err != nil {
		return ledger.PayrollRecord{}, false, wrap(op, err, nil)
	}
	return rec, true, nil
}

// InsertPayroll stores a new record.
func (l *Ledger) InsertPayroll(ctx context.Context, rec ledger.PayrollRecord) (ledger.PayrollRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO payroll AS p (employee_id, pay_period_start, pay_period_end, base_salary, bonus,
			deductions, net_pay, status, processed_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+payrollColumns,
		rec.EmployeeID, rec.PeriodStart, rec.PeriodEnd, rec.BaseSalary, rec.Bonus,
		rec.Deductions, rec.NetPay, rec.Status, rec.ProcessedAt, rec.IdempotencyKey)
	out, err := scanPayroll(row)
	return out, wrap("insert payroll", err, nil)
}

// GetPayroll returns ledger.ErrNotFound outside the company.
func (l *Ledger) GetPayroll(ctx context.Context, companyID, id int64) (ledger.PayrollRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+payrollColumns+`
		FROM payroll p
		JOIN employees e ON e.id = p.employee_id
		WHERE p.id = $1 AND e.company_id = $2`, id, companyID)
	rec, err := scanPayroll(row)
	return rec, wrap("get payroll", err, ledger.ErrNotFound)
}

// FindPayrollByIdempotencyKey returns the oldest record created with key in the company, or nil.
func (l *Ledger) FindPayrollByIdempotencyKey(ctx context.Context, companyID int64, key string) (*ledger.PayrollRecord, error) {
	rec, err := scanPayroll(l.db.QueryRowContext(ctx, `
		SELECT `+payrollColumns+`
		FROM payroll p
		JOIN employees e ON e.id = p.employee_id
		WHERE p.idempotency_key = $1 AND e.company_id = $2
		ORDER BY p.id ASC
		LIMIT 1`, key, companyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find payroll by idempotency key", err, nil)
	}
	return &rec, nil
}

// UpdatePayrollAmountsIfPending writes the three inputs and the derived net pay in one statement.
func (l *Ledger) UpdatePayrollAmountsIfPending(ctx context.Context, companyID, id int64, amt ledger.PayrollAmounts) (ledger.PayrollRecord, bool, error) {
	return l.conditional(ctx, "update payroll amounts", `
		UPDATE payroll AS p
		SET base_salary = $3, bonus = $4, deductions = $5, net_pay = $6
		FROM employees e
		WHERE p.id = $1 AND e.id = p.employee_id AND e.company_id = $2
		  AND p.status = 'pending'
		RETURNING `+payrollColumns,
		id, companyID, amt.BaseSalary, amt.Bonus, amt.Deductions, amt.NetPay)
}

// ProcessPayrollIfPending stamps processed_at on a pending record.
func (l *Ledger) ProcessPayrollIfPending(ctx context.Context, companyID, id int64, at time.Time) (ledger.PayrollRecord, bool, error) {
	return l.conditional(ctx, "process payroll", `
		UPDATE payroll AS p
		SET status = 'processed', processed_at = $3
		FROM employees e
		WHERE p.id = $1 AND e.id = p.employee_id AND e.company_id = $2
		  AND p.status = 'pending'
		RETURNING `+payrollColumns, id, companyID, at)
}

// MarkPayrollPaidIfProcessed stamps paid_at on a processed record.
func (l *Ledger) MarkPayrollPaidIfProcessed(ctx context.Context, companyID, id int64, at time.Time) (ledger.PayrollRecord, bool, error) {
	return l.conditional(ctx, "mark payroll paid", `
		UPDATE payroll AS p
		SET status = 'paid', paid_at = $3
		FROM employees e
		WHERE p.id = $1 AND e.id = p.employee_id AND e.company_id = $2
		  AND p.status = 'processed'
		RETURNING `+payrollColumns, id, companyID, at)
}

// ListPayrollByEmployee orders by period start, newest first.
func (l *Ledger) ListPayrollByEmployee(ctx context.Context, companyID, employeeID int64) ([]ledger.PayrollRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+payrollColumns+`
		FROM payroll p
		JOIN employees e ON e.id = p.employee_id
		WHERE p.employee_id = $1 AND e.company_id = $2
		ORDER BY p.pay_period_start DESC, p.id DESC`, employeeID, companyID)
	if err != nil {
		return nil, wrap("list payroll", err, nil)
	}
	return collectPayroll(rows)
}

// ListPayrollByCompany orders by period start, newest first.
func (l *Ledger) ListPayrollByCompany(ctx context.Context, companyID int64) ([]ledger.PayrollRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+payrollColumns+`
		FROM payroll p
		JOIN employees e ON e.id = p.employee_id
		WHERE e.company_id = $1
		ORDER BY p.pay_period_start DESC, p.id DESC`, companyID)
	if err != nil {
		return nil, wrap("list payroll", err, nil)
	}
	return collectPayroll(rows)
}
