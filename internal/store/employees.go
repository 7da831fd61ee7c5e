package store

import (
	"context"

	"hrledger/internal/ledger"
)

const employeeColumns = `e.id, e.user_id, e.employee_code, e.first_name, e.last_name, e.email, e.phone,
	e.department, e.position, e.status, e.start_date, e.salary::float8, e.location, e.company_id, e.created_at`

func scanEmployee(row rowScanner) (ledger.Employee, error) {
	var e ledger.Employee
	err := row.Scan(&e.ID, &e.UserID, &e.Code, &e.FirstName, &e.LastName, &e.Email, &e.Phone,
		&e.Department, &e.Position, &e.Status, &e.StartDate, &e.Salary, &e.Location, &e.CompanyID, &e.CreatedAt)
	return e, err
}

// CreateEmployee maps a duplicate code to ledger.ErrDuplicateEmployeeCode.
func (l *Ledger) CreateEmployee(ctx context.Context, emp ledger.Employee) (ledger.Employee, error) {
	row := l.db.QueryRowContext(ctx, `
		INSERT INTO employees AS e (user_id, employee_code, first_name, last_name, email, phone,
			department, position, status, start_date, salary, location, company_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+employeeColumns,
		emp.UserID, emp.Code, emp.FirstName, emp.LastName, emp.Email, emp.Phone,
		emp.Department, emp.Position, emp.Status, emp.StartDate, emp.Salary, emp.Location, emp.CompanyID)
	out, err := scanEmployee(row)
	if isUniqueViolation(err) {
		return ledger.Employee{}, ledger.ErrDuplicateEmployeeCode
	}
	return out, wrap("insert employee", err, nil)
}

// GetEmployee returns ledger.ErrNotFound outside the company.
func (l *Ledger) GetEmployee(ctx context.Context, companyID, id int64) (ledger.Employee, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees e
		WHERE e.id = $1 AND e.company_id = $2`, id, companyID)
	emp, err := scanEmployee(row)
	return emp, wrap("get employee", err, ledger.ErrNotFound)
}

// ListEmployees orders by employee code.
func (l *Ledger) ListEmployees(ctx context.Context, companyID int64) ([]ledger.Employee, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees e
		WHERE e.company_id = $1
		ORDER BY e.employee_code ASC`, companyID)
	if err != nil {
		return nil, wrap("list employees", err, nil)
	}
	defer rows.Close()

	var out []ledger.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, wrap("scan employee", err, nil)
		}
		out = append(out, emp)
	}
	return out, wrap("list employees", rows.Err(), nil)
}

// SetEmployeeStatus updates status and returns the new row.
func (l *Ledger) SetEmployeeStatus(ctx context.Context, companyID, id int64, status ledger.EmployeeStatus) (ledger.Employee, error) {
	row := l.db.QueryRowContext(ctx, `
		UPDATE employees AS e SET status = $3
		WHERE e.id = $1 AND e.company_id = $2
		RETURNING `+employeeColumns, id, companyID, status)
	emp, err := scanEmployee(row)
	return emp, wrap("set employee status", err, ledger.ErrNotFound)
}
