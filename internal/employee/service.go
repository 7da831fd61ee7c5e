// Package employee maintains the per-company employee directory. Employees are
// deactivated, never deleted.
package employee

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hrledger/internal/ledger"
	"hrledger/internal/logging"
	"hrledger/internal/metrics"
)

// emailRule checks addresses with the same rule as the email tag on dto.CreateEmployeeRequest.
var emailRule = validator.New()

// Repository is the persistence port of the employee directory.
type Repository interface {
	CreateEmployee(ctx context.Context, emp ledger.Employee) (ledger.Employee, error)
	GetEmployee(ctx context.Context, companyID, id int64) (ledger.Employee, error)
	ListEmployees(ctx context.Context, companyID int64) ([]ledger.Employee, error)
	SetEmployeeStatus(ctx context.Context, companyID, id int64, status ledger.EmployeeStatus) (ledger.Employee, error)
}

// Service maintains employees of the caller's company.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService builds the directory service. A nil logger discards output.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Create adds an employee to the caller's company. The company id on emp is ignored.
func (s *Service) Create(ctx context.Context, scope ledger.Scope, emp ledger.Employee) (out ledger.Employee, err error) {
	defer func() { metrics.ObserveOperation("employee.create", err) }()

	emp.Code = strings.TrimSpace(emp.Code)
	emp.FirstName = strings.TrimSpace(emp.FirstName)
	emp.LastName = strings.TrimSpace(emp.LastName)
	emp.Email = strings.TrimSpace(emp.Email)

	switch {
	case emp.Code == "":
		return ledger.Employee{}, ledger.Validation("employee_code", "is required")
	case emp.FirstName == "":
		return ledger.Employee{}, ledger.Validation("first_name", "is required")
	case emp.LastName == "":
		return ledger.Employee{}, ledger.Validation("last_name", "is required")
	case emp.StartDate.IsZero():
		return ledger.Employee{}, ledger.Validation("start_date", "is required")
	}
	if err := emailRule.Var(emp.Email, "required,email"); err != nil {
		return ledger.Employee{}, ledger.Validation("email", "is not a valid address")
	}
	if emp.Salary != nil && *emp.Salary < 0 {
		return ledger.Employee{}, ledger.Validation("salary", "must not be negative")
	}
	if emp.Status == "" {
		emp.Status = ledger.EmployeeActive
	}
	if !emp.Status.Valid() {
		return ledger.Employee{}, ledger.Validation("status", "must be active or inactive")
	}

	emp.CompanyID = scope.CompanyID
	emp.StartDate = ledger.DateOf(emp.StartDate, time.UTC)
	out, err = s.repo.CreateEmployee(ctx, emp)
	if err != nil {
		return ledger.Employee{}, ledger.RepositoryFailure("create employee", err)
	}
	logging.FromContext(ctx, s.logger).Info("employee created",
		zap.Int64("employee_id", out.ID),
		zap.Int64("company_id", out.CompanyID),
	)
	return out, nil
}

// Get returns an employee of the caller's company.
func (s *Service) Get(ctx context.Context, scope ledger.Scope, id int64) (ledger.Employee, error) {
	emp, err := s.repo.GetEmployee(ctx, scope.CompanyID, id)
	return emp, ledger.RepositoryFailure("get employee", err)
}

// List returns the company's employees ordered by employee code.
func (s *Service) List(ctx context.Context, scope ledger.Scope) ([]ledger.Employee, error) {
	emps, err := s.repo.ListEmployees(ctx, scope.CompanyID)
	return emps, ledger.RepositoryFailure("list employees", err)
}

// SetStatus activates or deactivates an employee.
func (s *Service) SetStatus(ctx context.Context, scope ledger.Scope, id int64, status ledger.EmployeeStatus) (emp ledger.Employee, err error) {
	defer func() { metrics.ObserveOperation("employee.set_status", err) }()

	if !status.Valid() {
		return ledger.Employee{}, ledger.Validation("status", "must be active or inactive")
	}
	emp, err = s.repo.SetEmployeeStatus(ctx, scope.CompanyID, id, status)
	if err != nil {
		return ledger.Employee{}, ledger.RepositoryFailure("set employee status", err)
	}
	logging.FromContext(ctx, s.logger).Info("employee status changed",
		zap.Int64("employee_id", id),
		zap.String("status", string(status)),
	)
	return emp, nil
}
