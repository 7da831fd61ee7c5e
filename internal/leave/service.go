// Package leave manages leave request submission and single-shot adjudication.
package leave

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"hrledger/internal/ledger"
	"hrledger/internal/logging"
	"hrledger/internal/metrics"
)

// Repository is the persistence port used by the leave workflow.
type Repository interface {
	GetEmployee(ctx context.Context, companyID, employeeID int64) (ledger.Employee, error)
	InsertLeave(ctx context.Context, req ledger.LeaveRequest) (ledger.LeaveRequest, error)
	GetLeave(ctx context.Context, companyID, id int64) (ledger.LeaveRequest, error)
	UpdateLeaveStatusIfPending(ctx context.Context, companyID, id int64, review ledger.LeaveReview) (ledger.LeaveRequest, bool, error)
	ListLeaveByEmployee(ctx context.Context, companyID, employeeID int64) ([]ledger.LeaveRequest, error)
	ListLeaveByCompany(ctx context.Context, companyID int64) ([]ledger.LeaveRequest, error)
}

// Submission is a new leave request.
type Submission struct {
	EmployeeID int64
	Type       ledger.LeaveType
	StartDate  time.Time
	EndDate    time.Time
	Reason     string
}

// Service runs the pending -> approved|rejected workflow.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewService builds a Service. A nil logger discards output.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, now: time.Now, logger: logger}
}

// WithClock overrides the approval timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Days is the inclusive calendar-day span between two dates.
func Days(start, end time.Time) int {
	s := ledger.DateOf(start, time.UTC)
	e := ledger.DateOf(end, time.UTC)
	return int(e.Sub(s).Hours()/24) + 1
}

// Submit records a pending request. No leave balance is consulted.
func (s *Service) Submit(ctx context.Context, scope ledger.Scope, in Submission) (req ledger.LeaveRequest, err error) {
	defer func() { metrics.ObserveOperation("leave.submit", err) }()

	if !in.Type.Valid() {
		return ledger.LeaveRequest{}, ledger.Validation("type", "unknown leave type %q", in.Type)
	}
	if in.StartDate.IsZero() {
		return ledger.LeaveRequest{}, ledger.Validation("start_date", "is required")
	}
	if in.EndDate.IsZero() {
		return ledger.LeaveRequest{}, ledger.Validation("end_date", "is required")
	}
	start, end := ledger.DateOf(in.StartDate, time.UTC), ledger.DateOf(in.EndDate, time.UTC)
	if end.Before(start) {
		return ledger.LeaveRequest{}, ledger.Validation("end_date", "must not be before start_date")
	}

	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, in.EmployeeID); err != nil {
		return ledger.LeaveRequest{}, ledger.RepositoryFailure("get employee", err)
	}

	req, err = s.repo.InsertLeave(ctx, ledger.LeaveRequest{
		EmployeeID: in.EmployeeID,
		Type:       in.Type,
		StartDate:  start,
		EndDate:    end,
		Days:       Days(start, end),
		Status:     ledger.LeavePending,
		Reason:     strings.TrimSpace(in.Reason),
	})
	if err != nil {
		return ledger.LeaveRequest{}, ledger.RepositoryFailure("insert leave request", err)
	}

	logging.FromContext(ctx, s.logger).Info("leave request submitted",
		zap.Int64("leave_id", req.ID),
		zap.Int64("employee_id", req.EmployeeID),
		zap.String("type", string(req.Type)),
		zap.Int("days", req.Days),
	)
	return req, nil
}

// Adjudicate approves or rejects a pending request. Status, reviewer, comments and
// approval time are written together by one conditional update.
func (s *Service) Adjudicate(ctx context.Context, scope ledger.Scope, id, reviewerID int64, decision ledger.Decision, comments *string) (req ledger.LeaveRequest, err error) {
	defer func() { metrics.ObserveOperation("leave.adjudicate", err) }()

	status, ok := decision.Status()
	if !ok {
		return ledger.LeaveRequest{}, ledger.Validation("decision", "must be approve or reject")
	}
	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, reviewerID); err != nil {
		if ledger.KindOf(err) == ledger.KindNotFound {
			return ledger.LeaveRequest{}, ledger.Validation("reviewer_id", "reviewer is not an employee of this company")
		}
		return ledger.LeaveRequest{}, ledger.RepositoryFailure("get reviewer", err)
	}

	req, updated, err := s.repo.UpdateLeaveStatusIfPending(ctx, scope.CompanyID, id, ledger.LeaveReview{
		Status:     status,
		ReviewerID: reviewerID,
		Comments:   nonEmpty(comments),
		At:         s.now().UTC(),
	})
	if err != nil {
		return ledger.LeaveRequest{}, ledger.RepositoryFailure("adjudicate leave request", err)
	}
	if !updated {
		// Nothing matched: either the request is invisible to this company or it already left pending.
		if _, err := s.repo.GetLeave(ctx, scope.CompanyID, id); err != nil {
			return ledger.LeaveRequest{}, ledger.RepositoryFailure("get leave request", err)
		}
		return ledger.LeaveRequest{}, ledger.ErrNotPending
	}

	logging.FromContext(ctx, s.logger).Info("leave request adjudicated",
		zap.Int64("leave_id", req.ID),
		zap.String("status", string(req.Status)),
		zap.Int64("reviewer_id", reviewerID),
	)
	return req, nil
}

// Get returns one request, including reviewer comments whatever the outcome.
func (s *Service) Get(ctx context.Context, scope ledger.Scope, id int64) (ledger.LeaveRequest, error) {
	req, err := s.repo.GetLeave(ctx, scope.CompanyID, id)
	return req, ledger.RepositoryFailure("get leave request", err)
}

// ListForEmployee lists one employee's requests, newest first.
func (s *Service) ListForEmployee(ctx context.Context, scope ledger.Scope, employeeID int64) ([]ledger.LeaveRequest, error) {
	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, employeeID); err != nil {
		return nil, ledger.RepositoryFailure("get employee", err)
	}
	reqs, err := s.repo.ListLeaveByEmployee(ctx, scope.CompanyID, employeeID)
	return reqs, ledger.RepositoryFailure("list leave requests", err)
}

// ListForCompany lists every request in the caller's company.
func (s *Service) ListForCompany(ctx context.Context, scope ledger.Scope) ([]ledger.LeaveRequest, error) {
	reqs, err := s.repo.ListLeaveByCompany(ctx, scope.CompanyID)
	return reqs, ledger.RepositoryFailure("list leave requests", err)
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
