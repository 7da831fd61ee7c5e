// Package attendance owns the per-employee, per-day check-in/check-out state machine.
package attendance

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"hrledger/internal/ledger"
	"hrledger/internal/logging"
	"hrledger/internal/metrics"
)

// Repository is the persistence port used by the session manager.
type Repository interface {
	GetEmployee(ctx context.Context, companyID, employeeID int64) (ledger.Employee, error)
	FindOpenSession(ctx context.Context, employeeID int64, date time.Time) (*ledger.AttendanceRecord, error)
	FindUnstartedAttendance(ctx context.Context, employeeID int64, date time.Time) (*ledger.AttendanceRecord, error)
	InsertAttendance(ctx context.Context, rec ledger.AttendanceRecord) (ledger.AttendanceRecord, error)
	StartSession(ctx context.Context, id int64, checkIn time.Time, status ledger.AttendanceStatus) (ledger.AttendanceRecord, error)
	CloseSession(ctx context.Context, id int64, checkOut time.Time, totalHours float64, flagged bool) (ledger.AttendanceRecord, error)
	GetAttendance(ctx context.Context, companyID, id int64) (ledger.AttendanceRecord, error)
	UpdateAttendance(ctx context.Context, companyID int64, rec ledger.AttendanceRecord) (ledger.AttendanceRecord, error)
	ListAttendanceByEmployee(ctx context.Context, companyID, employeeID int64, r ledger.DateRange) ([]ledger.AttendanceRecord, error)
	ListAttendanceByCompany(ctx context.Context, companyID int64, date *time.Time) ([]ledger.AttendanceRecord, error)
}

// CheckOutResult is the closed session plus any data-quality warnings raised while closing it.
type CheckOutResult struct {
	Record   ledger.AttendanceRecord
	Warnings []string
}

// SessionStatus is the derived "currently checked in" answer.
type SessionStatus struct {
	CheckedIn bool
	Session   *ledger.AttendanceRecord
}

// ManualEntry is an administrative create (ID == 0) or edit of an attendance record.
type ManualEntry struct {
	ID         int64
	EmployeeID int64
	Date       time.Time
	CheckIn    *time.Time
	CheckOut   *time.Time
	Status     ledger.AttendanceStatus
	Notes      *string
}

// Service coordinates check-ins and check-outs against the repository.
type Service struct {
	repo   Repository
	loc    *time.Location
	logger *zap.Logger
}

// NewService creates a session manager. Calendar dates are taken in loc.
func NewService(repo Repository, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, loc: loc, logger: logger}
}

// Location is the time zone that decides which calendar date a timestamp belongs to.
func (s *Service) Location() *time.Location { return s.loc }

// CheckIn opens today's session for the employee.
func (s *Service) CheckIn(ctx context.Context, scope ledger.Scope, employeeID int64, at time.Time) (rec ledger.AttendanceRecord, err error) {
	defer func() { metrics.ObserveOperation("attendance.check_in", err) }()

	if err := s.requireActive(ctx, scope, employeeID); err != nil {
		return ledger.AttendanceRecord{}, err
	}

	today := ledger.DateOf(at, s.loc)
	open, err := s.repo.FindOpenSession(ctx, employeeID, today)
	if err != nil {
		return ledger.AttendanceRecord{}, ledger.RepositoryFailure("find open session", err)
	}
	if open != nil {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}

	// A record prepared for today (manual entry without times) is started in place.
	unstarted, err := s.repo.FindUnstartedAttendance(ctx, employeeID, today)
	if err != nil {
		return ledger.AttendanceRecord{}, ledger.RepositoryFailure("find unstarted attendance", err)
	}
	if unstarted != nil {
		rec, err = s.repo.StartSession(ctx, unstarted.ID, at, ledger.AttendancePresent)
	} else {
		checkIn := at
		rec, err = s.repo.InsertAttendance(ctx, ledger.AttendanceRecord{
			EmployeeID: employeeID,
			Date:       today,
			CheckIn:    &checkIn,
			Status:     ledger.AttendancePresent,
		})
	}
	if err != nil {
		return ledger.AttendanceRecord{}, ledger.RepositoryFailure("start session", err)
	}

	logging.FromContext(ctx, s.logger).Info("checked in",
		zap.Int64("employee_id", employeeID),
		zap.Int64("attendance_id", rec.ID),
		zap.Time("at", at),
	)
	return rec, nil
}

// CheckOut closes today's open session and computes worked hours.
func (s *Service) CheckOut(ctx context.Context, scope ledger.Scope, employeeID int64, at time.Time) (res CheckOutResult, err error) {
	defer func() { metrics.ObserveOperation("attendance.check_out", err) }()

	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, employeeID); err != nil {
		return CheckOutResult{}, ledger.RepositoryFailure("get employee", err)
	}

	today := ledger.DateOf(at, s.loc)
	open, err := s.repo.FindOpenSession(ctx, employeeID, today)
	if err != nil {
		return CheckOutResult{}, ledger.RepositoryFailure("find open session", err)
	}
	if open == nil {
		return CheckOutResult{}, s.noOpenSession(ctx, scope, employeeID, today)
	}

	hours, clamped := WorkedHours(*open.CheckIn, at)
	if clamped {
		res.Warnings = append(res.Warnings, "check-out precedes check-in; worked hours stored as 0 and record flagged for review")
		metrics.ClampedDurations.Inc()
		logging.FromContext(ctx, s.logger).Warn("negative attendance duration clamped",
			zap.Int64("employee_id", employeeID),
			zap.Int64("attendance_id", open.ID),
			zap.Time("check_in", *open.CheckIn),
			zap.Time("check_out", at),
		)
	}

	rec, err := s.repo.CloseSession(ctx, open.ID, at, hours, clamped)
	if err != nil {
		return CheckOutResult{}, ledger.RepositoryFailure("close session", err)
	}
	res.Record = rec

	logging.FromContext(ctx, s.logger).Info("checked out",
		zap.Int64("employee_id", employeeID),
		zap.Int64("attendance_id", rec.ID),
		zap.Float64("total_hours", rec.TotalHours),
	)
	return res, nil
}

// Status derives whether the employee currently has an open session today.
func (s *Service) Status(ctx context.Context, scope ledger.Scope, employeeID int64, at time.Time) (SessionStatus, error) {
	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, employeeID); err != nil {
		return SessionStatus{}, ledger.RepositoryFailure("get employee", err)
	}
	open, err := s.repo.FindOpenSession(ctx, employeeID, ledger.DateOf(at, s.loc))
	if err != nil {
		return SessionStatus{}, ledger.RepositoryFailure("find open session", err)
	}
	return SessionStatus{CheckedIn: open != nil, Session: open}, nil
}

// ManualUpsert creates or edits a record for any date and status, bypassing the
// open-session check. The store still refuses a second open session for the same day.
func (s *Service) ManualUpsert(ctx context.Context, scope ledger.Scope, entry ManualEntry) (rec ledger.AttendanceRecord, err error) {
	defer func() { metrics.ObserveOperation("attendance.manual_upsert", err) }()

	if !entry.Status.Valid() {
		return ledger.AttendanceRecord{}, ledger.Validation("status", "unknown attendance status %q", entry.Status)
	}
	if entry.Date.IsZero() {
		return ledger.AttendanceRecord{}, ledger.Validation("date", "is required")
	}
	if entry.CheckIn == nil && entry.CheckOut != nil {
		return ledger.AttendanceRecord{}, ledger.Validation("check_in", "is required when check_out is set")
	}

	var hours float64
	if entry.CheckIn != nil && entry.CheckOut != nil {
		var negative bool
		hours, negative = WorkedHours(*entry.CheckIn, *entry.CheckOut)
		if negative {
			return ledger.AttendanceRecord{}, ledger.Validation("check_out", "must not be before check_in")
		}
	}

	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, entry.EmployeeID); err != nil {
		return ledger.AttendanceRecord{}, ledger.RepositoryFailure("get employee", err)
	}

	rec = ledger.AttendanceRecord{
		ID:         entry.ID,
		EmployeeID: entry.EmployeeID,
		Date:       ledger.DateOf(entry.Date, time.UTC),
		CheckIn:    entry.CheckIn,
		CheckOut:   entry.CheckOut,
		TotalHours: hours,
		Status:     entry.Status,
		Notes:      trimmed(entry.Notes),
	}

	if entry.ID == 0 {
		rec, err = s.repo.InsertAttendance(ctx, rec)
		return rec, ledger.RepositoryFailure("insert attendance", err)
	}

	existing, err := s.repo.GetAttendance(ctx, scope.CompanyID, entry.ID)
	if err != nil {
		return ledger.AttendanceRecord{}, ledger.RepositoryFailure("get attendance", err)
	}
	rec.CreatedAt = existing.CreatedAt
	rec, err = s.repo.UpdateAttendance(ctx, scope.CompanyID, rec)
	return rec, ledger.RepositoryFailure("update attendance", err)
}

// ListForEmployee returns the employee's records, most recent first.
func (s *Service) ListForEmployee(ctx context.Context, scope ledger.Scope, employeeID int64, r ledger.DateRange) ([]ledger.AttendanceRecord, error) {
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return nil, ledger.Validation("to", "must not be before from")
	}
	if _, err := s.repo.GetEmployee(ctx, scope.CompanyID, employeeID); err != nil {
		return nil, ledger.RepositoryFailure("get employee", err)
	}
	recs, err := s.repo.ListAttendanceByEmployee(ctx, scope.CompanyID, employeeID, r)
	return recs, ledger.RepositoryFailure("list attendance", err)
}

// ListForCompany returns the company's records, optionally for one date, most recent first.
func (s *Service) ListForCompany(ctx context.Context, scope ledger.Scope, date *time.Time) ([]ledger.AttendanceRecord, error) {
	recs, err := s.repo.ListAttendanceByCompany(ctx, scope.CompanyID, date)
	return recs, ledger.RepositoryFailure("list attendance", err)
}

// WorkedHours returns the span between check-in and check-out in hours rounded to two
// decimals. A negative span is reported and clamped to zero.
func WorkedHours(checkIn, checkOut time.Time) (hours float64, negative bool) {
	d := checkOut.Sub(checkIn)
	if d < 0 {
		return 0, true
	}
	return math.Round(d.Hours()*100) / 100, false
}

// noOpenSession tells a finished day apart from one that never started.
func (s *Service) noOpenSession(ctx context.Context, scope ledger.Scope, employeeID int64, today time.Time) error {
	recs, err := s.repo.ListAttendanceByEmployee(ctx, scope.CompanyID, employeeID, ledger.DateRange{From: &today, To: &today})
	if err != nil {
		return ledger.RepositoryFailure("list attendance", err)
	}
	for _, r := range recs {
		if r.CheckIn != nil && r.CheckOut != nil {
			return ledger.ErrAlreadyCheckedOut
		}
	}
	return ledger.ErrNotCheckedIn
}

func (s *Service) requireActive(ctx context.Context, scope ledger.Scope, employeeID int64) error {
	emp, err := s.repo.GetEmployee(ctx, scope.CompanyID, employeeID)
	if err != nil {
		return ledger.RepositoryFailure("get employee", err)
	}
	if emp.Status != ledger.EmployeeActive {
		return ledger.Validation("employee_id", "employee is not active")
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
