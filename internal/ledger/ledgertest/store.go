// Package ledgertest provides an in-memory ledger store with the same conditional-write
// behaviour as the Postgres adapter, for service and handler tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"hrledger/internal/ledger"
)

// Store is safe for concurrent use. Set Err to make every call fail with it.
type Store struct {
	mu sync.Mutex

	Err error

	seq        int64
	clock      time.Time
	employees  map[int64]ledger.Employee
	attendance map[int64]ledger.AttendanceRecord
	leave      map[int64]ledger.LeaveRequest
	payroll    map[int64]ledger.PayrollRecord
}

// New returns an empty store whose clock starts at 2024-01-01 UTC.
func New() *Store {
	return &Store{
		clock:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		employees:  make(map[int64]ledger.Employee),
		attendance: make(map[int64]ledger.AttendanceRecord),
		leave:      make(map[int64]ledger.LeaveRequest),
		payroll:    make(map[int64]ledger.PayrollRecord),
	}
}

// next returns a fresh id and a strictly increasing creation time. Caller holds mu.
func (s *Store) next() (int64, time.Time) {
	s.seq++
	s.clock = s.clock.Add(time.Second)
	return s.seq, s.clock
}

func (s *Store) fail() error {
	if s.Err != nil {
		return ledger.RepositoryFailure("ledgertest", s.Err)
	}
	return nil
}

func (s *Store) inCompany(employeeID, companyID int64) bool {
	e, ok := s.employees[employeeID]
	return ok && e.CompanyID == companyID
}

// AddEmployee seeds an active employee and returns it.
func (s *Store) AddEmployee(companyID int64, code string) ledger.Employee {
	emp, _ := s.CreateEmployee(context.Background(), ledger.Employee{
		Code:      code,
		FirstName: code,
		LastName:  "Test",
		Email:     code + "@example.com",
		Status:    ledger.EmployeeActive,
		StartDate: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		CompanyID: companyID,
	})
	return emp
}

// CreateEmployee rejects a code already used in the company.
func (s *Store) CreateEmployee(_ context.Context, emp ledger.Employee) (ledger.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.Employee{}, err
	}
	for _, e := range s.employees {
		if e.CompanyID == emp.CompanyID && e.Code == emp.Code {
			return ledger.Employee{}, ledger.ErrDuplicateEmployeeCode
		}
	}
	emp.ID, emp.CreatedAt = s.next()
	s.employees[emp.ID] = emp
	return emp, nil
}

// GetEmployee returns ledger.ErrNotFound outside the company.
func (s *Store) GetEmployee(_ context.Context, companyID, id int64) (ledger.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.Employee{}, err
	}
	if !s.inCompany(id, companyID) {
		return ledger.Employee{}, ledger.ErrNotFound
	}
	return s.employees[id], nil
}

// ListEmployees orders by employee code.
func (s *Store) ListEmployees(_ context.Context, companyID int64) ([]ledger.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []ledger.Employee
	for _, e := range s.employees {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// SetEmployeeStatus updates status in place.
func (s *Store) SetEmployeeStatus(_ context.Context, companyID, id int64, status ledger.EmployeeStatus) (ledger.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.Employee{}, err
	}
	if !s.inCompany(id, companyID) {
		return ledger.Employee{}, ledger.ErrNotFound
	}
	e := s.employees[id]
	e.Status = status
	s.employees[id] = e
	return e, nil
}

// hasOpenSession reports whether another record (not skipID) is an open session for the day.
func (s *Store) hasOpenSession(employeeID int64, date time.Time, skipID int64) bool {
	for _, r := range s.attendance {
		if r.ID != skipID && r.EmployeeID == employeeID && r.Date.Equal(date) && r.IsOpen() {
			return true
		}
	}
	return false
}

// FindOpenSession returns the open session on date, or nil.
func (s *Store) FindOpenSession(_ context.Context, employeeID int64, date time.Time) (*ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	for _, r := range s.attendance {
		if r.EmployeeID == employeeID && r.Date.Equal(date) && r.IsOpen() {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

// FindUnstartedAttendance returns the newest record on date without a check-in, or nil.
func (s *Store) FindUnstartedAttendance(_ context.Context, employeeID int64, date time.Time) (*ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var found *ledger.AttendanceRecord
	for _, r := range s.attendance {
		if r.EmployeeID == employeeID && r.Date.Equal(date) && r.CheckIn == nil {
			if found == nil || r.CreatedAt.After(found.CreatedAt) {
				rec := r
				found = &rec
			}
		}
	}
	return found, nil
}

// InsertAttendance refuses a second open session for the same day.
func (s *Store) InsertAttendance(_ context.Context, rec ledger.AttendanceRecord) (ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.AttendanceRecord{}, err
	}
	if rec.IsOpen() && s.hasOpenSession(rec.EmployeeID, rec.Date, 0) {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}
	rec.ID, rec.CreatedAt = s.next()
	s.attendance[rec.ID] = rec
	return rec, nil
}

// StartSession stamps check-in on a record that has none yet.
func (s *Store) StartSession(_ context.Context, id int64, checkIn time.Time, status ledger.AttendanceStatus) (ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.AttendanceRecord{}, err
	}
	rec, ok := s.attendance[id]
	if !ok || rec.CheckIn != nil {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}
	if rec.CheckOut == nil && s.hasOpenSession(rec.EmployeeID, rec.Date, id) {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}
	rec.CheckIn = &checkIn
	rec.Status = status
	s.attendance[id] = rec
	return rec, nil
}

// CloseSession stamps check-out, or returns ledger.ErrAlreadyCheckedOut.
func (s *Store) CloseSession(_ context.Context, id int64, checkOut time.Time, totalHours float64, flagged bool) (ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.AttendanceRecord{}, err
	}
	rec, ok := s.attendance[id]
	if !ok || rec.CheckOut != nil {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedOut
	}
	rec.CheckOut = &checkOut
	rec.TotalHours = totalHours
	rec.Flagged = flagged
	s.attendance[id] = rec
	return rec, nil
}

// GetAttendance returns ledger.ErrNotFound outside the company.
func (s *Store) GetAttendance(_ context.Context, companyID, id int64) (ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.AttendanceRecord{}, err
	}
	rec, ok := s.attendance[id]
	if !ok || !s.inCompany(rec.EmployeeID, companyID) {
		return ledger.AttendanceRecord{}, ledger.ErrNotFound
	}
	return rec, nil
}

// UpdateAttendance replaces the mutable fields of a record.
func (s *Store) UpdateAttendance(_ context.Context, companyID int64, rec ledger.AttendanceRecord) (ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.AttendanceRecord{}, err
	}
	cur, ok := s.attendance[rec.ID]
	if !ok || !s.inCompany(cur.EmployeeID, companyID) {
		return ledger.AttendanceRecord{}, ledger.ErrNotFound
	}
	if rec.IsOpen() && s.hasOpenSession(rec.EmployeeID, rec.Date, rec.ID) {
		return ledger.AttendanceRecord{}, ledger.ErrAlreadyCheckedIn
	}
	rec.CreatedAt = cur.CreatedAt
	s.attendance[rec.ID] = rec
	return rec, nil
}

func sortAttendance(recs []ledger.AttendanceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Date.Equal(recs[j].Date) {
			return recs[i].Date.After(recs[j].Date)
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

// ListAttendanceByEmployee filters by the inclusive range and orders newest date first.
func (s *Store) ListAttendanceByEmployee(_ context.Context, companyID, employeeID int64, r ledger.DateRange) ([]ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []ledger.AttendanceRecord
	for _, rec := range s.attendance {
		if rec.EmployeeID == employeeID && s.inCompany(employeeID, companyID) && r.Contains(rec.Date) {
			out = append(out, rec)
		}
	}
	sortAttendance(out)
	return out, nil
}

// ListAttendanceByCompany optionally filters by date.
func (s *Store) ListAttendanceByCompany(_ context.Context, companyID int64, date *time.Time) ([]ledger.AttendanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []ledger.AttendanceRecord
	for _, rec := range s.attendance {
		if !s.inCompany(rec.EmployeeID, companyID) {
			continue
		}
		if date != nil && !rec.Date.Equal(*date) {
			continue
		}
		out = append(out, rec)
	}
	sortAttendance(out)
	return out, nil
}

// InsertLeave stores req with a fresh id.
func (s *Store) InsertLeave(_ context.Context, req ledger.LeaveRequest) (ledger.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.LeaveRequest{}, err
	}
	req.ID, req.CreatedAt = s.next()
	s.leave[req.ID] = req
	return req, nil
}

// GetLeave returns ledger.ErrNotFound outside the company.
func (s *Store) GetLeave(_ context.Context, companyID, id int64) (ledger.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.LeaveRequest{}, err
	}
	req, ok := s.leave[id]
	if !ok || !s.inCompany(req.EmployeeID, companyID) {
		return ledger.LeaveRequest{}, ledger.ErrNotFound
	}
	return req, nil
}

// UpdateLeaveStatusIfPending applies review only while the request is pending.
func (s *Store) UpdateLeaveStatusIfPending(_ context.Context, companyID, id int64, review ledger.LeaveReview) (ledger.LeaveRequest, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.LeaveRequest{}, false, err
	}
	req, ok := s.leave[id]
	if !ok || !s.inCompany(req.EmployeeID, companyID) || req.Status != ledger.LeavePending {
		return ledger.LeaveRequest{}, false, nil
	}
	reviewer := review.ReviewerID
	at := review.At
	req.Status = review.Status
	req.ApprovedBy = &reviewer
	req.ApprovedAt = &at
	req.AdminComments = review.Comments
	s.leave[id] = req
	return req, true, nil
}

func sortLeave(reqs []ledger.LeaveRequest) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
}

// ListLeaveByEmployee orders newest first.
func (s *Store) ListLeaveByEmployee(_ context.Context, companyID, employeeID int64) ([]ledger.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []ledger.LeaveRequest
	for _, req := range s.leave {
		if req.EmployeeID == employeeID && s.inCompany(employeeID, companyID) {
			out = append(out, req)
		}
	}
	sortLeave(out)
	return out, nil
}

// ListLeaveByCompany orders newest first.
func (s *Store) ListLeaveByCompany(_ context.Context, companyID int64) ([]ledger.LeaveRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []ledger.LeaveRequest
	for _, req := range s.leave {
		if s.inCompany(req.EmployeeID, companyID) {
			out = append(out, req)
		}
	}
	sortLeave(out)
	return out, nil
}

// InsertPayroll stores rec with a fresh id.
func (s *Store) InsertPayroll(_ context.Context, rec ledger.PayrollRecord) (ledger.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.PayrollRecord{}, err
	}
	rec.ID, rec.CreatedAt = s.next()
	s.payroll[rec.ID] = rec
	return rec, nil
}

// GetPayroll returns ledger.ErrNotFound outside the company.
func (s *Store) GetPayroll(_ context.Context, companyID, id int64) (ledger.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.PayrollRecord{}, err
	}
	rec, ok := s.payroll[id]
	if !ok || !s.inCompany(rec.EmployeeID, companyID) {
		return ledger.PayrollRecord{}, ledger.ErrNotFound
	}
	return rec, nil
}

// FindPayrollByIdempotencyKey returns the oldest record created with key in the company, or nil.
func (s *Store) FindPayrollByIdempotencyKey(_ context.Context, companyID int64, key string) (*ledger.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var found *ledger.PayrollRecord
	for _, rec := range s.payroll {
		if rec.IdempotencyKey == nil || *rec.IdempotencyKey != key || !s.inCompany(rec.EmployeeID, companyID) {
			continue
		}
		if found == nil || rec.ID < found.ID {
			r := rec
			found = &r
		}
	}
	return found, nil
}

// guardedPayroll applies mutate when the record is visible and in status want.
func (s *Store) guardedPayroll(companyID, id int64, want ledger.PayrollStatus, mutate func(*ledger.PayrollRecord)) (ledger.PayrollRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return ledger.PayrollRecord{}, false, err
	}
	rec, ok := s.payroll[id]
	if !ok || !s.inCompany(rec.EmployeeID, companyID) || rec.Status != want {
		return ledger.PayrollRecord{}, false, nil
	}
	mutate(&rec)
	s.payroll[id] = rec
	return rec, true, nil
}

// UpdatePayrollAmountsIfPending writes amt only while the record is pending.
func (s *Store) UpdatePayrollAmountsIfPending(_ context.Context, companyID, id int64, amt ledger.PayrollAmounts) (ledger.PayrollRecord, bool, error) {
	return s.guardedPayroll(companyID, id, ledger.PayrollPending, func(r *ledger.PayrollRecord) {
		r.BaseSalary = amt.BaseSalary
		r.Bonus = amt.Bonus
		r.Deductions = amt.Deductions
		r.NetPay = amt.NetPay
	})
}

// ProcessPayrollIfPending moves a pending record to processed.
func (s *Store) ProcessPayrollIfPending(_ context.Context, companyID, id int64, at time.Time) (ledger.PayrollRecord, bool, error) {
	return s.guardedPayroll(companyID, id, ledger.PayrollPending, func(r *ledger.PayrollRecord) {
		r.Status = ledger.PayrollProcessed
		r.ProcessedAt = &at
	})
}

// MarkPayrollPaidIfProcessed moves a processed record to paid.
func (s *Store) MarkPayrollPaidIfProcessed(_ context.Context, companyID, id int64, at time.Time) (ledger.PayrollRecord, bool, error) {
	return s.guardedPayroll(companyID, id, ledger.PayrollProcessed, func(r *ledger.PayrollRecord) {
		r.Status = ledger.PayrollPaid
		r.PaidAt = &at
	})
}

func sortPayroll(recs []ledger.PayrollRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].PeriodStart.Equal(recs[j].PeriodStart) {
			return recs[i].PeriodStart.After(recs[j].PeriodStart)
		}
		return recs[i].ID > recs[j].ID
	})
}

// ListPayrollByEmployee orders by period start, newest first.
func (s *Store) ListPayrollByEmployee(_ context.Context, companyID, employeeID int64) ([]ledger.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []ledger.PayrollRecord
	for _, rec := range s.payroll {
		if rec.EmployeeID == employeeID && s.inCompany(employeeID, companyID) {
			out = append(out, rec)
		}
	}
	sortPayroll(out)
	return out, nil
}

// ListPayrollByCompany orders by period start, newest first.
func (s *Store) ListPayrollByCompany(_ context.Context, companyID int64) ([]ledger.PayrollRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []ledger.PayrollRecord
	for _, rec := range s.payroll {
		if s.inCompany(rec.EmployeeID, companyID) {
			out = append(out, rec)
		}
	}
	sortPayroll(out)
	return out, nil
}
