// Package ledger holds the entities, enumerations and caller scope shared by the
// attendance, leave and payroll components.
package ledger

import (
	"math"
	"time"
)

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// Role is the caller's role inside its company.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Scope identifies the authenticated caller. Every read and write is filtered by CompanyID.
type Scope struct {
	UserID     string
	Role       Role
	CompanyID  int64
	EmployeeID int64
}

// CanReview reports whether the caller may adjudicate leave and run payroll.
func (s Scope) CanReview() bool {
	return s.Role == RoleAdmin || s.Role == RoleManager
}

// EmployeeStatus toggles instead of deleting an employee.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
)

// Valid reports whether s is a known status.
func (s EmployeeStatus) Valid() bool {
	return s == EmployeeActive || s == EmployeeInactive
}

// Employee is a person employed by a company (tenant).
type Employee struct {
	ID         int64
	UserID     *string
	Code       string
	FirstName  string
	LastName   string
	Email      string
	Phone      *string
	Department string
	Position   string
	Status     EmployeeStatus
	StartDate  time.Time
	Salary     *float64
	Location   *string
	CompanyID  int64
	CreatedAt  time.Time
}

// AttendanceStatus is the day classification of an attendance record.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceHalfDay AttendanceStatus = "half_day"
)

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceHalfDay:
		return true
	}
	return false
}

// AttendanceRecord is one row per employee per calendar date (more than one may exist for a date).
type AttendanceRecord struct {
	ID         int64
	EmployeeID int64
	Date       time.Time
	CheckIn    *time.Time
	CheckOut   *time.Time
	TotalHours float64
	Status     AttendanceStatus
	Notes      *string
	// Flagged marks a record whose computed duration was negative and clamped to zero.
	Flagged   bool
	CreatedAt time.Time
}

// IsOpen reports whether the record is an open session.
func (r AttendanceRecord) IsOpen() bool {
	return r.CheckIn != nil && r.CheckOut == nil
}

// DateRange bounds a listing; nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d time.Time) bool {
	if r.From != nil && d.Before(*r.From) {
		return false
	}
	if r.To != nil && d.After(*r.To) {
		return false
	}
	return true
}

// LeaveType classifies a leave request.
type LeaveType string

const (
	LeaveVacation  LeaveType = "vacation"
	LeaveSick      LeaveType = "sick"
	LeavePersonal  LeaveType = "personal"
	LeaveEmergency LeaveType = "emergency"
	LeaveMaternity LeaveType = "maternity"
	LeavePaternity LeaveType = "paternity"
)

// Valid reports whether t is a known leave type.
func (t LeaveType) Valid() bool {
	switch t {
	case LeaveVacation, LeaveSick, LeavePersonal, LeaveEmergency, LeaveMaternity, LeavePaternity:
		return true
	}
	return false
}

// LeaveStatus is pending until a reviewer decides.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// Decision is the outcome chosen by a reviewer.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status maps a decision to the resulting leave status.
func (d Decision) Status() (LeaveStatus, bool) {
	switch d {
	case DecisionApprove:
		return LeaveApproved, true
	case DecisionReject:
		return LeaveRejected, true
	}
	return "", false
}

// LeaveRequest is a submitted request; it transitions out of pending exactly once.
type LeaveRequest struct {
	ID            int64
	EmployeeID    int64
	Type          LeaveType
	StartDate     time.Time
	EndDate       time.Time
	Days          int
	Status        LeaveStatus
	Reason        string
	ApprovedBy    *int64
	ApprovedAt    *time.Time
	AdminComments *string
	CreatedAt     time.Time
}

// LeaveReview carries the fields written together with a status transition.
type LeaveReview struct {
	Status     LeaveStatus
	ReviewerID int64
	Comments   *string
	At         time.Time
}

// PayrollStatus only moves forward: pending, processed, paid.
type PayrollStatus string

const (
	PayrollPending   PayrollStatus = "pending"
	PayrollProcessed PayrollStatus = "processed"
	PayrollPaid      PayrollStatus = "paid"
)

// Valid reports whether s is a known status.
func (s PayrollStatus) Valid() bool {
	return s == PayrollPending || s == PayrollProcessed || s == PayrollPaid
}

// PayrollRecord is one row per employee per pay period.
type PayrollRecord struct {
	ID             int64
	EmployeeID     int64
	PeriodStart    time.Time
	PeriodEnd      time.Time
	BaseSalary     float64
	Bonus          float64
	Deductions     float64
	NetPay         float64
	Status         PayrollStatus
	ProcessedAt    *time.Time
	PaidAt         *time.Time
	IdempotencyKey *string
	CreatedAt      time.Time
}

// PayrollAmounts are the net pay inputs plus the derived net pay, always written together.
type PayrollAmounts struct {
	BaseSalary float64
	Bonus      float64
	Deductions float64
	NetPay     float64
}

// NetPay returns base + bonus - deductions rounded to cents. A negative result is kept.
func NetPay(base, bonus, deductions float64) float64 {
	return RoundCents(base + bonus - deductions)
}

// RoundCents rounds v to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// DateOf returns the calendar date of t in loc, as midnight UTC.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
