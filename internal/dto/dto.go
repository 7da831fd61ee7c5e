// Package dto holds the HTTP request and response shapes.
package dto

import (
	"time"

	"hrledger/internal/ledger"
)

// CheckRequest is the optional body of check-in/check-out. Employees always act on
// themselves; reviewers may name another employee.
type CheckRequest struct {
	EmployeeID *int64 `json:"employee_id" validate:"omitempty,min=1"`
}

// ManualAttendanceRequest creates (no id) or edits an attendance record.
type ManualAttendanceRequest struct {
	ID         int64      `json:"id" validate:"omitempty,min=1"`
	EmployeeID int64      `json:"employee_id" validate:"required,min=1"`
	Date       string     `json:"date" validate:"required,datetime=2006-01-02"`
	CheckIn    *time.Time `json:"check_in"`
	CheckOut   *time.Time `json:"check_out"`
	Status     string     `json:"status" validate:"required,oneof=present absent late half_day"`
	Notes      *string    `json:"notes" validate:"omitempty,max=1000"`
}

// AttendanceQuery filters attendance listings.
type AttendanceQuery struct {
	Date string `form:"date" validate:"omitempty,datetime=2006-01-02"`
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

// SubmitLeaveRequest is the body of POST /leave.
type SubmitLeaveRequest struct {
	EmployeeID *int64 `json:"employee_id" validate:"omitempty,min=1"`
	Type       string `json:"type" validate:"required,oneof=vacation sick personal emergency maternity paternity"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason     string `json:"reason" validate:"max=2000"`
}

// AdjudicateRequest approves or rejects a pending leave request.
type AdjudicateRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=approve reject"`
	Comments *string `json:"comments" validate:"omitempty,max=2000"`
}

// CreatePayrollRequest is the body of POST /payroll.
type CreatePayrollRequest struct {
	EmployeeID     int64    `json:"employee_id" validate:"required,min=1"`
	PayPeriodStart string   `json:"pay_period_start" validate:"required,datetime=2006-01-02"`
	PayPeriodEnd   string   `json:"pay_period_end" validate:"required,datetime=2006-01-02"`
	BaseSalary     *float64 `json:"base_salary" validate:"required"`
	Bonus          float64  `json:"bonus"`
	Deductions     float64  `json:"deductions"`
	Status         string   `json:"status" validate:"omitempty,oneof=pending processed"`
}

// UpdatePayrollRequest edits the amounts of a pending record. Omitted fields keep their value.
type UpdatePayrollRequest struct {
	BaseSalary *float64 `json:"base_salary" validate:"required"`
	Bonus      float64  `json:"bonus"`
	Deductions float64  `json:"deductions"`
}

// BatchProcessRequest lists the payroll ids to enqueue for processing.
type BatchProcessRequest struct {
	PayrollIDs []int64 `json:"payroll_ids" validate:"required,min=1,max=500,dive,min=1"`
}

// CreateEmployeeRequest is the body of POST /employees.
type CreateEmployeeRequest struct {
	UserID       *string  `json:"user_id" validate:"omitempty,max=200"`
	EmployeeCode string   `json:"employee_code" validate:"required,max=50"`
	FirstName    string   `json:"first_name" validate:"required,max=100"`
	LastName     string   `json:"last_name" validate:"required,max=100"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        *string  `json:"phone" validate:"omitempty,max=50"`
	Department   string   `json:"department" validate:"max=100"`
	Position     string   `json:"position" validate:"max=100"`
	StartDate    string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	Salary       *float64 `json:"salary" validate:"omitempty,gte=0"`
	Location     *string  `json:"location" validate:"omitempty,max=200"`
	Status       string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

// EmployeeStatusRequest activates or deactivates an employee.
type EmployeeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// EmployeeResponse is the public view of an employee.
type EmployeeResponse struct {
	ID           int64     `json:"id"`
	UserID       *string   `json:"user_id,omitempty"`
	EmployeeCode string    `json:"employee_code"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	Department   string    `json:"department"`
	Position     string    `json:"position"`
	Status       string    `json:"status"`
	StartDate    string    `json:"start_date"`
	Salary       *float64  `json:"salary,omitempty"`
	Location     *string   `json:"location,omitempty"`
	CompanyID    int64     `json:"company_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttendanceResponse is the public view of an attendance record.
type AttendanceResponse struct {
	ID         int64      `json:"id"`
	EmployeeID int64      `json:"employee_id"`
	Date       string     `json:"date"`
	CheckIn    *time.Time `json:"check_in"`
	CheckOut   *time.Time `json:"check_out"`
	TotalHours float64    `json:"total_hours"`
	Status     string     `json:"status"`
	Notes      *string    `json:"notes,omitempty"`
	Flagged    bool       `json:"flagged"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CheckOutResponse wraps the closed session and its hours.
type CheckOutResponse struct {
	Attendance AttendanceResponse `json:"attendance"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// AttendanceStatusResponse reports whether the caller has an open session today.
type AttendanceStatusResponse struct {
	EmployeeID int64               `json:"employee_id"`
	CheckedIn  bool                `json:"checked_in"`
	Session    *AttendanceResponse `json:"session,omitempty"`
}

// LeaveResponse is the public view of a leave request.
type LeaveResponse struct {
	ID            int64      `json:"id"`
	EmployeeID    int64      `json:"employee_id"`
	Type          string     `json:"type"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	Days          int        `json:"days"`
	Status        string     `json:"status"`
	Reason        string     `json:"reason"`
	ApprovedBy    *int64     `json:"approved_by"`
	ApprovedAt    *time.Time `json:"approved_at"`
	AdminComments *string    `json:"admin_comments"`
	CreatedAt     time.Time  `json:"created_at"`
}

// PayrollResponse is the public view of a payroll record.
type PayrollResponse struct {
	ID             int64      `json:"id"`
	EmployeeID     int64      `json:"employee_id"`
	PayPeriodStart string     `json:"pay_period_start"`
	PayPeriodEnd   string     `json:"pay_period_end"`
	BaseSalary     float64    `json:"base_salary"`
	Bonus          float64    `json:"bonus"`
	Deductions     float64    `json:"deductions"`
	NetPay         float64    `json:"net_pay"`
	Status         string     `json:"status"`
	ProcessedAt    *time.Time `json:"processed_at"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// BatchProcessResponse carries the ids of the enqueued messages.
type BatchProcessResponse struct {
	Queued     int      `json:"queued"`
	MessageIDs []string `json:"message_ids,omitempty"`
}

// FromEmployee maps a ledger employee to its response.
func FromEmployee(e ledger.Employee) EmployeeResponse {
	return EmployeeResponse{
		ID:           e.ID,
		UserID:       e.UserID,
		EmployeeCode: e.Code,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Email:        e.Email,
		Phone:        e.Phone,
		Department:   e.Department,
		Position:     e.Position,
		Status:       string(e.Status),
		StartDate:    e.StartDate.Format(ledger.DateLayout),
		Salary:       e.Salary,
		Location:     e.Location,
		CompanyID:    e.CompanyID,
		CreatedAt:    e.CreatedAt,
	}
}

// FromAttendance maps an attendance record to its response.
func FromAttendance(r ledger.AttendanceRecord) AttendanceResponse {
	return AttendanceResponse{
		ID:         r.ID,
		EmployeeID: r.EmployeeID,
		Date:       r.Date.Format(ledger.DateLayout),
		CheckIn:    r.CheckIn,
		CheckOut:   r.CheckOut,
		TotalHours: r.TotalHours,
		Status:     string(r.Status),
		Notes:      r.Notes,
		Flagged:    r.Flagged,
		CreatedAt:  r.CreatedAt,
	}
}

// FromLeave maps a leave request to its response.
func FromLeave(r ledger.LeaveRequest) LeaveResponse {
	return LeaveResponse{
		ID:            r.ID,
		EmployeeID:    r.EmployeeID,
		Type:          string(r.Type),
		StartDate:     r.StartDate.Format(ledger.DateLayout),
		EndDate:       r.EndDate.Format(ledger.DateLayout),
		Days:          r.Days,
		Status:        string(r.Status),
		Reason:        r.Reason,
		ApprovedBy:    r.ApprovedBy,
		ApprovedAt:    r.ApprovedAt,
		AdminComments: r.AdminComments,
		CreatedAt:     r.CreatedAt,
	}
}

// FromPayroll maps a payroll record to its response.
func FromPayroll(r ledger.PayrollRecord) PayrollResponse {
	return PayrollResponse{
		ID:             r.ID,
		EmployeeID:     r.EmployeeID,
		PayPeriodStart: r.PeriodStart.Format(ledger.DateLayout),
		PayPeriodEnd:   r.PeriodEnd.Format(ledger.DateLayout),
		BaseSalary:     r.BaseSalary,
		Bonus:          r.Bonus,
		Deductions:     r.Deductions,
		NetPay:         r.NetPay,
		Status:         string(r.Status),
		ProcessedAt:    r.ProcessedAt,
		PaidAt:         r.PaidAt,
		CreatedAt:      r.CreatedAt,
	}
}

// List maps a slice with fn, never returning nil so empty lists encode as [].
func List[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
