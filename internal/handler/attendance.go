package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hrledger/internal/attendance"
	"hrledger/internal/dto"
	"hrledger/internal/ledger"
)

// CheckIn handles POST /attendance/check-in for the caller.
func (h *Handler) CheckIn(c *gin.Context) {
	var req dto.CheckRequest
	if err := bindJSON(c, &req, true); err != nil {
		h.respondError(c, err)
		return
	}
	s := scope(c)
	employeeID, err := subject(s, req.EmployeeID)
	if err != nil {
		h.fail(c, err)
		return
	}

	rec, err := h.attendance.CheckIn(c.Request.Context(), s, employeeID, h.now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromAttendance(rec))
}

// CheckOut handles POST /attendance/check-out for the caller.
func (h *Handler) CheckOut(c *gin.Context) {
	var req dto.CheckRequest
	if err := bindJSON(c, &req, true); err != nil {
		h.respondError(c, err)
		return
	}
	s := scope(c)
	employeeID, err := subject(s, req.EmployeeID)
	if err != nil {
		h.fail(c, err)
		return
	}

	res, err := h.attendance.CheckOut(c.Request.Context(), s, employeeID, h.now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckOutResponse{Attendance: dto.FromAttendance(res.Record), Warnings: res.Warnings})
}

// AttendanceStatus reports the caller's session for today.
func (h *Handler) AttendanceStatus(c *gin.Context) {
	s := scope(c)
	var requested *int64
	if v := c.Query("employee_id"); v != "" {
		id, err := parsePositive(v, "employee_id")
		if err != nil {
			h.respondError(c, err)
			return
		}
		requested = &id
	}
	employeeID, err := subject(s, requested)
	if err != nil {
		h.fail(c, err)
		return
	}

	st, err := h.attendance.Status(c.Request.Context(), s, employeeID, h.now())
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := dto.AttendanceStatusResponse{EmployeeID: employeeID, CheckedIn: st.CheckedIn}
	if st.Session != nil {
		session := dto.FromAttendance(*st.Session)
		resp.Session = &session
	}
	c.JSON(http.StatusOK, resp)
}

// UpsertAttendance lets an admin create or correct a record.
func (h *Handler) UpsertAttendance(c *gin.Context) {
	var req dto.ManualAttendanceRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}
	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		h.respondError(c, ledger.Validation("date", "must be a date in YYYY-MM-DD format"))
		return
	}

	rec, err := h.attendance.ManualUpsert(c.Request.Context(), scope(c), attendance.ManualEntry{
		ID:         req.ID,
		EmployeeID: req.EmployeeID,
		Date:       date,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Status:     ledger.AttendanceStatus(req.Status),
		Notes:      req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusOK
	if req.ID == 0 {
		status = http.StatusCreated
	}
	c.JSON(status, dto.FromAttendance(rec))
}

// ListCompanyAttendance lists the company's records, optionally for one date.
func (h *Handler) ListCompanyAttendance(c *gin.Context) {
	var q dto.AttendanceQuery
	if err := bindQuery(c, &q); err != nil {
		h.respondError(c, err)
		return
	}
	date, err := optionalDate(q.Date, "date")
	if err != nil {
		h.respondError(c, err)
		return
	}
	recs, err := h.attendance.ListForCompany(c.Request.Context(), scope(c), date)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": dto.List(recs, dto.FromAttendance)})
}

// ListEmployeeAttendance lists one employee's records within an optional date range.
func (h *Handler) ListEmployeeAttendance(c *gin.Context) {
	employeeID, ok := h.viewableEmployee(c)
	if !ok {
		return
	}
	var q dto.AttendanceQuery
	if err := bindQuery(c, &q); err != nil {
		h.respondError(c, err)
		return
	}
	from, err := optionalDate(q.From, "from")
	if err != nil {
		h.respondError(c, err)
		return
	}
	to, err := optionalDate(q.To, "to")
	if err != nil {
		h.respondError(c, err)
		return
	}

	recs, err := h.attendance.ListForEmployee(c.Request.Context(), scope(c), employeeID, ledger.DateRange{From: from, To: to})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": dto.List(recs, dto.FromAttendance)})
}

// viewableEmployee reads :id and checks the caller may see that employee's records.
func (h *Handler) viewableEmployee(c *gin.Context) (int64, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return 0, false
	}
	if !canView(scope(c), id) {
		h.forbidden(c, "employees may only view their own records")
		return 0, false
	}
	return id, true
}
