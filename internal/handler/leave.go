package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hrledger/internal/dto"
	"hrledger/internal/leave"
	"hrledger/internal/ledger"
)

// SubmitLeave handles POST /leave for the caller.
func (h *Handler) SubmitLeave(c *gin.Context) {
	var req dto.SubmitLeaveRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}
	s := scope(c)
	employeeID, err := subject(s, req.EmployeeID)
	if err != nil {
		h.fail(c, err)
		return
	}
	start, _ := ledger.ParseDate(req.StartDate)
	end, _ := ledger.ParseDate(req.EndDate)

	created, err := h.leave.Submit(c.Request.Context(), s, leave.Submission{
		EmployeeID: employeeID,
		Type:       ledger.LeaveType(req.Type),
		StartDate:  start,
		EndDate:    end,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromLeave(created))
}

// AdjudicateLeave approves or rejects a pending request.
func (h *Handler) AdjudicateLeave(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req dto.AdjudicateRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}
	s := scope(c)

	updated, err := h.leave.Adjudicate(c.Request.Context(), s, id, s.EmployeeID, ledger.Decision(req.Decision), req.Comments)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromLeave(updated))
}

// GetLeave returns one request.
func (h *Handler) GetLeave(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	s := scope(c)
	req, err := h.leave.Get(c.Request.Context(), s, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	// someone else's request looks the same as a missing one
	if !canView(s, req.EmployeeID) {
		h.respondError(c, ledger.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.FromLeave(req))
}

// ListCompanyLeave lists the company's requests, newest first.
func (h *Handler) ListCompanyLeave(c *gin.Context) {
	reqs, err := h.leave.ListForCompany(c.Request.Context(), scope(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leave_requests": dto.List(reqs, dto.FromLeave)})
}

// ListEmployeeLeave lists one employee's requests.
func (h *Handler) ListEmployeeLeave(c *gin.Context) {
	employeeID, ok := h.viewableEmployee(c)
	if !ok {
		return
	}
	reqs, err := h.leave.ListForEmployee(c.Request.Context(), scope(c), employeeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leave_requests": dto.List(reqs, dto.FromLeave)})
}
