package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hrledger/internal/dto"
	"hrledger/internal/ledger"
)

// CreateEmployee handles POST /employees.
func (h *Handler) CreateEmployee(c *gin.Context) {
	var req dto.CreateEmployeeRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}
	start, _ := ledger.ParseDate(req.StartDate)

	emp, err := h.employees.Create(c.Request.Context(), scope(c), ledger.Employee{
		UserID:     req.UserID,
		Code:       req.EmployeeCode,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Position:   req.Position,
		Status:     ledger.EmployeeStatus(req.Status),
		StartDate:  start,
		Salary:     req.Salary,
		Location:   req.Location,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromEmployee(emp))
}

// GetEmployee returns one employee of the caller's company.
func (h *Handler) GetEmployee(c *gin.Context) {
	id, ok := h.viewableEmployee(c)
	if !ok {
		return
	}
	emp, err := h.employees.Get(c.Request.Context(), scope(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromEmployee(emp))
}

// ListEmployees lists the caller's company.
func (h *Handler) ListEmployees(c *gin.Context) {
	emps, err := h.employees.List(c.Request.Context(), scope(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": dto.List(emps, dto.FromEmployee)})
}

// SetEmployeeStatus handles PATCH /employees/:id/status.
func (h *Handler) SetEmployeeStatus(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req dto.EmployeeStatusRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}
	emp, err := h.employees.SetStatus(c.Request.Context(), scope(c), id, ledger.EmployeeStatus(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromEmployee(emp))
}
