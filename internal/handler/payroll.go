package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hrledger/internal/dto"
	"hrledger/internal/ledger"
	"hrledger/internal/payroll"
)

// IdempotencyKeyHeader lets clients retry payroll creation safely.
const IdempotencyKeyHeader = "Idempotency-Key"

// CreatePayroll handles POST /payroll. An Idempotency-Key header replays the first result.
func (h *Handler) CreatePayroll(c *gin.Context) {
	var req dto.CreatePayrollRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}
	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if len(key) > 200 {
		h.respondError(c, ledger.Validation("Idempotency-Key", "must be at most 200 characters"))
		return
	}
	start, _ := ledger.ParseDate(req.PayPeriodStart)
	end, _ := ledger.ParseDate(req.PayPeriodEnd)

	rec, replayed, err := h.payroll.Create(c.Request.Context(), scope(c), payroll.Input{
		EmployeeID:     req.EmployeeID,
		PeriodStart:    start,
		PeriodEnd:      end,
		BaseSalary:     *req.BaseSalary,
		Bonus:          req.Bonus,
		Deductions:     req.Deductions,
		Status:         ledger.PayrollStatus(req.Status),
		IdempotencyKey: key,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		c.Header("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	c.JSON(status, dto.FromPayroll(rec))
}

// UpdatePayroll edits the amounts of a pending record.
func (h *Handler) UpdatePayroll(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req dto.UpdatePayrollRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}

	rec, err := h.payroll.UpdateAmounts(c.Request.Context(), scope(c), id, payroll.Amounts{
		BaseSalary: *req.BaseSalary,
		Bonus:      req.Bonus,
		Deductions: req.Deductions,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPayroll(rec))
}

// ProcessPayroll moves a record from pending to processed.
func (h *Handler) ProcessPayroll(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	rec, err := h.payroll.Process(c.Request.Context(), scope(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPayroll(rec))
}

// PayPayroll moves a record from processed to paid.
func (h *Handler) PayPayroll(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	rec, err := h.payroll.MarkPaid(c.Request.Context(), scope(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromPayroll(rec))
}

// ProcessPayrollBatch enqueues processing for each listed record.
func (h *Handler) ProcessPayrollBatch(c *gin.Context) {
	var req dto.BatchProcessRequest
	if err := bindJSON(c, &req, false); err != nil {
		h.respondError(c, err)
		return
	}
	ids, err := h.payroll.EnqueueProcessing(c.Request.Context(), scope(c), req.PayrollIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.BatchProcessResponse{Queued: len(req.PayrollIDs), MessageIDs: ids})
}

// GetPayroll returns one record.
func (h *Handler) GetPayroll(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	s := scope(c)
	rec, err := h.payroll.Get(c.Request.Context(), s, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !canView(s, rec.EmployeeID) {
		h.respondError(c, ledger.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, dto.FromPayroll(rec))
}

// ListCompanyPayroll lists the company's records.
func (h *Handler) ListCompanyPayroll(c *gin.Context) {
	recs, err := h.payroll.ListForCompany(c.Request.Context(), scope(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payroll": dto.List(recs, dto.FromPayroll)})
}

// ListEmployeePayroll lists one employee's records.
func (h *Handler) ListEmployeePayroll(c *gin.Context) {
	employeeID, ok := h.viewableEmployee(c)
	if !ok {
		return
	}
	recs, err := h.payroll.ListForEmployee(c.Request.Context(), scope(c), employeeID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payroll": dto.List(recs, dto.FromPayroll)})
}
