// Package handler exposes the ledger operations over HTTP with gin.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hrledger/internal/attendance"
	"hrledger/internal/auth"
	"hrledger/internal/dto"
	"hrledger/internal/employee"
	"hrledger/internal/leave"
	"hrledger/internal/ledger"
	"hrledger/internal/logging"
	"hrledger/internal/payroll"
)

// Handler holds the ledger services behind the HTTP routes.
type Handler struct {
	attendance *attendance.Service
	leave      *leave.Service
	payroll    *payroll.Service
	employees  *employee.Service
	logger     *zap.Logger
	now        func() time.Time
}

// New builds a Handler. A nil logger discards output.
func New(att *attendance.Service, lv *leave.Service, pay *payroll.Service, emp *employee.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		attendance: att,
		leave:      lv,
		payroll:    pay,
		employees:  emp,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time used for check-in and check-out.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindConflict:
		return http.StatusConflict
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindRepository:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError maps a ledger failure onto status and body. Store failures are logged, not echoed.
func (h *Handler) respondError(c *gin.Context, err error) {
	le, ok := ledger.AsError(err)
	if !ok {
		logging.FromContext(c.Request.Context(), h.logger).Error("unhandled error", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error", Message: "internal server error"})
		return
	}

	body := dto.ErrorResponse{Error: string(le.Kind), Code: le.Code, Field: le.Field, Message: le.Message}
	if le.Kind == ledger.KindRepository {
		logging.FromContext(c.Request.Context(), h.logger).Error("repository failure", zap.Error(err))
		body.Message = "storage temporarily unavailable"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(le.Kind), body)
}

func (h *Handler) forbidden(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{Error: "forbidden", Message: msg})
}

// scope returns the authenticated caller; Authenticate guarantees it on /v1 routes.
func scope(c *gin.Context) ledger.Scope {
	s, _ := auth.ScopeFrom(c)
	return s
}

// bindJSON decodes and validates the body. An empty body is allowed when optional is set.
func bindJSON(c *gin.Context, v any, optional bool) error {
	if err := c.ShouldBindJSON(v); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return ledger.Validation("body", "malformed JSON: %v", err)
		}
	}
	return dto.Validate(v)
}

func bindQuery(c *gin.Context, v any) error {
	if err := c.ShouldBindQuery(v); err != nil {
		return ledger.Validation("query", "%v", err)
	}
	return dto.Validate(v)
}

func pathID(c *gin.Context, name string) (int64, error) {
	return parsePositive(c.Param(name), name)
}

func parsePositive(v, field string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, ledger.Validation(field, "must be a positive integer")
	}
	return id, nil
}

func optionalDate(s, field string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := ledger.ParseDate(s)
	if err != nil {
		return nil, ledger.Validation(field, "must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}

// subject resolves which employee a self-service call acts on. Plain employees always act
// on themselves; reviewers may name someone else.
func subject(s ledger.Scope, requested *int64) (int64, error) {
	if requested != nil && *requested != s.EmployeeID {
		if !s.CanReview() {
			return 0, errForbidden
		}
		return *requested, nil
	}
	if s.EmployeeID == 0 {
		return 0, ledger.Validation("employee_id", "is required for callers without an employee record")
	}
	return s.EmployeeID, nil
}

var errForbidden = errors.New("forbidden")

// canView reports whether the caller may read records of employeeID.
func canView(s ledger.Scope, employeeID int64) bool {
	return s.CanReview() || s.EmployeeID == employeeID
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, errForbidden) {
		h.forbidden(c, "employees may only act on their own records")
		return
	}
	h.respondError(c, err)
}

// Health reports store connectivity.
func Health(checks map[string]func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, check := range checks {
			healthy := check(c)
			body[name] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}
