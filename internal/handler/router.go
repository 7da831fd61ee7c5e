package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hrledger/internal/auth"
	"hrledger/internal/dto"
	"hrledger/internal/httpmiddleware"
	"hrledger/internal/ledger"
	"hrledger/internal/logging"
	"hrledger/internal/metrics"
)

// RouterConfig carries what the router needs besides the handler.
type RouterConfig struct {
	Logger          *zap.Logger
	SigningKey      string
	Issuer          string
	RateLimitPerMin int
	Health          map[string]func(*gin.Context) bool
}

// NewRouter wires middleware and every /v1 route.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(httpmiddleware.RequestID())
	r.Use(logging.Middleware(logger, "/healthz", "/metrics"))
	// must wrap recovery: panicking requests are counted as 500
	r.Use(metrics.Middleware())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context(), logger).Error("panic recovered", zap.Any("panic", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal_error", Message: "internal server error"})
	}))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", Health(cfg.Health))

	v1 := r.Group("/v1", auth.Authenticate(cfg.SigningKey, cfg.Issuer))
	if cfg.RateLimitPerMin > 0 {
		limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		v1.Use(limiter.GinMiddleware(func(c *gin.Context) string {
			if s, ok := auth.ScopeFrom(c); ok && s.UserID != "" {
				return "user:" + s.UserID
			}
			return "ip:" + c.ClientIP()
		}))
	}

	admin := auth.RequireRole(ledger.RoleAdmin)
	reviewer := auth.RequireRole(ledger.RoleAdmin, ledger.RoleManager)

	v1.POST("/attendance/check-in", h.CheckIn)
	v1.POST("/attendance/check-out", h.CheckOut)
	v1.GET("/attendance/status", h.AttendanceStatus)
	v1.PUT("/attendance", admin, h.UpsertAttendance)
	v1.GET("/attendance", reviewer, h.ListCompanyAttendance)

	v1.POST("/leave", h.SubmitLeave)
	v1.GET("/leave", reviewer, h.ListCompanyLeave)
	v1.GET("/leave/:id", h.GetLeave)
	v1.POST("/leave/:id/adjudicate", reviewer, h.AdjudicateLeave)

	v1.POST("/payroll", admin, h.CreatePayroll)
	v1.GET("/payroll", reviewer, h.ListCompanyPayroll)
	v1.POST("/payroll/process-batch", admin, h.ProcessPayrollBatch)
	v1.GET("/payroll/:id", h.GetPayroll)
	v1.PATCH("/payroll/:id", admin, h.UpdatePayroll)
	v1.POST("/payroll/:id/process", admin, h.ProcessPayroll)
	v1.POST("/payroll/:id/pay", admin, h.PayPayroll)

	v1.POST("/employees", admin, h.CreateEmployee)
	v1.GET("/employees", reviewer, h.ListEmployees)
	v1.GET("/employees/:id", h.GetEmployee)
	v1.PATCH("/employees/:id/status", admin, h.SetEmployeeStatus)
	v1.GET("/employees/:id/attendance", h.ListEmployeeAttendance)
	v1.GET("/employees/:id/leave", h.ListEmployeeLeave)
	v1.GET("/employees/:id/payroll", h.ListEmployeePayroll)

	return r
}
