// Package metrics exposes the Prometheus collectors of the ledger service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hrledger/internal/ledger"
)

var (
	// RequestCounter counts HTTP requests by route and status.
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// RequestDuration records request latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// LedgerOperations counts ledger operations by outcome (ok, or the failure kind/code).
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ClampedDurations counts check-outs whose computed duration was negative.
	ClampedDurations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "attendance_clamped_durations_total",
			Help: "Check-outs recorded before their check-in, stored as zero hours and flagged",
		},
	)
)

// Outcome is the label value recorded for err.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	le, ok := ledger.AsError(err)
	if !ok {
		return "error"
	}
	if le.Code != "" {
		return le.Code
	}
	return string(le.Kind)
}

// ObserveOperation records one ledger operation.
func ObserveOperation(operation string, err error) {
	LedgerOperations.WithLabelValues(operation, Outcome(err)).Inc()
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		RequestCounter.WithLabelValues(c.Request.Method, path, status).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
