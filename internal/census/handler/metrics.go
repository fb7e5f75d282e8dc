package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "census_ledger_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	ledgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "census_ledger_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "census_ledger_operations_total",
		Help: "Committed ledger operations by kind.",
	}, []string{"op"})

	integrityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "census_ledger_integrity_checks_total",
		Help: "Integrity verification outcomes.",
	}, []string{"result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		ledgerRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		ledgerRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordLedgerOp counts a committed mutating ledger operation.
func RecordLedgerOp(op string) {
	ledgerOpsTotal.WithLabelValues(op).Inc()
}

// RecordIntegrityCheck counts an integrity check outcome.
func RecordIntegrityCheck(verified bool) {
	if verified {
		integrityChecksTotal.WithLabelValues("passed").Inc()
	} else {
		integrityChecksTotal.WithLabelValues("failed").Inc()
	}
}
