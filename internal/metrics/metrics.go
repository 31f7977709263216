package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScanOutcomes counts QR scans by outcome ("recorded" or an error kind).
	ScanOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduct_attendance_scans_total",
		Help: "QR attendance scans by outcome.",
	}, []string{"outcome"})

	// QueuePublishFailures counts attendance events that could not be queued.
	QueuePublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "conduct_queue_publish_failures_total",
		Help: "Attendance events that failed to publish.",
	})

	// ReconcileOutcomes counts worker reconciliation results.
	ReconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduct_reconcile_total",
		Help: "Registration reconciliations processed by the worker.",
	}, []string{"result"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conduct_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

// GinMiddleware records request latency per matched route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
