package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// SendQueueDepth tracks the pending review requests per tenant
	SendQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "send_queue_depth",
			Help: "Pending review requests in the send queue",
		},
		[]string{"tenant"},
	)

	// FeedbackReconciled counts remote feedback records by reconciliation outcome
	FeedbackReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_reconciled_total",
			Help: "Remote feedback records processed, by outcome",
		},
		[]string{"tenant", "outcome"},
	)
)

// Metrics returns a Fiber middleware that records request metrics. The
// matched route template keeps the route label low-cardinality.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(c.Response().StatusCode()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}
