package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// AutosaveFlushes counts submission persistence calls by outcome:
	// ok, error, discarded (late write against a completed submission).
	AutosaveFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosave_flush_total",
			Help: "Total number of autosave persistence calls",
		},
		[]string{"result"},
	)

	// AutosaveCoalesced counts edits absorbed by an already pending
	// timer or in-flight save instead of triggering their own write.
	AutosaveCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autosave_coalesced_total",
			Help: "Total number of edits coalesced into a pending autosave",
		},
	)

	SubmissionCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submission_completions_total",
			Help: "Total number of submission completion attempts",
		},
		[]string{"result"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(AutosaveFlushes)
	prometheus.MustRegister(AutosaveCoalesced)
	prometheus.MustRegister(SubmissionCompletions)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
