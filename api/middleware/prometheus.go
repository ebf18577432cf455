package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status", "service"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	messagingOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_operations_total",
			Help: "Total number of team messaging operations processed",
		},
		[]string{"operation", "status", "service"},
	)

	messagingOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_operation_duration_seconds",
			Help:    "Duration of team messaging operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "service"},
	)

	messagingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_errors_total",
			Help: "Total number of team messaging operation errors",
		},
		[]string{"operation", "error_code", "service"},
	)
)

func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
			serviceName,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			serviceName,
		).Observe(duration)
	}
}

// RecordMessagingOperation пишет метрики одной доменной операции.
// errorCode - стабильный код доменной ошибки или пустая строка.
func RecordMessagingOperation(operation, status, serviceName string, duration time.Duration, errorCode string) {
	messagingOperationsTotal.WithLabelValues(operation, status, serviceName).Inc()
	messagingOperationDuration.WithLabelValues(operation, serviceName).Observe(duration.Seconds())

	if errorCode != "" {
		messagingErrors.WithLabelValues(operation, errorCode, serviceName).Inc()
	}
}
