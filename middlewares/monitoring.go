package middlewares

import (
	"strconv"
	"strings"
	"time"

	"b2b-storefront/errs"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// outcome is "success" or the lower-cased errs.Code of the failure.
	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_operations_total",
			Help: "Total number of order operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	partialOrders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_checkout_partial_orders_total",
		Help: "Orders whose header could not be removed after a line write failed",
	})
)

// PrometheusMiddleware records request counts and latency per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

// Outcome labels an operation result: "success", or the failure's code such
// as "failed_precondition" for a cart under the minimum.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(errs.CodeOf(err).String())
}

// RecordOrderOperation counts checkout, status, export and reminder outcomes.
func RecordOrderOperation(operation string, err error) {
	orderOperations.WithLabelValues(operation, Outcome(err)).Inc()
}

// RecordPartialOrder counts an order header left behind after a failed
// compensation.
func RecordPartialOrder() {
	partialOrders.Inc()
}
