package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_http_requests_total",
		Help: "HTTP requests handled, by method, route and status.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// instrument records request count and latency per matched route, so ids
// in the path do not explode label cardinality.
func instrument(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	route := c.Route().Path
	status := strconv.Itoa(responseStatus(c, err))
	requestsTotal.WithLabelValues(c.Method(), route, status).Inc()
	requestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
	return err
}

func metricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
