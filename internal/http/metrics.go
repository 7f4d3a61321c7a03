package http

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// requestMetrics are the per-route request series served at MetricsPath.
type requestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// newRequestMetrics registers the request series on reg. A nil reg gets a
// private registry so the middleware still runs in tests.
func newRequestMetrics(reg prometheus.Registerer) *requestMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	labels := []string{"method", "route", "status"}
	m := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playbook", Subsystem: "http",
			Name: "requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "playbook", Subsystem: "http",
			Name: "request_duration_seconds",
			Help: "HTTP request latency. Ask and upload are dominated by model calls.",
			// Answers routinely take seconds.
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, labels),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "playbook", Subsystem: "http",
			Name:    "response_size_bytes",
			Help:    "HTTP response body size.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 8),
		}, labels),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "playbook", Subsystem: "http",
			Name: "requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.size, m.inFlight)
	return m
}

// middleware records one observation per request. Routes are labeled by
// echo's pattern (/api/v1/documents/:id) so ids never become label values.
func (m *requestMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		err := next(c)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		lv := []string{c.Request().Method, route, strconv.Itoa(c.Response().Status)}
		m.requests.WithLabelValues(lv...).Inc()
		m.duration.WithLabelValues(lv...).Observe(time.Since(start).Seconds())
		m.size.WithLabelValues(lv...).Observe(float64(c.Response().Size))
		return err
	}
}
