package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request counts and latencies per route.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	denials  *prometheus.CounterVec
	access   *prometheus.CounterVec
}

// NewMetrics registers the HTTP collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		denials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_http_denied_total",
				Help: "Requests rejected with 401 or 403",
			},
			[]string{"route", "status_code"},
		),
		access: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_record_access_total",
				Help: "Audited accesses to clinical records",
			},
			[]string{"resource", "action", "role", "status_code"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.denials, m.access)
	return m
}

// Middleware observes every request. It runs after routing so the route
// template, not the raw path, is used as label.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = statusOf(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			code := strconv.Itoa(status)

			m.requests.WithLabelValues(c.Request().Method, route, code).Inc()
			m.duration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			if status == 401 || status == 403 {
				m.denials.WithLabelValues(route, code).Inc()
			}
			return err
		}
	}
}

// RecordAccess counts an audited record access. It lets Metrics serve as an
// AuditRecorder.
func (m *Metrics) RecordAccess(entry AuditEntry) error {
	role := entry.Role
	if role == "" {
		role = "anonymous"
	}
	m.access.WithLabelValues(entry.Resource, entry.Action, role, strconv.Itoa(entry.StatusCode)).Inc()
	return nil
}
