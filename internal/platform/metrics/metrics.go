// Package metrics exposes Prometheus counters for authentication events and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests and multiple instances never collide
// on the global one.
type Metrics struct {
	registry     *prometheus.Registry
	authEvents   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		authEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sample_app_auth_events_total",
				Help: "Total number of authentication events by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sample_app_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
	}
	registry.MustRegister(m.authEvents, m.httpRequests)
	return m
}

// Inc records one authentication event, e.g. ("login", "success").
func (m *Metrics) Inc(event, outcome string) {
	m.authEvents.WithLabelValues(event, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Middleware counts requests by their route template, so ids in paths do not
// create new series. Unmatched routes are reported as "unmatched".
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
