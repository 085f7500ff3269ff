// Package metrics exposes prometheus instrumentation for the swarm
// service: HTTP request counts and latencies, domain event counts and
// sweep activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the swarm metric families on a private registry.
type Collector struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	events       *prometheus.CounterVec
	sweeps       *prometheus.CounterVec
}

// NewCollector creates a collector with Go runtime and process metrics
// pre-registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Collector{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swarm",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "events_total",
			Help:      "Domain events published, by event name.",
		}, []string{"event"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "sweep_transitions_total",
			Help:      "Records transitioned by sweep passes, by job.",
		}, []string{"job"}),
	}
	reg.MustRegister(c.httpRequests, c.httpDuration, c.events, c.sweeps)
	return c
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, took time.Duration) {
	code := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, route, code).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// CountEvent records one published domain event.
func (c *Collector) CountEvent(event string) {
	c.events.WithLabelValues(event).Inc()
}

// CountSweep records the records transitioned by one sweep pass.
func (c *Collector) CountSweep(job string, n int) {
	if n > 0 {
		c.sweeps.WithLabelValues(job).Add(float64(n))
	}
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
