package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/agency-hub/internal/events"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorTotal      *prometheus.CounterVec
	trackedSeconds  *prometheus.CounterVec
	timerActions    *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agencyhub_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agencyhub_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agencyhub_http_errors_total",
			Help: "Total number of error responses by code",
		}, []string{"method", "path", "code"}),
		trackedSeconds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agencyhub_tracked_seconds_total",
			Help: "Seconds recorded into time entries",
		}, []string{"billable"}),
		timerActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agencyhub_timer_actions_total",
			Help: "Timer transitions by action",
		}, []string{"action"}),
	}
}

// RecordRequest observes one completed request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorTotal.WithLabelValues(method, path, code).Inc()
}

// Subscribe feeds domain events into the tracked-time and timer counters.
func (m *Metrics) Subscribe(dispatcher events.Dispatcher) {
	if m == nil || dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTimeEntryRecorded, func(_ context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.TimeEntryRecordedPayload); ok {
			m.trackedSeconds.WithLabelValues(strconv.FormatBool(p.Billable)).Add(float64(p.DurationSeconds))
		}
		return nil
	})
	dispatcher.Subscribe(events.EventTimerChanged, func(_ context.Context, e events.Event) error {
		if p, ok := e.Payload.(events.TimerChangedPayload); ok {
			m.timerActions.WithLabelValues(p.Action).Inc()
		}
		return nil
	})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
