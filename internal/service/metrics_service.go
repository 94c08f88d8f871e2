package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the bot.
type MetricsService struct {
	registry      *prometheus.Registry
	handler       http.Handler
	updatesTotal  *prometheus.CounterVec
	flowSteps     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	assignments   *prometheus.CounterVec
	dbDuration    *prometheus.HistogramVec
	roleCacheHits prometheus.Counter
	roleCacheMiss prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	updatesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Total inbound chat updates by routed command",
	}, []string{"command", "role"})

	flowSteps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_flow_steps_total",
		Help: "Total conversation flow steps processed",
	}, []string{"step"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_notifications_total",
		Help: "Notification delivery outcomes",
	}, []string{"outcome"})

	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_assignment_events_total",
		Help: "Assignment lifecycle events",
	}, []string{"event"})

	dbDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	roleCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "role_cache_hits_total",
		Help: "Total role cache hits",
	})

	roleCacheMiss := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "role_cache_misses_total",
		Help: "Total role cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(updatesTotal, flowSteps, notifications, assignments, dbDuration, roleCacheHits, roleCacheMiss, goroutines)

	return &MetricsService{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		updatesTotal:  updatesTotal,
		flowSteps:     flowSteps,
		notifications: notifications,
		assignments:   assignments,
		dbDuration:    dbDuration,
		roleCacheHits: roleCacheHits,
		roleCacheMiss: roleCacheMiss,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveUpdate records one routed inbound update.
func (m *MetricsService) ObserveUpdate(command, role string) {
	if m == nil {
		return
	}
	m.updatesTotal.WithLabelValues(command, role).Inc()
}

// ObserveFlowStep records one processed conversation step.
func (m *MetricsService) ObserveFlowStep(step string) {
	if m == nil {
		return
	}
	m.flowSteps.WithLabelValues(step).Inc()
}

// NotificationOutcome records one notification delivery outcome.
func (m *MetricsService) NotificationOutcome(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// AssignmentEvent records an assignment lifecycle event (issued, submitted, graded).
func (m *MetricsService) AssignmentEvent(event string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(event).Inc()
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RoleCacheLookup records a role cache hit or miss.
func (m *MetricsService) RoleCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.roleCacheHits.Inc()
	} else {
		m.roleCacheMiss.Inc()
	}
}
