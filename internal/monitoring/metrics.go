// Package monitoring exposes Prometheus metrics for the store daemon.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for a workspace host.
type Metrics struct {
	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Store operation metrics
	OpsTotal   *prometheus.CounterVec
	OpDuration *prometheus.HistogramVec

	// Watch metrics
	WatchStreams prometheus.Gauge

	// Snapshot metrics
	SnapshotBytes prometheus.Gauge

	startTime time.Time
	Uptime    prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector backed by its own registry, so
// multiple hosts can coexist in one process.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		startTime: time.Now(),
		registry:  registry,

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "workspaced_sessions_active",
			Help: "Number of currently attached editor sessions",
		}),
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "workspaced_sessions_total",
			Help: "Total number of sessions ever attached",
		}),
		OpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "workspaced_store_ops_total",
			Help: "Store operations dispatched, by method and status",
		}, []string{"method", "status"}),
		OpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workspaced_store_op_duration_seconds",
			Help:    "Store operation dispatch duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		WatchStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "workspaced_watch_streams",
			Help: "Number of live watch streams",
		}),
		SnapshotBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "workspaced_snapshot_bytes",
			Help: "Size of the snapshot served to booting sessions",
		}),
		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "workspaced_uptime_seconds",
			Help: "Daemon uptime",
		}),
	}
	return m
}

// Registry returns the backing registry for scrape handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordOp records one dispatched store operation.
func (m *Metrics) RecordOp(method string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OpsTotal.WithLabelValues(method, status).Inc()
	m.OpDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SessionOpened tracks a new editor session attaching.
func (m *Metrics) SessionOpened() {
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
}

// SessionClosed tracks a session detaching.
func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
}

// WatchOpened tracks a new live watch stream.
func (m *Metrics) WatchOpened() {
	m.WatchStreams.Inc()
}

// WatchClosed tracks a watch stream ending.
func (m *Metrics) WatchClosed() {
	m.WatchStreams.Dec()
}

// UpdateUptime refreshes the uptime gauge.
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}
