package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec
	ServiceErrors   *prometheus.CounterVec

	// Snapshot metrics
	SnapshotOps     *prometheus.CounterVec
	SnapshotsStored prometheus.Gauge
	PanelsPerView   prometheus.Histogram
	GroupsPerView   prometheus.Histogram
	RecordsRemoved  *prometheus.CounterVec
	UploadBytes     prometheus.Histogram
	BreakerState    *prometheus.GaugeVec

	startTime time.Time
	totals    Totals
	mu        sync.RWMutex
}

// Totals holds running values for the JSON stats endpoint
type Totals struct {
	TotalRequests  int64   `json:"total_requests"`
	TotalErrors    int64   `json:"total_errors"`
	Uploads        int64   `json:"uploads"`
	Edits          int64   `json:"edits"`
	StoredCount    int64   `json:"stored_snapshots"`
	TotalDuration  float64 `json:"-"`
	RequestCount   int64   `json:"-"`
	AvgResponseSec float64 `json:"avg_response_seconds"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several instances can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidesnap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidesnap_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidesnap_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 50000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidesnap_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Service metrics
		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidesnap_service_calls_total",
				Help: "Total number of service calls",
			},
			[]string{"service", "method", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidesnap_service_duration_seconds",
				Help:    "Service call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "method"},
		),
		ServiceErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidesnap_service_errors_total",
				Help: "Total number of service errors",
			},
			[]string{"service", "method", "error_type"},
		),

		// Snapshot metrics
		SnapshotOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidesnap_snapshot_operations_total",
				Help: "Snapshot operations by kind and outcome",
			},
			[]string{"op", "status"},
		),
		SnapshotsStored: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sidesnap_snapshots_stored",
				Help: "Number of stored snapshots at last listing",
			},
		),
		PanelsPerView: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sidesnap_view_panels",
				Help:    "Panels per derived snapshot view",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
			},
		),
		GroupsPerView: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sidesnap_view_groups",
				Help:    "Groups per derived snapshot view",
				Buckets: []float64{0, 1, 4, 16, 64, 256, 1024},
			},
		),
		RecordsRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidesnap_records_removed_total",
				Help: "Tab records removed by edits",
			},
			[]string{"mode"},
		),
		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sidesnap_upload_bytes",
				Help:    "Size of accepted snapshot uploads",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sidesnap_circuit_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sidesnap_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.totals.TotalRequests++
	m.totals.TotalDuration += duration.Seconds()
	m.totals.RequestCount++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.totals.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordServiceCall records a service call
func (m *Metrics) RecordServiceCall(service, method, status string, duration time.Duration) {
	m.ServiceCalls.WithLabelValues(service, method, status).Inc()
	m.ServiceDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordServiceError records a service error
func (m *Metrics) RecordServiceError(service, method, errorType string) {
	m.ServiceErrors.WithLabelValues(service, method, errorType).Inc()
}

// RecordSnapshotOp counts one snapshot operation
func (m *Metrics) RecordSnapshotOp(op, status string) {
	m.SnapshotOps.WithLabelValues(op, status).Inc()
	if status != "success" {
		return
	}
	m.mu.Lock()
	switch op {
	case "upload":
		m.totals.Uploads++
	case "replace", "delete", "delete_panel", "delete_node":
		m.totals.Edits++
	}
	m.mu.Unlock()
}

// ObserveView records the shape of a derived view
func (m *Metrics) ObserveView(panels, groups int) {
	m.PanelsPerView.Observe(float64(panels))
	m.GroupsPerView.Observe(float64(groups))
}

// ObserveUpload records the size of an accepted upload
func (m *Metrics) ObserveUpload(size int) {
	m.UploadBytes.Observe(float64(size))
}

// AddRecordsRemoved counts records removed by an edit
func (m *Metrics) AddRecordsRemoved(mode string, n int) {
	if n > 0 {
		m.RecordsRemoved.WithLabelValues(mode).Add(float64(n))
	}
}

// SetSnapshotsStored sets the stored snapshot gauge
func (m *Metrics) SetSnapshotsStored(count int) {
	m.SnapshotsStored.Set(float64(count))
	m.mu.Lock()
	m.totals.StoredCount = int64(count)
	m.mu.Unlock()
}

// SetBreakerState publishes a circuit breaker state
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// GetTotals returns a copy of the running totals
func (m *Metrics) GetTotals() Totals {
	m.mu.RLock()
	t := m.totals
	m.mu.RUnlock()

	if t.RequestCount > 0 {
		t.AvgResponseSec = t.TotalDuration / float64(t.RequestCount)
	}
	t.UptimeSeconds = time.Since(m.startTime).Seconds()
	return t
}
