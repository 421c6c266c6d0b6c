package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Terminal session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Frame metrics
	FramesSent    *prometheus.CounterVec
	FramesDropped *prometheus.CounterVec
	SendErrors    *prometheus.CounterVec

	// Resource lifecycle metrics
	ResourceFailures *prometheus.CounterVec

	// Server-side shell metrics
	ShellsActive prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	ActiveSessions   int64   `json:"active_sessions"`
	FramesSent       int64   `json:"frames_sent"`
	FramesDropped    int64   `json:"frames_dropped"`
	ResourceFailures int64   `json:"resource_failures"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector registered on reg. Tests pass a
// fresh prometheus.NewRegistry() so repeated construction does not collide.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "terminal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	m.SessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminal_sessions_active",
			Help: "Number of initialised terminal sessions not yet closed",
		},
	)
	m.SessionsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "terminal_sessions_total",
			Help: "Total number of terminal sessions initialised",
		},
	)

	m.FramesSent = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_frames_sent_total",
			Help: "Protocol frames handed to a channel",
		},
		[]string{"type"},
	)
	m.FramesDropped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_frames_dropped_total",
			Help: "Protocol frames suppressed by session gating",
		},
		[]string{"type", "reason"},
	)
	m.SendErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_send_errors_total",
			Help: "Protocol frames a channel failed to accept",
		},
		[]string{"type"},
	)

	m.ResourceFailures = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_resource_failures_total",
			Help: "Failures loading or disposing surface resources",
		},
		[]string{"resource", "op"},
	)

	m.ShellsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminal_shells_active",
			Help: "Number of live server-side shell processes",
		},
	)

	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminal_ws_connections",
			Help: "Number of active WebSocket connections",
		},
	)
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminal_ws_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "terminal_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// FrameSent records a frame accepted by a channel.
func (m *Metrics) FrameSent(frameType string) {
	m.FramesSent.WithLabelValues(frameType).Inc()
	m.mu.Lock()
	m.snapshot.FramesSent++
	m.mu.Unlock()
}

// FrameDropped records a frame suppressed before reaching the channel.
func (m *Metrics) FrameDropped(frameType, reason string) {
	m.FramesDropped.WithLabelValues(frameType, reason).Inc()
	m.mu.Lock()
	m.snapshot.FramesDropped++
	m.mu.Unlock()
}

// SendFailed records a channel refusing a frame.
func (m *Metrics) SendFailed(frameType string, _ error) {
	m.SendErrors.WithLabelValues(frameType).Inc()
}

// ResourceFailed records a failed load or dispose of a surface resource.
func (m *Metrics) ResourceFailed(resource, op string, _ error) {
	m.ResourceFailures.WithLabelValues(resource, op).Inc()
	m.mu.Lock()
	m.snapshot.ResourceFailures++
	m.mu.Unlock()
}

// SessionOpened records an initialised session.
func (m *Metrics) SessionOpened() {
	m.SessionsActive.Inc()
	m.SessionsTotal.Inc()
	m.mu.Lock()
	m.snapshot.ActiveSessions++
	m.mu.Unlock()
}

// SessionClosed records a closed session.
func (m *Metrics) SessionClosed() {
	m.SessionsActive.Dec()
	m.mu.Lock()
	m.snapshot.ActiveSessions--
	m.mu.Unlock()
}

// SetShellsActive sets the number of live server-side shells
func (m *Metrics) SetShellsActive(count int) {
	m.ShellsActive.Set(float64(count))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// Snapshot returns the current counters for the JSON health endpoint.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := m.snapshot
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
