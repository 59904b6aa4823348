package metrics

import (
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Float is an atomically updated float64
type Float struct {
	bits atomic.Uint64
}

// Store sets the value
func (f *Float) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// Load returns the value
func (f *Float) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Metrics holds all application metrics
type Metrics struct {
	// Monitoring loop counters
	Ticks            atomic.Uint64
	Readings         atomic.Uint64
	Evaluations      atomic.Uint64
	Episodes         atomic.Uint64
	InvalidInputs    atomic.Uint64
	UnavailableTicks atomic.Uint64

	// Error counters
	SourceErrors   atomic.Uint64
	NotifyFailures atomic.Uint64
	PublishErrors  atomic.Uint64
	WebRTCErrors   atomic.Uint64

	// Latest observation
	LastHeartRate   Float
	LastProbability Float
	SimulationMode  atomic.Uint64 // 0 = hardware, 1 = simulated

	// Latency tracking
	EvalLatencyUs atomic.Uint64 // Last evaluation latency in microseconds

	// Dashboard client tracking
	ActiveClients atomic.Uint64
	TotalClients  atomic.Uint64
	TicksDropped  atomic.Uint64 // Ticks not delivered to slow clients

	// Camera recording state
	RecordingActive atomic.Uint64 // 0 = inactive, 1 = active
	RecordingFrames atomic.Uint64
	RecordingBytes  atomic.Uint64

	evalLatency prometheus.Histogram

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evalLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_evaluation_duration_seconds",
			Help:    "Detector evaluation latency",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) gauge(name, help string, f func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		f,
	))
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	// Loop metrics
	m.counter("monitor_ticks_total", "Monitoring loop iterations", &m.Ticks)
	m.counter("monitor_readings_total", "Heart-rate readings received", &m.Readings)
	m.counter("monitor_evaluations_total", "Detector evaluations", &m.Evaluations)
	m.counter("monitor_episodes_total", "Readings flagged as possible episodes", &m.Episodes)
	m.counter("monitor_invalid_inputs_total", "Readings rejected as out of range", &m.InvalidInputs)
	m.counter("monitor_unavailable_ticks_total", "Ticks where no evaluation was possible", &m.UnavailableTicks)

	// Error metrics
	m.counter("monitor_source_errors_total", "Heart-rate source read errors", &m.SourceErrors)
	m.counter("monitor_notification_failures_total", "Alert delivery failures", &m.NotifyFailures)
	m.counter("monitor_publish_errors_total", "Reading publish failures", &m.PublishErrors)
	m.counter("monitor_webrtc_errors_total", "WebRTC errors", &m.WebRTCErrors)

	// Latest observation
	m.gauge("monitor_heart_rate_bpm", "Most recent heart rate", m.LastHeartRate.Load)
	m.gauge("monitor_episode_probability", "Most recent model probability", m.LastProbability.Load)
	m.gauge("monitor_simulation_mode", "Simulated source in use (0=hardware, 1=simulated)",
		func() float64 { return float64(m.SimulationMode.Load()) })

	// Latency metrics
	m.registry.MustRegister(m.evalLatency)
	m.gauge("monitor_evaluation_latency_us", "Last evaluation latency in microseconds",
		func() float64 { return float64(m.EvalLatencyUs.Load()) })

	// Client metrics
	m.gauge("monitor_active_clients", "Connected dashboard clients (SSE, websocket, WebRTC)",
		func() float64 { return float64(m.ActiveClients.Load()) })
	m.counter("monitor_clients_total", "Dashboard clients connected since start", &m.TotalClients)
	m.counter("monitor_ticks_dropped_total", "Ticks dropped for slow clients", &m.TicksDropped)

	// Recording metrics
	m.gauge("monitor_recording_active", "Camera recording active (0=inactive, 1=active)",
		func() float64 { return float64(m.RecordingActive.Load()) })
	m.counter("monitor_recording_frames_total", "Frames written to camera recordings", &m.RecordingFrames)
	m.counter("monitor_recording_bytes_total", "Bytes written to camera recordings", &m.RecordingBytes)
}

// ObserveEvaluation records how long one detector evaluation took
func (m *Metrics) ObserveEvaluation(d time.Duration) {
	m.EvalLatencyUs.Store(uint64(d.Microseconds()))
	m.evalLatency.Observe(d.Seconds())
}

// SetSimulation records whether the simulated source is active
func (m *Metrics) SetSimulation(simulated bool) {
	if simulated {
		m.SimulationMode.Store(1)
	} else {
		m.SimulationMode.Store(0)
	}
}

// ClientConnected tracks a new dashboard client
func (m *Metrics) ClientConnected() {
	m.ActiveClients.Add(1)
	m.TotalClients.Add(1)
}

// ClientDisconnected tracks a dashboard client leaving
func (m *Metrics) ClientDisconnected() {
	m.ActiveClients.Add(^uint64(0))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
