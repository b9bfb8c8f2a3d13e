package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "go_analysis"

// Noise reasons for ProtocolNoise.
const (
	NoiseInvalidJSON = "invalid_json"
	NoiseEngineError = "engine_error"
	NoiseWarning     = "warning"
	NoiseUnknownID   = "unknown_id"
)

// Metrics groups the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EngineRestarts    prometheus.Counter
	EngineRunning     prometheus.Gauge
	PendingRequests   prometheus.Gauge
	ResultsDispatched prometheus.Counter
	ProtocolNoise     *prometheus.CounterVec
	StreamingTimeouts prometheus.Counter
	AnalysisDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EngineRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "restarts_total",
			Help:      "Engine restarts performed by the watchdog or on demand",
		}),
		EngineRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "running",
			Help:      "1 while the engine process is alive",
		}),
		PendingRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "pending_requests",
			Help:      "Queries waiting for engine results",
		}),
		ResultsDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "results_dispatched_total",
			Help:      "Engine responses delivered to a pending query",
		}),
		ProtocolNoise: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatcher",
			Name:      "protocol_noise_total",
			Help:      "Engine output lines that were logged and dropped",
		}, []string{"reason"}),
		StreamingTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "streaming_timeouts_total",
			Help:      "Sessions that gave up waiting for the next turn",
		}),
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of an analysis request",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"mode"}),
	}
}

func (m *Metrics) Restarted() {
	if m != nil {
		m.EngineRestarts.Inc()
	}
}

func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.EngineRunning.Set(1)
	} else {
		m.EngineRunning.Set(0)
	}
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.PendingRequests.Set(float64(n))
	}
}

func (m *Metrics) Dispatched() {
	if m != nil {
		m.ResultsDispatched.Inc()
	}
}

func (m *Metrics) Noise(reason string) {
	if m != nil {
		m.ProtocolNoise.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) TimedOut() {
	if m != nil {
		m.StreamingTimeouts.Inc()
	}
}

func (m *Metrics) ObserveAnalysis(mode string, since time.Time) {
	if m != nil {
		m.AnalysisDuration.WithLabelValues(mode).Observe(time.Since(since).Seconds())
	}
}
