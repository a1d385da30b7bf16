package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn stage names recorded in the latency window.
const (
	StageExtract         = "extract"
	StageModelFirstDelta = "model_first_delta"
	StageTurnTotal       = "turn_total"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	DocumentLoads   *prometheus.CounterVec
	Turns           *prometheus.CounterVec
	WSMessages      *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	ExtractLatency  prometheus.Histogram
	ModelLatency    prometheus.Histogram
	FirstDeltaDelay prometheus.Histogram

	gatherer prometheus.Gatherer
	stages   *turnStageWindow
}

// NewMetrics registers instruments on the default Prometheus registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, namespace)
}

// NewMetricsWithRegistry registers on reg and serves from gatherer. Tests pass
// a fresh prometheus.NewRegistry() for both.
func NewMetricsWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live tutoring sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		DocumentLoads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_loads_total",
			Help:      "Paper uploads by result.",
		}, []string{"result"}),
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Submitted turns by result.",
		}, []string{"result"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ProviderErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and code.",
		}, []string{"provider", "code"}),
		ExtractLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_latency_ms",
			Help:      "PDF text extraction latency in milliseconds.",
			Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		ModelLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_latency_ms",
			Help:      "Chat completion latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
		}),
		FirstDeltaDelay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_first_delta_ms",
			Help:      "Latency to the first streamed reply fragment in milliseconds.",
			Buckets:   []float64{100, 200, 300, 500, 800, 1200, 2000, 4000},
		}),
		gatherer: gatherer,
		stages:   newTurnStageWindow(256),
	}
}

func (m *Metrics) ObserveExtract(d time.Duration, result string) {
	m.ExtractLatency.Observe(float64(d.Milliseconds()))
	m.DocumentLoads.WithLabelValues(result).Inc()
	if result == "ok" {
		m.ObserveTurnStage(StageExtract, d)
	}
}

func (m *Metrics) ObserveFirstDelta(d time.Duration) {
	m.FirstDeltaDelay.Observe(float64(d.Milliseconds()))
	m.ObserveTurnStage(StageModelFirstDelta, d)
}

func (m *Metrics) ObserveTurn(d time.Duration, result string) {
	m.Turns.WithLabelValues(result).Inc()
	if result == "ok" {
		m.ModelLatency.Observe(float64(d.Milliseconds()))
		m.ObserveTurnStage(StageTurnTotal, d)
	}
}

func (m *Metrics) ObserveTurnStage(stage string, d time.Duration) {
	m.stages.Observe(stage, float64(d.Microseconds())/1000)
}

func (m *Metrics) ObserveIndicator(name string) {
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) TurnStageSnapshot() TurnStageSnapshot {
	return m.stages.Snapshot()
}

func (m *Metrics) ResetTurnStages() {
	m.stages.Reset()
}

// Handler serves the registry this Metrics was created with.
func (m *Metrics) Handler() http.Handler {
	if m.gatherer == nil || m.gatherer == prometheus.DefaultGatherer {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
