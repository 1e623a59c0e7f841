package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minutes"

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Requests          *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	CollaboratorCalls *prometheus.CounterVec
	ChunksPerRequest  prometheus.Histogram
	WindowsPerRequest prometheus.Histogram
	Jobs              *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Transcription requests by outcome and error kind.",
			},
			[]string{"outcome", "kind"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time spent in each pipeline stage.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"stage", "outcome"},
		),
		CollaboratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collaborator_calls_total",
				Help:      "Calls to transcoder, probe, speech-to-text and text generation.",
			},
			[]string{"collaborator", "outcome"},
		),
		ChunksPerRequest: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chunks_per_request",
				Help:      "Audio chunks transcribed per request.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
			},
		),
		WindowsPerRequest: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "windows_per_request",
				Help:      "Transcript windows summarized per request (1 means single pass).",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
			},
		),
		Jobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Asynchronous transcription jobs by final status.",
			},
			[]string{"status"},
		),
	}
}

func (m *Metrics) ObserveRequest(outcome, kind string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome, kind).Inc()
}

func (m *Metrics) ObserveStage(stage string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, outcome(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveCall(collaborator string, err error) {
	if m == nil {
		return
	}
	m.CollaboratorCalls.WithLabelValues(collaborator, outcome(err)).Inc()
}

func (m *Metrics) ObserveChunks(n int) {
	if m == nil {
		return
	}
	m.ChunksPerRequest.Observe(float64(n))
}

func (m *Metrics) ObserveWindows(n int) {
	if m == nil {
		return
	}
	m.WindowsPerRequest.Observe(float64(n))
}

func (m *Metrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(status).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
