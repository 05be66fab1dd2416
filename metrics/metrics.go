// Package metrics provides Prometheus metrics for capture sessions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interviewcap"

// Metrics holds all Prometheus collectors. A nil *Metrics is valid and
// records nothing, so components can be built without observability.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsByState *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	SamplesCaptured prometheus.Counter
	NoVoiceWarnings prometheus.Counter

	// Window / recognition metrics
	WindowsDispatched   prometheus.Counter
	WindowsByKind       *prometheus.CounterVec
	RecognitionLatency  *prometheus.HistogramVec
	FallbackRecognition *prometheus.CounterVec

	// Video metrics
	FramesAttempted prometheus.Counter
	FramesCaptured  prometheus.Counter

	// Analysis metrics
	AnalysisErrors *prometheus.CounterVec

	// Publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishLatency prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a fresh registry and registers every collector on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := NewWith(reg)
	m.registry = reg
	return m
}

// NewWith registers collectors on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of capture sessions started",
		}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of capture sessions currently recording or finalizing",
		}),
		SessionsByState: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Capture sessions by terminal state and failure reason",
		}, []string{"state", "reason"}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Wall-clock duration of capture sessions",
			Buckets:   []float64{5, 15, 30, 60, 90, 120, 180, 300},
		}),
		SamplesCaptured: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_samples_captured_total",
			Help:      "Audio samples persisted to artifacts",
		}),
		NoVoiceWarnings: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "no_voice_warnings_total",
			Help:      "Times the silence monitor raised a no-voice warning",
		}),

		WindowsDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_dispatched_total",
			Help:      "Transcription windows handed to the recognizer",
		}),
		WindowsByKind: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_resolved_total",
			Help:      "Transcription windows by recognition outcome",
		}, []string{"kind"}),
		RecognitionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recognition_latency_seconds",
			Help:      "Recognition round-trip latency per window",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}, []string{"provider"}),
		FallbackRecognition: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_recognitions_total",
			Help:      "Whole-artifact fallback recognition passes by outcome",
		}, []string{"kind"}),

		FramesAttempted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_attempted_total",
			Help:      "Camera frame grabs attempted",
		}),
		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "video_frames_captured_total",
			Help:      "Camera frames written to the video artifact",
		}),

		AnalysisErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_errors_total",
			Help:      "Analyzer failures by analyzer and error",
		}, []string{"analyzer", "error"}),

		PublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_publish_total",
			Help:      "Report publish attempts by outcome",
		}, []string{"outcome"}),
		PublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_publish_latency_seconds",
			Help:      "Report publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// Handler serves the registry created by New. Metrics built with NewWith
// are served by whatever handler owns that registerer.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSessionStart records a new session entering recording.
func (m *Metrics) RecordSessionStart() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session reaching a terminal state.
func (m *Metrics) RecordSessionEnd(state, reason string, durationSeconds float64, samples int) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsByState.WithLabelValues(state, reason).Inc()
	m.SessionDuration.Observe(durationSeconds)
	m.SamplesCaptured.Add(float64(samples))
}

func (m *Metrics) RecordNoVoiceWarning() {
	if m == nil {
		return
	}
	m.NoVoiceWarnings.Inc()
}

func (m *Metrics) RecordWindowDispatched() {
	if m == nil {
		return
	}
	m.WindowsDispatched.Inc()
}

// RecordRecognition records the outcome of one window.
func (m *Metrics) RecordRecognition(provider, kind string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.WindowsByKind.WithLabelValues(kind).Inc()
	if latencySeconds > 0 {
		m.RecognitionLatency.WithLabelValues(provider).Observe(latencySeconds)
	}
}

func (m *Metrics) RecordFallback(kind string) {
	if m == nil {
		return
	}
	m.FallbackRecognition.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordFrames(attempted, captured int) {
	if m == nil {
		return
	}
	m.FramesAttempted.Add(float64(attempted))
	m.FramesCaptured.Add(float64(captured))
}

func (m *Metrics) RecordAnalysisError(analyzer, errName string) {
	if m == nil {
		return
	}
	m.AnalysisErrors.WithLabelValues(analyzer, errName).Inc()
}

func (m *Metrics) RecordPublish(err error, latencySeconds float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.PublishTotal.WithLabelValues(outcome).Inc()
	m.PublishLatency.Observe(latencySeconds)
}
