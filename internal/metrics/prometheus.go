package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry collisions.
type Metrics struct {
	// Audio intake
	audioBytesReceived prometheus.Counter
	framesProcessed    prometheus.Counter

	// Segmentation
	segmentsEmitted  *prometheus.CounterVec
	segmentsDropped  *prometheus.CounterVec
	segmentDuration  prometheus.Histogram
	queueDepth       prometheus.Gauge

	// Pipeline stages
	stageLatency prometheus.ObserverVec
	stageErrors  *prometheus.CounterVec
	staleResults prometheus.Counter

	// Sessions and events
	activeSessions prometheus.Gauge
	sessionsTotal  prometheus.Counter
	eventsEmitted  *prometheus.CounterVec
	eventsDropped  prometheus.Counter
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		audioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talkflow_audio_bytes_received_total",
			Help: "Total PCM bytes received from clients",
		}),
		framesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talkflow_frames_processed_total",
			Help: "Total fixed-size frames classified by VAD",
		}),
		segmentsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "talkflow_segments_emitted_total",
			Help: "Total speech segments emitted by the assembler",
		}, []string{"reason"}),
		segmentsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "talkflow_segments_dropped_total",
			Help: "Total segments dropped before recognition",
		}, []string{"reason"}),
		segmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "talkflow_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "talkflow_segment_queue_depth",
			Help: "Segments currently queued for processing across sessions",
		}),
		stageLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "talkflow_stage_latency_seconds",
			Help:    "Latency of pipeline stage calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"stage"}),
		stageErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "talkflow_stage_errors_total",
			Help: "Total pipeline stage failures",
		}, []string{"stage"}),
		staleResults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talkflow_stale_results_total",
			Help: "Total stage results discarded because the session was reset",
		}),
		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "talkflow_active_sessions",
			Help: "Currently active sessions",
		}),
		sessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talkflow_sessions_total",
			Help: "Total sessions created",
		}),
		eventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "talkflow_events_emitted_total",
			Help: "Total pipeline events delivered to clients",
		}, []string{"type"}),
		eventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "talkflow_events_dropped_total",
			Help: "Total events dropped due to a full event buffer",
		}),
	}
}

// RecordAudioReceived records PCM bytes received from a client.
func (m *Metrics) RecordAudioReceived(bytes int) {
	if m == nil {
		return
	}
	m.audioBytesReceived.Add(float64(bytes))
}

// RecordFramesProcessed records frames classified by VAD.
func (m *Metrics) RecordFramesProcessed(n int) {
	if m == nil {
		return
	}
	m.framesProcessed.Add(float64(n))
}

// RecordSegmentEmitted records one emitted segment with its emission reason
// ("silence", "capped", "flush", "interval") and duration in seconds.
func (m *Metrics) RecordSegmentEmitted(reason string, seconds float64) {
	if m == nil {
		return
	}
	m.segmentsEmitted.WithLabelValues(reason).Inc()
	m.segmentDuration.Observe(seconds)
}

// RecordSegmentDropped records a segment dropped before recognition
// ("backpressure", "reset", "too_short").
func (m *Metrics) RecordSegmentDropped(reason string) {
	if m == nil {
		return
	}
	m.segmentsDropped.WithLabelValues(reason).Inc()
}

// SetQueueDepth adjusts the queued-segment gauge by delta.
func (m *Metrics) SetQueueDepth(delta float64) {
	if m == nil {
		return
	}
	m.queueDepth.Add(delta)
}

// RecordStageLatency records the duration of one stage call.
func (m *Metrics) RecordStageLatency(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordStageError records a failed stage call.
func (m *Metrics) RecordStageError(stage string) {
	if m == nil {
		return
	}
	m.stageErrors.WithLabelValues(stage).Inc()
}

// RecordStaleResult records a stage result discarded after a reset.
func (m *Metrics) RecordStaleResult() {
	if m == nil {
		return
	}
	m.staleResults.Inc()
}

// RecordSessionStarted records a new session.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
	m.activeSessions.Inc()
}

// RecordSessionEnded records a closed session.
func (m *Metrics) RecordSessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// RecordEventEmitted records one event delivered to the session event channel.
func (m *Metrics) RecordEventEmitted(eventType string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records an event discarded because the buffer was full.
func (m *Metrics) RecordEventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
