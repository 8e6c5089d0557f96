// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pronunciation_practice"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Attempt metrics
	AttemptsStarted   prometheus.Counter
	AttemptsCompleted prometheus.Counter
	AttemptsAborted   *prometheus.CounterVec
	AccuracyScore     prometheus.Histogram

	// Recognition metrics
	RecognitionEvents *prometheus.CounterVec
	MalformedEvents   *prometheus.CounterVec

	// Alignment metrics
	AlignmentLatency prometheus.Histogram

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// STT metrics
	STTErrors *prometheus.CounterVec

	// Backpressure metrics
	LimitExceeded *prometheus.CounterVec

	// gRPC metrics
	GRPCRequests *prometheus.CounterVec
	GRPCLatency  *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Session metrics
		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of practice sessions opened",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently open practice sessions",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of practice sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		// Attempt metrics
		AttemptsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_started_total",
			Help:      "Total number of sentence attempts started",
		}),
		AttemptsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_completed_total",
			Help:      "Total number of sentence attempts scored",
		}),
		AttemptsAborted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_aborted_total",
			Help:      "Total number of sentence attempts aborted",
		}, []string{"reason"}),
		AccuracyScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "accuracy_score",
			Help:      "Final accuracy score of completed attempts",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 95, 100},
		}),

		// Recognition metrics
		RecognitionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_events_total",
			Help:      "Recognition events by kind and reconciliation outcome",
		}, []string{"kind", "outcome"}),
		MalformedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_events_malformed_total",
			Help:      "Recognition events dropped because they failed validation",
		}, []string{"reason"}),

		// Alignment metrics
		AlignmentLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alignment_latency_seconds",
			Help:      "Time spent aligning hypothesis against reference",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),

		// Audio metrics
		AudioBytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total LINEAR16 audio bytes forwarded to the recognizer",
		}),
		AudioFramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received from clients",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// STT metrics
		STTErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider"}),

		// Backpressure metrics
		LimitExceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_limit_exceeded_total",
			Help:      "Total number of times attempt limits were exceeded",
		}, []string{"limit_type"}),

		// gRPC metrics
		GRPCRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls by method and status code",
		}, []string{"method", "code"}),
		GRPCLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// RecordSessionStart records a new practice session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a practice session closing.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordAttemptStarted records a new sentence attempt.
func (m *Metrics) RecordAttemptStarted() {
	m.AttemptsStarted.Inc()
}

// RecordAttemptCompleted records a scored attempt and its accuracy.
func (m *Metrics) RecordAttemptCompleted(accuracy float64) {
	m.AttemptsCompleted.Inc()
	m.AccuracyScore.Observe(accuracy)
}

// RecordAttemptAborted records an attempt abandoned before scoring.
func (m *Metrics) RecordAttemptAborted(reason string) {
	m.AttemptsAborted.WithLabelValues(reason).Inc()
}

// RecordRecognitionEvent records a reconciled recognition event.
func (m *Metrics) RecordRecognitionEvent(kind, outcome string) {
	m.RecognitionEvents.WithLabelValues(kind, outcome).Inc()
}

// RecordMalformedEvent records a recognition event dropped by validation.
func (m *Metrics) RecordMalformedEvent(reason string) {
	m.MalformedEvents.WithLabelValues(reason).Inc()
}

// RecordAlignment records the time taken by one alignment.
func (m *Metrics) RecordAlignment(seconds float64) {
	m.AlignmentLatency.Observe(seconds)
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider string) {
	m.STTErrors.WithLabelValues(provider).Inc()
}

// RecordLimitExceeded records when an attempt limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.LimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordGRPCRequest records a completed gRPC call.
func (m *Metrics) RecordGRPCRequest(method, code string, durationSeconds float64) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(durationSeconds)
}
