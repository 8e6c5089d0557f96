// Package config loads service configuration from environment variables.
// Unset or unparsable values fall back to defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the complete service configuration.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	AttemptLimits AttemptLimits
	Reconciler    ReconcilerConfig
	Scoring       ScoringConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
	Catalog       CatalogConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal      string
	GRPCPort       string
	HTTPPort       string
	MetricsAddr    string
	OriginPatterns []string // extra websocket origins accepted besides the request host
}

// STTConfig selects and configures the speech recognizer.
type STTConfig struct {
	Provider       string // mock, google
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	WordConfidence bool
}

// AttemptLimits bounds the resources one sentence attempt may consume.
type AttemptLimits struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
	MaxEvents     int
	DrainTimeout  time.Duration // wait for the recognizer's last final on stop
}

// ReconcilerConfig tunes the transcript loop/repeat detector.
type ReconcilerConfig struct {
	HistorySize         int
	SimilarityThreshold float64
	MinRepeatWords      int
	TailWindow          int
	TailOverlapRatio    float64
}

// ScoringConfig configures alignment memoization.
type ScoringConfig struct {
	CacheSize int
}

// KafkaConfig configures the event publisher.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicResult     string
	Principal       string
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// CatalogConfig points at the practice sentence catalog.
type CatalogConfig struct {
	SentencesFile string
}

// Load reads the configuration from the environment.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-pronunciation-practice")

	return &Configuration{
		Service: ServiceConfig{
			Principal:      principal,
			GRPCPort:       envOrDefault("GRPC_PORT", "50051"),
			HTTPPort:       envOrDefault("HTTP_PORT", "8080"),
			MetricsAddr:    envOrDefault("METRICS_ADDR", ":9090"),
			OriginPatterns: envList("WS_ORIGIN_PATTERNS"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			WordConfidence: envOrDefaultBool("STT_WORD_CONFIDENCE", true),
		},
		AttemptLimits: AttemptLimits{
			MaxAudioBytes: int64(envOrDefaultInt("ATTEMPT_MAX_AUDIO_BYTES", 5*1024*1024)),
			MaxDuration:   envOrDefaultDuration("ATTEMPT_MAX_DURATION", 2*time.Minute),
			MaxEvents:     envOrDefaultInt("ATTEMPT_MAX_EVENTS", 1000),
			DrainTimeout:  envOrDefaultDuration("ATTEMPT_DRAIN_TIMEOUT", 500*time.Millisecond),
		},
		Reconciler: ReconcilerConfig{
			HistorySize:         envOrDefaultInt("RECONCILER_HISTORY_SIZE", 12),
			SimilarityThreshold: envOrDefaultFloat("RECONCILER_SIMILARITY_THRESHOLD", 0.9),
			MinRepeatWords:      envOrDefaultInt("RECONCILER_MIN_REPEAT_WORDS", 8),
			TailWindow:          envOrDefaultInt("RECONCILER_TAIL_WINDOW", 400),
			TailOverlapRatio:    envOrDefaultFloat("RECONCILER_TAIL_OVERLAP_RATIO", 0.85),
		},
		Scoring: ScoringConfig{
			CacheSize: envOrDefaultInt("SCORING_CACHE_SIZE", 256),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envList("KAFKA_BROKERS"),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "practice.transcript.update"),
			TopicResult:     envOrDefault("KAFKA_TOPIC_RESULT", "practice.attempt.result"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
		Catalog: CatalogConfig{
			SentencesFile: envOrDefault("SENTENCES_FILE", ""),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envOrDefaultFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return def
	}
	return v
}

func envOrDefaultBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
