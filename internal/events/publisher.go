// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/metrics"
)

// Publisher publishes live transcript updates and attempt results to
// separate Kafka topics.
type Publisher struct {
	writerTranscript *kafka.Writer
	writerResult     *kafka.Writer
	principal        string
	topicTranscript  string
	topicResult      string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicTranscript string
	TopicResult     string
	Principal       string
	Enabled         bool
}

// New creates a Kafka event publisher. Without brokers, or when disabled, it
// runs in log-only mode and every publish succeeds.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicTranscript: cfg.TopicTranscript,
			topicResult:     cfg.TopicResult,
			enabled:         false,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	// Live transcript updates are high volume and may be dropped by consumers
	writerTranscript := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicTranscript,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	// Attempt results feed progress reports, so wait for all replicas
	writerResult := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicResult,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscript", cfg.TopicTranscript).
		Str("topicResult", cfg.TopicResult).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscript: writerTranscript,
		writerResult:     writerResult,
		principal:        cfg.Principal,
		topicTranscript:  cfg.TopicTranscript,
		topicResult:      cfg.TopicResult,
		enabled:          true,
		metrics:          m,
	}
}

// PublishTranscript publishes a live transcript update. Updates are keyed by
// session so that one practice page's updates stay on one partition, in
// order.
func (p *Publisher) PublishTranscript(ctx context.Context, update models.TranscriptUpdate) error {
	return p.publish(ctx, p.writerTranscript, p.topicTranscript, envelope{
		key:       update.SessionID,
		eventType: update.EventType,
		sessionID: update.SessionID,
		attemptID: update.AttemptID,
		timestamp: update.Timestamp,
	}, update)
}

// PublishResult publishes a scored attempt. Results are keyed by attempt, so
// a redelivered result for the same attempt compacts onto the first one.
func (p *Publisher) PublishResult(ctx context.Context, result models.AttemptResult) error {
	return p.publish(ctx, p.writerResult, p.topicResult, envelope{
		key:       result.AttemptID,
		eventType: result.EventType,
		sessionID: result.SessionID,
		attemptID: result.AttemptID,
		timestamp: result.Timestamp,
	}, result)
}

// envelope carries the routing fields of an event.
type envelope struct {
	key       string
	eventType string
	sessionID string
	attemptID string
	timestamp int64 // unix millis, 0 leaves the time to the writer
}

func (p *Publisher) message(env envelope, payload []byte) kafka.Message {
	msg := kafka.Message{
		Key:   []byte(env.key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(env.eventType)},
			{Key: "sessionId", Value: []byte(env.sessionID)},
			{Key: "attemptId", Value: []byte(env.attemptID)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}
	if env.timestamp > 0 {
		msg.Time = time.UnixMilli(env.timestamp)
	}
	return msg
}

// publish marshals event and writes it to writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic string, env envelope, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Str("attemptId", env.attemptID).Msg("Failed to marshal event")
		p.metrics.RecordKafkaPublish(topic, env.eventType, err, time.Since(start).Seconds())
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", env.key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, env.eventType, nil, time.Since(start).Seconds())
		return nil
	}

	if err := writer.WriteMessages(ctx, p.message(env, payload)); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", env.key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, env.eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, env.eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscript != nil {
		if e := p.writerTranscript.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcript writer")
			err = e
		}
	}
	if p.writerResult != nil {
		if e := p.writerResult.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing result writer")
			err = e
		}
	}
	return err
}
