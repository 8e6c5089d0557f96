// Result viewer tails the practice result topic and prints one line per
// scored attempt. Pass -transcripts to also follow live transcript updates.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/logging"
)

func main() {
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicResult := flag.String("topic-result", "practice.attempt.result", "Attempt result topic")
	topicTranscript := flag.String("topic-transcript", "practice.transcript.update", "Transcript update topic")
	transcripts := flag.Bool("transcripts", false, "Also print transcript updates")
	since := flag.Duration("since", time.Hour, "Replay messages newer than this")
	flag.Parse()

	cfg := logging.DefaultConfig()
	cfg.Format = "console"
	logging.Init(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	brokerList := strings.Split(*brokers, ",")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		consume(ctx, brokerList, *topicResult, *since, printResult)
	}()
	if *transcripts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consume(ctx, brokerList, *topicTranscript, *since, printTranscript)
		}()
	}

	log.Info().Strs("brokers", brokerList).Msg("Result viewer started")
	wg.Wait()
}

func consume(ctx context.Context, brokers []string, topic string, since time.Duration, handle func([]byte)) {
	// Partition reader without a consumer group; the topics are single-partition in dev.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Could not seek, reading from the current offset")
	}
	log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}
		handle(msg.Value)
	}
}

func printResult(data []byte) {
	var ev models.AttemptResult
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn().Err(err).Msg("Skipping undecodable result")
		return
	}
	log.Info().
		Str("session", ev.SessionID).
		Str("attempt", ev.AttemptID).
		Float64("accuracy", ev.Alignment.Accuracy).
		Str("reference", ev.Reference).
		Str("heard", ev.Transcript).
		Strs("weakWords", ev.WeakWords).
		Str("hint", ev.Hint).
		Msg("Attempt result")
}

func printTranscript(data []byte) {
	var ev models.TranscriptUpdate
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn().Err(err).Msg("Skipping undecodable transcript update")
		return
	}
	log.Info().
		Str("session", ev.SessionID).
		Str("committed", ev.CommittedText).
		Str("pending", ev.PendingPartialText).
		Msg("Transcript update")
}
