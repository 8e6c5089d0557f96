package practice

import (
	"context"
	"fmt"

	"pronunciation-practice-service/internal/config"
	"pronunciation-practice-service/internal/service/stt"
	"pronunciation-practice-service/internal/service/stt/google"
	"pronunciation-practice-service/internal/service/stt/mock"
)

// AdapterFactory opens a fresh recognizer for each attempt.
type AdapterFactory func(ctx context.Context) (stt.Adapter, error)

// NewAdapterFactory returns the factory for the configured provider.
func NewAdapterFactory(cfg config.STTConfig) (AdapterFactory, error) {
	switch cfg.Provider {
	case "", "mock":
		return func(ctx context.Context) (stt.Adapter, error) {
			return mock.New(), nil
		}, nil
	case "google":
		gcfg := google.Config{
			LanguageCode:   cfg.LanguageCode,
			SampleRateHz:   int32(cfg.SampleRateHz),
			InterimResults: cfg.InterimResults,
			AudioEncoding:  cfg.AudioEncoding,
			WordConfidence: cfg.WordConfidence,
		}
		return func(ctx context.Context) (stt.Adapter, error) {
			return google.New(ctx, gcfg)
		}, nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}
}
