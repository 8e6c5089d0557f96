package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health/grpc_health_v1"

	grpcapi "pronunciation-practice-service/internal/api/grpc"
	"pronunciation-practice-service/internal/app"
	"pronunciation-practice-service/internal/config"
	"pronunciation-practice-service/internal/events"
	httpapi "pronunciation-practice-service/internal/http"
	"pronunciation-practice-service/internal/observability"
	"pronunciation-practice-service/internal/observability/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logging.Init(logCfg)

	// Create Kafka publisher with separate topics for transcript updates and results
	publisher := events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicResult:     cfg.Kafka.TopicResult,
		Principal:       cfg.Kafka.Principal,
	})
	defer publisher.Close()

	application, err := app.New(cfg, app.WithPublisher(publisher))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	grpcServer, healthServer := grpcapi.NewServer(application)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	obsServer := observability.NewServer(cfg.Service.MetricsAddr, application.Ready)

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC server started")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(obsServer.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down servers")

		application.Shutdown()
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
		if err := obsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Observability server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Shutdown complete")
}
