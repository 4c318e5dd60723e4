package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"fintrack/internal/config"
	"fintrack/internal/corrections"
	"fintrack/internal/logger"
	"fintrack/internal/mlclient"
)

// corrections-worker drains the correction queue filled by the API in AMQP
// mode and submits each correction to the ML service.
func main() {
	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(appConfig.Env, appConfig.LogLevel)
	defer logger.Sync()
	log := logger.Get()

	if appConfig.AMQPURL == "" {
		return errors.New("AMQP_URL is required")
	}

	mlClient := mlclient.NewClient(appConfig.MLServiceURL, &http.Client{Timeout: appConfig.MLTimeout})
	forwarder := corrections.NewForwarder(corrections.NewHTTPSink(mlClient), appConfig.CorrectionTimeout)

	queue, err := corrections.NewAMQPSink(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.AMQPQueue)
	if err != nil {
		return fmt.Errorf("failed to connect correction broker: %w", err)
	}
	defer func() { _ = queue.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("Starting corrections worker", "queue", appConfig.AMQPQueue, "ml_service", appConfig.MLServiceURL)
	if err := queue.Consume(ctx, forwarder, appConfig.CorrectionWorkers); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("correction consumption stopped: %w", err)
	}

	log.Info("Corrections worker stopped")
	return nil
}
