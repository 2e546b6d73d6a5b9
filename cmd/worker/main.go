package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/bootstrap"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/broker"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/observability"
	"github.com/Ahnjunghyeon/test-login-sub000/internal/worker"
	"github.com/Ahnjunghyeon/test-login-sub000/pkg/config"
)

// The worker consumes notification events published by API instances running
// with NOTIFY_TRANSPORT=kafka and writes them into the recipients' documents.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel)
	observability.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("closing backends", "error", err)
		}
	}()

	reader := broker.NewKafkaReader(broker.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		GroupID: cfg.KafkaGroupID,
	})

	w := worker.New(reader, rt.Notifications, cfg.WorkerCount, 0, logger)
	w.Run(ctx)
	if err := w.Close(); err != nil {
		logger.Error("closing kafka reader", "error", err)
	}
	logger.Info("worker stopped")
}
