package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"litreview/internal/activities"
	"litreview/internal/config"
	"litreview/internal/logging"
	"litreview/internal/storage"
	"litreview/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg, "worker")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	a, err := activities.New(cfg, store, logger)
	if err != nil {
		logger.Fatal("build activities", zap.Error(err))
	}
	activities.Register(w, a)

	logger.Info("worker listening",
		zap.String("temporal", cfg.TemporalAddress), zap.String("queue", cfg.TemporalTaskQueue),
		zap.String("llm_providers", cfg.LLMProviders), zap.String("store", cfg.StoreDriver))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
