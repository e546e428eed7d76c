package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"litreview/internal/api"
	"litreview/internal/config"
	"litreview/internal/logging"
	"litreview/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg, "api")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer store.Close()

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
	if err != nil {
		logger.Fatal("dial temporal", zap.Error(err))
	}
	defer tc.Close()

	h := api.NewServer(cfg, store, tc, logger)
	logger.Info("api listening", zap.String("addr", cfg.APIAddr), zap.String("store", cfg.StoreDriver))
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}
