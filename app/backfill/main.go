package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/config"
	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/providers/embedding"
	"github.com/voicewise/insights/internal/repositories/postgres"
	"github.com/voicewise/insights/internal/services"
)

func main() {
	batch := flag.Int("batch", 50, "calls per batch")
	limit := flag.Int("limit", 0, "maximum calls to process, 0 for all")
	flag.Parse()

	_ = godotenv.Load()
	log := logger.New()
	s := config.LoadSettings()
	if s.EmbeddingURL == "" {
		log.Fatal("EMBEDDING_URL is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}

	embedder := embedding.NewHTTPProvider(embedding.HTTPConfig{
		URL:    s.EmbeddingURL,
		Model:  s.EmbeddingModel,
		APIKey: s.EmbeddingAPIKey,
		Dim:    s.EmbeddingDim,
	})
	svc := services.NewBackfillService(postgres.NewCallRepo(config.PostgresDB), embedder, log)

	rep, err := svc.Run(ctx, *batch, *limit)
	entry := log.WithFields(logrus.Fields{"scanned": rep.Scanned, "succeeded": rep.Succeeded, "failed": rep.Failed})
	if err != nil {
		entry.WithError(err).Fatal("backfill aborted")
	}
	entry.Info("backfill finished")
}
