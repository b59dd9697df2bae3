package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/voicewise/insights/config"
	"github.com/voicewise/insights/internal/anomaly"
	"github.com/voicewise/insights/internal/api/handlers"
	"github.com/voicewise/insights/internal/api/middleware"
	"github.com/voicewise/insights/internal/api/routes"
	"github.com/voicewise/insights/internal/cache"
	"github.com/voicewise/insights/internal/logger"
	"github.com/voicewise/insights/internal/models"
	"github.com/voicewise/insights/internal/providers/embedding"
	"github.com/voicewise/insights/internal/providers/llm"
	mongorepo "github.com/voicewise/insights/internal/repositories/mongo"
	"github.com/voicewise/insights/internal/repositories/postgres"
	"github.com/voicewise/insights/internal/retrieval"
	"github.com/voicewise/insights/internal/services"
	"github.com/voicewise/insights/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()
	s := config.LoadSettings()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.MigratePostgres(config.PostgresDB); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration error")
	}
	log.Info("PostgreSQL connected")

	layer := newCacheLayer(s, log)
	archive := newLiveArchive(s, log)

	var embedder retrieval.Embedder
	if s.EmbeddingURL != "" {
		embedder = embedding.NewResilient(embedding.NewHTTPProvider(embedding.HTTPConfig{
			URL:    s.EmbeddingURL,
			Model:  s.EmbeddingModel,
			APIKey: s.EmbeddingAPIKey,
			Dim:    s.EmbeddingDim,
		}), log)
	} else {
		log.Warn("EMBEDDING_URL not set; similar-call retrieval disabled")
	}

	gemini, err := llm.NewVertexGemini(ctx, llm.VertexConfig{
		Project:  s.VertexProject,
		Location: s.VertexLocation,
		Model:    s.VertexModel,
	})
	if err != nil {
		log.WithError(err).Fatal("Vertex AI init error")
	}
	defer gemini.Close()
	model := llm.NewResilient(llm.NewInsightClient(gemini), log)

	calls := postgres.NewCallRepo(config.PostgresDB)
	records := postgres.NewRecordRepo(config.PostgresDB)

	insights := services.NewInsightService(services.InsightDeps{
		Calls:     calls,
		Retrieval: retrieval.NewService(records, embedder, retrieval.DefaultOptions(), log),
		Embedder:  embedder,
		Extractor: model,
		Scorer:    anomaly.NewScorer(s.Anomaly, log),
		Cache:     layer,
		Logger:    log,
		TopK:      s.TopK,
	})

	queue := &workers.LiveAnalysisQueue{
		State:    layer,
		Analyzer: model,
		Logger:   log,
		Capacity: s.LiveQueueCap,
	}
	if archive != nil {
		queue.OnAnalyzed = func(ctx context.Context, st *models.LiveCallState) {
			_ = archive.Save(ctx, st)
		}
	}
	if err := queue.Start(ctx); err != nil {
		log.WithError(err).Fatal("live analysis queue start error")
	}

	live := services.NewLiveCallService(layer, queue, archive, log)
	dashboard := services.NewDashboardService(records, calls, layer, log)
	search := services.NewSearchService(services.SearchDeps{
		Repo:     postgres.NewSearchRepo(config.PostgresDB),
		Embedder: embedder,
		Expander: model,
		Cache:    layer,
		Logger:   log,
	})

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log, "/ping", "/metrics"))
	routes.RegisterRoutes(r, routes.Deps{
		LiveCall:  handlers.NewLiveCallHandler(live, insights, queue),
		Dashboard: handlers.NewDashboardHandler(dashboard),
		Search:    handlers.NewSearchHandler(search),
		Admin:     handlers.NewAdminHandler(layer),
		JWTSecret: s.WebhookJWTSecret,
	})

	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", s.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	queue.Stop(shutdownCtx)
}

func newCacheLayer(s config.Settings, log *logrus.Logger) *cache.Layer {
	if s.CacheBackend != config.CacheRedis {
		return cache.NewMemoryLayer(nil, log)
	}
	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")
	return cache.NewRedisLayer(cache.NewRedisCache(config.RedisClient), nil, log)
}

func newLiveArchive(s config.Settings, log *logrus.Logger) mongorepo.LiveCallRepository {
	if !s.LiveArchive {
		return nil
	}
	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	db, err := config.MongoDatabase(s.MongoDB)
	if err != nil {
		log.WithError(err).Fatal("MongoDB database error")
	}
	if err := config.EnsureMongoIndexes(db); err != nil {
		log.WithError(err).Warn("MongoDB index creation failed")
	}
	log.Info("MongoDB connected")
	return mongorepo.NewLiveCallRepo(db, s.ArchiveTTL)
}
