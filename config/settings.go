package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/voicewise/insights/internal/anomaly"
	"github.com/voicewise/insights/internal/models"
)

type CacheBackend string

const (
	CacheMemory CacheBackend = "memory"
	CacheRedis  CacheBackend = "redis"
)

// Settings is the process configuration read from the environment.
type Settings struct {
	Port             string
	CacheBackend     CacheBackend
	LiveArchive      bool
	MongoDB          string
	ArchiveTTL       time.Duration
	EmbeddingURL     string
	EmbeddingModel   string
	EmbeddingAPIKey  string
	EmbeddingDim     int
	VertexProject    string
	VertexLocation   string
	VertexModel      string
	LiveQueueCap     int
	WebhookJWTSecret string
	TopK             int
	Anomaly          anomaly.Config
}

func LoadSettings() Settings {
	s := Settings{
		Port:             getenv("PORT", "8080"),
		CacheBackend:     CacheBackend(strings.ToLower(getenv("CACHE_BACKEND", string(CacheMemory)))),
		LiveArchive:      strings.EqualFold(os.Getenv("LIVE_STATE_ARCHIVE"), "mongo"),
		MongoDB:          getenv("MONGO_DB", "voicewise"),
		ArchiveTTL:       durationEnv("LIVE_ARCHIVE_TTL", 7*24*time.Hour),
		EmbeddingURL:     os.Getenv("EMBEDDING_URL"),
		EmbeddingModel:   getenv("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		EmbeddingAPIKey:  os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingDim:     intEnv("EMBEDDING_DIM", models.EmbeddingDim),
		VertexProject:    os.Getenv("VERTEX_PROJECT"),
		VertexLocation:   getenv("VERTEX_LOCATION", "us-central1"),
		VertexModel:      os.Getenv("VERTEX_MODEL"),
		LiveQueueCap:     intEnv("LIVE_QUEUE_CAPACITY", 1024),
		WebhookJWTSecret: os.Getenv("WEBHOOK_JWT_SECRET"),
		TopK:             intEnv("RETRIEVAL_TOP_K", 5),
	}
	if s.CacheBackend != CacheRedis {
		s.CacheBackend = CacheMemory
	}

	a := anomaly.DefaultConfig()
	a.TauSimilar = floatEnv("ANOMALY_TAU_SIMILAR", a.TauSimilar)
	a.TauTenant = floatEnv("ANOMALY_TAU_TENANT", a.TauTenant)
	a.Weights.Rating = floatEnv("ANOMALY_WEIGHT_RATING", a.Weights.Rating)
	a.Weights.SentimentConflict = floatEnv("ANOMALY_WEIGHT_SENTIMENT_CONFLICT", a.Weights.SentimentConflict)
	a.Weights.Pattern = floatEnv("ANOMALY_WEIGHT_PATTERN", a.Weights.Pattern)
	a.Weights.Confidence = floatEnv("ANOMALY_WEIGHT_CONFIDENCE", a.Weights.Confidence)
	a.Weights.Churn = floatEnv("ANOMALY_WEIGHT_CHURN", a.Weights.Churn)
	a.Weights.Revenue = floatEnv("ANOMALY_WEIGHT_REVENUE", a.Weights.Revenue)
	s.Anomaly = a
	return s
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func floatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
