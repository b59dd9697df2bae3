package config

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voicewise/insights/internal/models"
)

var PostgresDB *gorm.DB

// InitPostgres opens the calls database. Pool sizes come from
// POSTGRES_MAX_OPEN and POSTGRES_MAX_IDLE; queries slower than
// POSTGRES_SLOW_QUERY are logged by gorm.
func InitPostgres() error {
	uri := os.Getenv("POSTGRES_URI")
	if uri == "" {
		return errors.New("POSTGRES_URI environment variable is not set")
	}
	db, err := gorm.Open(postgres.Open(uri), &gorm.Config{
		Logger: logger.New(log.New(os.Stderr, "", log.LstdFlags), logger.Config{
			SlowThreshold:             durationEnv("POSTGRES_SLOW_QUERY", 500*time.Millisecond),
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxIdleConns(intEnv("POSTGRES_MAX_IDLE", 10))
	sqlDB.SetMaxOpenConns(intEnv("POSTGRES_MAX_OPEN", 50))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return err
	}

	PostgresDB = db
	return nil
}

// MigratePostgres enables pgvector and creates the calls and insights tables.
func MigratePostgres(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	if err := db.AutoMigrate(&models.Call{}, &models.Insight{}); err != nil {
		return err
	}
	return db.Exec(`CREATE INDEX IF NOT EXISTS idx_calls_embedding_hnsw
		ON calls USING hnsw (transcript_embedding vector_cosine_ops)`).Error
}
