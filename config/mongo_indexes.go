package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongorepo "github.com/voicewise/insights/internal/repositories/mongo"
)

func MongoDatabase(name string) (*mongo.Database, error) {
	if MongoClient == nil {
		return nil, errors.New("MongoClient is nil; call InitMongo() first")
	}
	if name == "" {
		name = "voicewise"
	}
	return MongoClient.Database(name), nil
}

func EnsureMongoIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	liveCalls := db.Collection(mongorepo.LiveCallCollection)
	_, err := liveCalls.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// TTL index: expire at expires_at (must be Date)
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "call_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_call_id").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "started_at", Value: -1}},
			Options: options.Index().SetName("by_tenant_started"),
		},
	})
	return err
}
