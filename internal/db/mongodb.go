package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(uri, database string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(200).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := &MongoDB{
		Client:   client,
		Database: client.Database(database),
	}

	// Create indexes in the background (non-blocking)
	go db.ensureIndexes()

	return db, nil
}

// ensureIndexes creates all required indexes. Called once on startup.
func (m *MongoDB) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			"models",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "modelName", Value: 1}, {Key: "modelConfig", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "eloRating", Value: -1}}},
			},
		},
		{
			"ascii_outputs",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "promptId", Value: 1}}},
				{Keys: bson.D{{Key: "modelId", Value: 1}}},
			},
		},
		{
			"votes",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "winnerModelId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "loserModelId", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
		{
			"audit_log",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(90 * 24 * 3600)}, // 90-day retention
				{Keys: bson.D{{Key: "eventType", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
	}

	for _, idx := range indexes {
		coll := m.Database.Collection(idx.collection)
		_, err := coll.Indexes().CreateMany(ctx, idx.models)
		if err != nil {
			log.Warn().Err(err).Str("collection", idx.collection).Msg("failed to create indexes")
		}
	}

	log.Info().Msg("database indexes ensured")
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Models() *mongo.Collection {
	return m.Database.Collection("models")
}

func (m *MongoDB) Prompts() *mongo.Collection {
	return m.Database.Collection("prompts")
}

func (m *MongoDB) Outputs() *mongo.Collection {
	return m.Database.Collection("ascii_outputs")
}

func (m *MongoDB) Votes() *mongo.Collection {
	return m.Database.Collection("votes")
}

func (m *MongoDB) AuditLog() *mongo.Collection {
	return m.Database.Collection("audit_log")
}

func (m *MongoDB) FeedEvents() *mongo.Collection {
	return m.Database.Collection("feed_events")
}
