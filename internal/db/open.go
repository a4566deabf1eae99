package db

import (
	"context"
	"fmt"

	"ascii-arena/internal/config"
	"ascii-arena/internal/store"

	"github.com/rs/zerolog/log"
)

// Open connects the storage driver selected in cfg.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		return store.NewMemory(), nil

	case "mongodb":
		mongodb, err := NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			return nil, err
		}
		log.Info().Str("database", cfg.MongoDB.Database).Msg("connected to MongoDB")
		return NewMongoStore(mongodb), nil

	case "postgres":
		pg, err := NewPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		log.Info().Msg("connected to PostgreSQL")
		return pg, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
