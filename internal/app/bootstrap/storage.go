package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/Mohamed39200Lo/Coffee/internal/config"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/internal/events"
	"github.com/Mohamed39200Lo/Coffee/internal/reviews"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

// BuildDocStore picks the durable document backend named by STORE_BACKEND.
// s3Client is only used for the "s3" backend and may be nil otherwise.
func BuildDocStore(cfg *appconfig.Config, redisClient *redis.Client, s3Client docstore.S3API, logger *logging.Logger) (docstore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreBackend {
	case "", "memory":
		logger.Warn("using in-memory document store; orders and menu are lost on restart")
		return docstore.NewMemoryStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: redis store requires REDIS_ADDR")
		}
		return docstore.NewRedisStore(redisClient, cfg.StoreKeyPrefix), nil
	case "s3":
		if s3Client == nil || cfg.S3Bucket == "" {
			return nil, fmt.Errorf("bootstrap: s3 store requires S3_BUCKET")
		}
		return docstore.NewS3Store(s3Client, cfg.S3Bucket, cfg.StoreKeyPrefix), nil
	case "gist":
		store, err := docstore.NewGistStore(docstore.GistConfig{
			BaseURL: cfg.GistBaseURL,
			GistID:  cfg.GistID,
			Token:   cfg.GistToken,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gist store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// BuildReviewStore returns the DynamoDB store when REVIEWS_TABLE is set.
func BuildReviewStore(cfg *appconfig.Config, dynamo reviews.DynamoAPI, logger *logging.Logger) reviews.Store {
	if cfg != nil && cfg.ReviewsTable != "" && dynamo != nil {
		return reviews.NewDynamoStore(dynamo, cfg.ReviewsTable, logger)
	}
	return reviews.NewMemoryStore()
}

// ProcessedStore remembers which inbound events were already handled.
type ProcessedStore interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// BuildProcessedStore prefers Redis, then Postgres, then process memory.
func BuildProcessedStore(cfg *appconfig.Config, redisClient *redis.Client, pool *pgxpool.Pool) ProcessedStore {
	ttl := cfg.DedupeTTL
	switch {
	case redisClient != nil:
		return events.NewRedisProcessedStore(redisClient, cfg.StoreKeyPrefix, ttl)
	case pool != nil:
		return events.NewPostgresProcessedStore(pool, ttl)
	default:
		return events.NewMemoryProcessedStore(ttl)
	}
}
