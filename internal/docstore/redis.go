package docstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RedisStore keeps each document as a single string value.
type RedisStore struct {
	client *redis.Client
	prefix string
	tracer trace.Tracer
}

// NewRedisStore wraps an existing client. prefix is prepended to every key.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		tracer: otel.Tracer("coffee.internal.docstore.redis"),
	}
}

func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "docstore.redis.read", trace.WithAttributes(attribute.String("doc.key", key)))
	defer span.End()

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, readErr(key, err)
	}
	return data, nil
}

func (s *RedisStore) Write(ctx context.Context, key string, data []byte) error {
	ctx, span := s.tracer.Start(ctx, "docstore.redis.write", trace.WithAttributes(attribute.String("doc.key", key)))
	defer span.End()

	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		span.RecordError(err)
		return writeErr(key, err)
	}
	return nil
}
