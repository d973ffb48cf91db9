package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/Mohamed39200Lo/Coffee/internal/config"
	"github.com/Mohamed39200Lo/Coffee/internal/conversation"
	"github.com/Mohamed39200Lo/Coffee/internal/docstore"
	"github.com/Mohamed39200Lo/Coffee/internal/events"
	"github.com/Mohamed39200Lo/Coffee/internal/messaging"
	"github.com/Mohamed39200Lo/Coffee/internal/notify"
	"github.com/Mohamed39200Lo/Coffee/internal/reviews"
	"github.com/Mohamed39200Lo/Coffee/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true))
	assert.Nil(t, BuildRedisClient(context.Background(), nil, nil, false))
}

func TestBuildRedisClientVerifiesPing(t *testing.T) {
	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.Discard(), true))
}

func TestBuildPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, BuildPostgresPool(context.Background(), "", logging.Discard()))
}

func TestBuildDocStore(t *testing.T) {
	logger := logging.Discard()

	store, err := BuildDocStore(&appconfig.Config{StoreBackend: "memory"}, nil, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &docstore.MemoryStore{}, store)

	_, err = BuildDocStore(&appconfig.Config{StoreBackend: "redis"}, nil, nil, logger)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store, err = BuildDocStore(&appconfig.Config{StoreBackend: "redis", StoreKeyPrefix: "coffee:doc:"}, client, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &docstore.RedisStore{}, store)

	_, err = BuildDocStore(&appconfig.Config{StoreBackend: "s3"}, nil, nil, logger)
	assert.Error(t, err)

	_, err = BuildDocStore(&appconfig.Config{StoreBackend: "gist"}, nil, nil, logger)
	assert.Error(t, err, "gist needs an id")

	store, err = BuildDocStore(&appconfig.Config{StoreBackend: "gist", GistID: "abc"}, nil, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &docstore.GistStore{}, store)

	_, err = BuildDocStore(&appconfig.Config{StoreBackend: "floppy"}, nil, nil, logger)
	assert.Error(t, err)

	_, err = BuildDocStore(nil, nil, nil, logger)
	assert.Error(t, err)
}

func TestBuildReviewStoreFallsBackToMemory(t *testing.T) {
	store := BuildReviewStore(&appconfig.Config{}, nil, logging.Discard())
	assert.IsType(t, &reviews.MemoryStore{}, store)
}

func TestBuildProcessedStorePrefersRedis(t *testing.T) {
	cfg := &appconfig.Config{DedupeTTL: time.Hour}
	assert.IsType(t, &events.MemoryProcessedStore{}, BuildProcessedStore(cfg, nil, nil))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	assert.IsType(t, &events.RedisProcessedStore{}, BuildProcessedStore(cfg, client, nil))
}

func TestBuildGatewayClient(t *testing.T) {
	client, err := BuildGatewayClient(&appconfig.Config{}, logging.Discard())
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = BuildGatewayClient(&appconfig.Config{GatewayBaseURL: "https://gw.example", GatewayAPIKey: "k"}, logging.Discard())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestBuildOutboundSenderWithoutGatewayLogs(t *testing.T) {
	sender := BuildOutboundSender(nil, nil, nil, logging.Discard())
	assert.IsType(t, &messaging.LogSender{}, sender)
	require.NoError(t, sender.Send(context.Background(), "966500000001", messaging.OutboundMessage{Text: "hi"}))
}

func TestBuildEmailSenderFallsBackToStub(t *testing.T) {
	sender := BuildEmailSender(&appconfig.Config{}, nil, logging.Discard())
	assert.IsType(t, &notify.LogEmailSender{}, sender)

	sender = BuildEmailSender(&appconfig.Config{SendGridAPIKey: "SG.key", SendGridFromEmail: "bot@example.com"}, nil, logging.Discard())
	assert.IsType(t, &notify.SendGridSender{}, sender)
}

func TestBuildQueue(t *testing.T) {
	q, err := BuildQueue(&appconfig.Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &conversation.MemoryQueue{}, q)

	_, err = BuildQueue(&appconfig.Config{QueueBackend: "sqs"}, nil)
	assert.Error(t, err)

	_, err = BuildQueue(&appconfig.Config{QueueBackend: "kafka"}, nil)
	assert.Error(t, err)
}
