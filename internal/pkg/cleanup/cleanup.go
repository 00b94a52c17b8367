package cleanup

import (
	"context"
	"net/http"
	"time"

	"shg-finance/internal/pkg/db/mongo"
	"shg-finance/internal/pkg/db/redis"
	"shg-finance/internal/pkg/gcs"
	"shg-finance/internal/pkg/kafka"
	"shg-finance/internal/pkg/log_messages"
	"shg-finance/internal/pkg/logger"
)

// CleanupResources releases everything the process opened. The HTTP server goes first so in-flight
// requests can still reach the stores and publishers while draining.
func CleanupResources(
	ctx context.Context,
	server *http.Server,
	pubsubPublisher interface{ Close() error },
	kafkaProducer *kafka.KafkaProducer,
	mongoClient *mongo.MongoClient,
	redisClient *redis.RedisClient,
	gcsClient gcs.GcsInterface,
	otelShutdown func(context.Context) error,
) {
	logger.CtxInfo(ctx, log_messages.CleanupStarted)

	cleanupHTTPServer(server, ctx)
	cleanupPubSubResource(pubsubPublisher, "PubSub publisher", ctx)
	cleanupKafkaResource(kafkaProducer, ctx)
	cleanupMongoResource(mongoClient, ctx)
	cleanupRedisResource(redisClient, ctx)
	cleanupGCSResource(gcsClient, ctx)
	cleanupTracing(otelShutdown, ctx)

	logger.CtxInfo(ctx, log_messages.CleanupCompleted)
}

func cleanupPubSubResource(resource interface{ Close() error }, resourceName string, ctx context.Context) {
	if resource == nil {
		return
	}
	if err := resource.Close(); err != nil {
		logger.CtxError(ctx, "Failed to close "+resourceName, err)
	} else {
		logger.CtxInfo(ctx, resourceName+" closed successfully")
	}
}

func cleanupKafkaResource(kafkaProducer *kafka.KafkaProducer, ctx context.Context) {
	if kafkaProducer == nil {
		return
	}
	if err := kafkaProducer.Close(); err != nil {
		logger.CtxError(ctx, "Failed to close Kafka producer", err)
	} else {
		logger.CtxInfo(ctx, "Kafka producer closed successfully")
	}
}

func cleanupMongoResource(mongoClient *mongo.MongoClient, ctx context.Context) {
	if mongoClient == nil || mongoClient.Client == nil {
		return
	}
	mongoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Client.Disconnect(mongoCtx); err != nil {
		logger.CtxError(mongoCtx, "Failed to disconnect MongoDB client", err)
	} else {
		logger.CtxInfo(mongoCtx, "MongoDB client disconnected successfully")
	}
}

func cleanupRedisResource(redisClient *redis.RedisClient, ctx context.Context) {
	if redisClient == nil || redisClient.Client == nil {
		return
	}
	if err := redis.Disconnect(redisClient.Client); err != nil {
		logger.CtxError(ctx, "Failed to close Redis client", err)
	} else {
		logger.CtxInfo(ctx, "Redis client closed successfully")
	}
}

func cleanupHTTPServer(server *http.Server, ctx context.Context) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.CtxError(ctx, "Failed to shutdown HTTP server", err)
	} else {
		logger.CtxInfo(ctx, "HTTP server shutdown successfully")
	}
}

func cleanupGCSResource(gcsClient gcs.GcsInterface, ctx context.Context) {
	if gcsClient == nil {
		return
	}
	gcsClient.Close(ctx)
}

func cleanupTracing(shutdown func(context.Context) error, ctx context.Context) {
	if shutdown == nil {
		return
	}
	if err := shutdown(ctx); err != nil {
		logger.CtxError(ctx, "Failed to flush traces", err)
	}
}
