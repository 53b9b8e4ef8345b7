package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/config"
	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/internal/platform/queue"
)

const batchSize = 10

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := database.NewRepository(pool, cfg.Kafka.DefinitionsTopic, cfg.Kafka.AssignmentsTopic)

	producer := queue.NewMultiProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("outbox worker started", zap.Duration("poll_interval", cfg.OutboxPollInterval))

	ticker := time.NewTicker(cfg.OutboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox worker stopped")
			return
		case <-ticker.C:
			processBatch(ctx, repo, producer, logger)
		}
	}
}

// processBatch drains up to one batch of pending events. Each event is
// claimed with a compare-and-set before publishing so concurrent workers
// never publish the same event twice; a failed publish releases the claim
// for retry on a later tick.
func processBatch(ctx context.Context, repo *database.Repository, producer *queue.MultiProducer, logger *zap.Logger) {
	events, err := repo.FetchPendingOutbox(ctx, batchSize)
	if err != nil {
		logger.Error("failed to fetch pending outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		locked, err := repo.LockOutboxEvent(ctx, event.EventID)
		if err != nil {
			logger.Error("failed to lock outbox event",
				zap.String("event_id", event.EventID.String()), zap.Error(err))
			continue
		}
		if !locked {
			continue
		}

		if err := producer.Publish(ctx, event.Topic, []byte(event.AggregateID), event.Payload); err != nil {
			logger.Error("failed to publish outbox event, releasing",
				zap.String("event_id", event.EventID.String()),
				zap.String("topic", event.Topic), zap.Error(err))
			if releaseErr := repo.ReleaseOutboxEvent(ctx, event.EventID); releaseErr != nil {
				logger.Error("failed to release outbox event",
					zap.String("event_id", event.EventID.String()), zap.Error(releaseErr))
			}
			continue
		}

		if err := repo.DeleteOutboxEvent(ctx, event.EventID); err != nil {
			// The event was published; a failed delete means it may be
			// published again. Consumers must tolerate duplicates.
			logger.Error("failed to delete published outbox event",
				zap.String("event_id", event.EventID.String()), zap.Error(err))
			continue
		}

		logger.Info("published outbox event",
			zap.String("event_id", event.EventID.String()),
			zap.String("topic", event.Topic),
			zap.String("aggregate_id", event.AggregateID))
	}
}
