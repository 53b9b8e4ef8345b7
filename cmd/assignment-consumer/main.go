package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/config"
	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/internal/platform/queue"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

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

	session, err := database.NewCassandraSession(cfg.Cassandra.Hosts, cfg.Cassandra.Keyspace)
	if err != nil {
		logger.Fatal("failed to connect to cassandra", zap.Error(err))
	}
	sink := database.NewAssignmentSink(session)
	defer sink.Close()

	reader := queue.NewReader(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroupID, cfg.Kafka.AssignmentsTopic)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("assignment consumer started",
		zap.String("topic", cfg.Kafka.AssignmentsTopic),
		zap.String("group_id", cfg.Kafka.ConsumerGroupID))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error("failed to read message", zap.Error(err))
			continue
		}

		var event types.AssignmentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Warn("skipping malformed assignment event",
				zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}

		if err := sink.InsertAssignmentEvent(event); err != nil {
			logger.Error("failed to sink assignment event",
				zap.String("experiment_key", event.ExperimentKey),
				zap.String("subject_id", event.SubjectID), zap.Error(err))
			continue
		}

		logger.Info("sank assignment event",
			zap.String("experiment_key", event.ExperimentKey),
			zap.String("variant_key", event.VariantKey))
	}

	logger.Info("assignment consumer stopped")
}
