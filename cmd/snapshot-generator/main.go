package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/config"
	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/internal/platform/queue"
	"github.com/marketfold/go-targeting-service/internal/platform/storage"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

// snapshot is the document edge SDKs bootstrap from: every active
// definition, serialized in one object.
type snapshot struct {
	Environment string             `json:"environment"`
	GeneratedAt time.Time          `json:"generated_at"`
	Flags       []types.Flag       `json:"flags"`
	Segments    []types.Segment    `json:"segments"`
	Experiments []types.Experiment `json:"experiments"`
}

type snapshotMeta struct {
	Path        string    `json:"path"`
	Environment string    `json:"environment"`
	CreatedAt   time.Time `json:"created_at"`
}

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

	snapshots, err := storage.NewSnapshotStore(cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey,
		cfg.MinIO.UseSSL, cfg.MinIO.SnapshotBucket)
	if err != nil {
		logger.Fatal("failed to connect to minio", zap.Error(err))
	}
	if err := snapshots.EnsureBucket(ctx); err != nil {
		logger.Fatal("failed to ensure snapshot bucket", zap.Error(err))
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SnapshotsTopic)
	defer producer.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("snapshot generator started", zap.Duration("interval", cfg.SnapshotInterval))

	// One snapshot at startup, then on the interval.
	generate(ctx, cfg, repo, snapshots, producer, logger)

	ticker := time.NewTicker(cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("snapshot generator stopped")
			return
		case <-ticker.C:
			generate(ctx, cfg, repo, snapshots, producer, logger)
		}
	}
}

func generate(ctx context.Context, cfg config.Config, repo *database.Repository, snapshots *storage.SnapshotStore, producer *queue.Producer, logger *zap.Logger) {
	flags, err := repo.ListFlags(ctx, cfg.Environment, true)
	if err != nil {
		logger.Error("failed to list flags for snapshot", zap.Error(err))
		return
	}
	segments, err := repo.ListSegments(ctx)
	if err != nil {
		logger.Error("failed to list segments for snapshot", zap.Error(err))
		return
	}
	experiments, err := repo.ListExperiments(ctx, types.StatusRunning, 200, 0)
	if err != nil {
		logger.Error("failed to list experiments for snapshot", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	doc := snapshot{
		Environment: cfg.Environment,
		GeneratedAt: now,
		Flags:       flags,
		Segments:    segments,
		Experiments: experiments,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		logger.Error("failed to marshal snapshot", zap.Error(err))
		return
	}

	objectName, err := snapshots.PutSnapshot(ctx, now, data)
	if err != nil {
		logger.Error("failed to upload snapshot", zap.Error(err))
		return
	}

	meta := snapshotMeta{Path: objectName, Environment: cfg.Environment, CreatedAt: now}
	metaData, err := json.Marshal(meta)
	if err != nil {
		logger.Error("failed to marshal snapshot metadata", zap.Error(err))
		return
	}
	if err := producer.Publish(ctx, []byte(objectName), metaData); err != nil {
		logger.Error("failed to publish snapshot metadata", zap.Error(err))
		return
	}

	logger.Info("snapshot generated",
		zap.String("object", objectName),
		zap.Int("flags", len(flags)),
		zap.Int("segments", len(segments)),
		zap.Int("experiments", len(experiments)))
}
