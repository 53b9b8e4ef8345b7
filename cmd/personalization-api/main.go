package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/config"
	"github.com/marketfold/go-targeting-service/internal/delivery"
	"github.com/marketfold/go-targeting-service/internal/platform/cache"
	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/internal/service"
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

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres.DSN())
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	repo := database.NewRepository(pool, cfg.Kafka.DefinitionsTopic, cfg.Kafka.AssignmentsTopic)

	// The API stays up without Redis; definition reads just skip the cache.
	var definitionCache cache.Cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("redis unavailable, serving without definition cache", zap.Error(err))
	} else {
		definitionCache = redisCache
		defer redisCache.Close()
	}

	contexts := service.NewContextBuilder(repo, repo, logger)
	flagService := service.NewFlagService(repo, definitionCache, contexts, cfg.Environment, cfg.FlagCacheTTL, logger)
	segmentService := service.NewSegmentService(repo, logger)
	ruleService := service.NewRuleService(repo, logger)
	experimentService := service.NewExperimentService(repo, definitionCache, contexts, cfg.ExperimentCacheTTL, logger)

	router := delivery.NewRouter(
		delivery.NewFlagHandler(flagService, logger),
		delivery.NewSegmentHandler(segmentService, logger),
		delivery.NewRuleHandler(ruleService, logger),
		delivery.NewExperimentHandler(experimentService, logger),
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting personalization API", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("personalization API stopped")
}
