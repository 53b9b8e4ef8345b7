package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/platform/cache"
	"github.com/marketfold/go-targeting-service/pkg/targeting"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

// FlagStore is the persistence surface the flag service needs.
type FlagStore interface {
	CreateFlag(ctx context.Context, f types.Flag) error
	GetFlag(ctx context.Context, key, environment string) (types.Flag, error)
	ListFlags(ctx context.Context, environment string, activeOnly bool) ([]types.Flag, error)
	UpdateFlag(ctx context.Context, f types.Flag) error
	DeleteFlag(ctx context.Context, key, environment string) error
}

// FlagService evaluates and manages feature flags for one environment.
// Definition reads go through a TTL cache; evaluation itself is never cached.
type FlagService struct {
	store       FlagStore
	cache       cache.Cache
	contexts    *ContextBuilder
	environment string
	cacheTTL    time.Duration
	logger      *zap.Logger
}

func NewFlagService(store FlagStore, c cache.Cache, contexts *ContextBuilder, environment string, cacheTTL time.Duration, logger *zap.Logger) *FlagService {
	return &FlagService{
		store:       store,
		cache:       c,
		contexts:    contexts,
		environment: environment,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func (s *FlagService) cacheKey(flagKey string) string {
	return "flag:" + s.environment + ":" + flagKey
}

func (s *FlagService) getFlag(ctx context.Context, key string) (types.Flag, error) {
	if s.cache != nil {
		var f types.Flag
		err := s.cache.Get(ctx, s.cacheKey(key), &f)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("flag cache read failed", zap.String("flag_key", key), zap.Error(err))
		}
	}

	f, err := s.store.GetFlag(ctx, key, s.environment)
	if err != nil {
		return types.Flag{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, s.cacheKey(key), f, s.cacheTTL); err != nil {
			s.logger.Warn("flag cache write failed", zap.String("flag_key", key), zap.Error(err))
		}
	}
	return f, nil
}

func (s *FlagService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(key)); err != nil {
		s.logger.Warn("flag cache invalidation failed", zap.String("flag_key", key), zap.Error(err))
	}
}

// Evaluate resolves one flag for one subject.
func (s *FlagService) Evaluate(ctx context.Context, flagKey, subjectID string, extra map[string]any) (types.FlagEvaluation, error) {
	flag, err := s.getFlag(ctx, flagKey)
	if err != nil {
		metrics.errors.WithLabelValues("flag_lookup").Inc()
		return types.FlagEvaluation{}, err
	}

	evalContext := s.contexts.Build(ctx, subjectID, extra)
	evaluation := targeting.EvaluateFlag(flag, subjectID, evalContext)
	metrics.flagEvaluations.WithLabelValues(flagKey, evaluationOutcome(flag, evaluation)).Inc()
	return evaluation, nil
}

// EvaluateBulk resolves several flags against one shared context. An empty
// key list means every active flag in the environment. Individual flag
// lookup failures do not abort the batch: the failed flag appears in the
// result as disabled with a nil value.
func (s *FlagService) EvaluateBulk(ctx context.Context, flagKeys []string, subjectID string, extra map[string]any) (map[string]types.FlagEvaluation, error) {
	evalContext := s.contexts.Build(ctx, subjectID, extra)

	if len(flagKeys) == 0 {
		flags, err := s.store.ListFlags(ctx, s.environment, true)
		if err != nil {
			return nil, err
		}
		results := make(map[string]types.FlagEvaluation, len(flags))
		for _, flag := range flags {
			evaluation := targeting.EvaluateFlag(flag, subjectID, evalContext)
			metrics.flagEvaluations.WithLabelValues(flag.Key, evaluationOutcome(flag, evaluation)).Inc()
			results[flag.Key] = evaluation
		}
		return results, nil
	}

	results := make(map[string]types.FlagEvaluation, len(flagKeys))
	for _, key := range flagKeys {
		flag, err := s.getFlag(ctx, key)
		if err != nil {
			metrics.errors.WithLabelValues("flag_lookup").Inc()
			s.logger.Warn("bulk evaluation skipping failed flag lookup",
				zap.String("flag_key", key), zap.Error(err))
			results[key] = types.FlagEvaluation{
				FlagKey:     key,
				Value:       nil,
				IsEnabled:   false,
				EvaluatedAt: time.Now().UTC(),
			}
			continue
		}

		evaluation := targeting.EvaluateFlag(flag, subjectID, evalContext)
		metrics.flagEvaluations.WithLabelValues(key, evaluationOutcome(flag, evaluation)).Inc()
		results[key] = evaluation
	}
	return results, nil
}

func evaluationOutcome(flag types.Flag, e types.FlagEvaluation) string {
	switch {
	case !flag.Active:
		return "inactive"
	case e.MatchedRule != nil:
		return "targeted"
	default:
		return "default"
	}
}

// Create validates and stores a new flag definition in the service's
// environment.
func (s *FlagService) Create(ctx context.Context, f types.Flag) (types.Flag, error) {
	if err := validateFlag(f); err != nil {
		return types.Flag{}, err
	}

	now := time.Now().UTC()
	f.Environment = s.environment
	f.CreatedAt = now
	f.UpdatedAt = now
	if err := s.store.CreateFlag(ctx, f); err != nil {
		return types.Flag{}, err
	}
	return f, nil
}

func (s *FlagService) Get(ctx context.Context, key string) (types.Flag, error) {
	return s.getFlag(ctx, key)
}

func (s *FlagService) List(ctx context.Context, activeOnly bool) ([]types.Flag, error) {
	return s.store.ListFlags(ctx, s.environment, activeOnly)
}

func (s *FlagService) Update(ctx context.Context, f types.Flag) (types.Flag, error) {
	if err := validateFlag(f); err != nil {
		return types.Flag{}, err
	}

	f.Environment = s.environment
	f.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateFlag(ctx, f); err != nil {
		return types.Flag{}, err
	}
	s.invalidate(ctx, f.Key)
	return f, nil
}

func (s *FlagService) Delete(ctx context.Context, key string) error {
	if err := s.store.DeleteFlag(ctx, key, s.environment); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func validateFlag(f types.Flag) error {
	if strings.TrimSpace(f.Key) == "" {
		return fmt.Errorf("%w: flag key is required", ErrValidation)
	}
	switch f.Type {
	case types.FlagBoolean, types.FlagString, types.FlagNumber, types.FlagJSON:
	default:
		return fmt.Errorf("%w: unknown flag type %q", ErrValidation, f.Type)
	}
	for i, t := range f.Targeting {
		if t.RolloutPercentage < 0 || t.RolloutPercentage > 100 {
			return fmt.Errorf("%w: targeting entry %d rollout percentage out of range", ErrValidation, i)
		}
	}
	return nil
}
