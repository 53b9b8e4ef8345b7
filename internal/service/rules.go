package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/pkg/targeting"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

// RuleStore is the persistence surface the rule service needs.
type RuleStore interface {
	CreateRule(ctx context.Context, r types.Rule) error
	GetRule(ctx context.Context, key string) (types.Rule, error)
	ListRulesByType(ctx context.Context, ruleType string) ([]types.Rule, error)
	UpdateRule(ctx context.Context, r types.Rule) error
	DeleteRule(ctx context.Context, key string) error
}

// RuleService manages targeting rules and evaluates them against contexts.
type RuleService struct {
	store  RuleStore
	logger *zap.Logger
}

func NewRuleService(store RuleStore, logger *zap.Logger) *RuleService {
	return &RuleService{store: store, logger: logger}
}

// EvaluateRules returns the active rules of one type that match the given
// attributes, highest priority first.
func (s *RuleService) EvaluateRules(ctx context.Context, ruleType string, attributes map[string]any) ([]types.Rule, error) {
	rules, err := s.store.ListRulesByType(ctx, ruleType)
	if err != nil {
		return nil, err
	}

	matched := targeting.MatchingRules(rules, attributes, time.Now().UTC())
	metrics.ruleMatches.WithLabelValues(ruleType).Add(float64(len(matched)))
	return matched, nil
}

func (s *RuleService) Create(ctx context.Context, rule types.Rule) (types.Rule, error) {
	if err := validateRule(rule); err != nil {
		return types.Rule{}, err
	}

	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return types.Rule{}, err
	}
	return rule, nil
}

func (s *RuleService) Get(ctx context.Context, key string) (types.Rule, error) {
	return s.store.GetRule(ctx, key)
}

func (s *RuleService) ListByType(ctx context.Context, ruleType string) ([]types.Rule, error) {
	return s.store.ListRulesByType(ctx, ruleType)
}

func (s *RuleService) Update(ctx context.Context, rule types.Rule) (types.Rule, error) {
	if err := validateRule(rule); err != nil {
		return types.Rule{}, err
	}

	rule.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateRule(ctx, rule); err != nil {
		return types.Rule{}, err
	}
	return rule, nil
}

func (s *RuleService) Delete(ctx context.Context, key string) error {
	return s.store.DeleteRule(ctx, key)
}

func validateRule(r types.Rule) error {
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("%w: rule key is required", ErrValidation)
	}
	if strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("%w: rule type is required", ErrValidation)
	}
	if r.ActiveFrom != nil && r.ActiveUntil != nil && r.ActiveUntil.Before(*r.ActiveFrom) {
		return fmt.Errorf("%w: rule activity window ends before it starts", ErrValidation)
	}
	return nil
}
