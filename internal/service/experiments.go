package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/platform/cache"
	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/pkg/targeting"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

// ExperimentStore is the persistence surface the experiment service needs.
type ExperimentStore interface {
	CreateExperiment(ctx context.Context, exp types.Experiment) error
	GetExperimentByKey(ctx context.Context, key string) (types.Experiment, error)
	ListExperiments(ctx context.Context, status types.ExperimentStatus, limit, offset int) ([]types.Experiment, error)
	UpdateExperiment(ctx context.Context, exp types.Experiment) error
	DeleteExperiment(ctx context.Context, key string) error

	GetAssignment(ctx context.Context, experimentKey, subjectID string) (types.Assignment, error)
	CreateAssignmentIfAbsent(ctx context.Context, a types.Assignment, evalContext map[string]any) (types.Assignment, bool, error)
	CountAssignments(ctx context.Context, experimentKey string) (map[string]int64, int64, error)

	SaveConclusion(ctx context.Context, c types.ExperimentConclusion) error
	GetConclusion(ctx context.Context, experimentKey string) (types.ExperimentConclusion, error)
}

// validTransitions is the experiment lifecycle state machine. Concluding
// happens through Conclude, but the transition is also legal via Update so
// operators can flip status directly.
var validTransitions = map[types.ExperimentStatus][]types.ExperimentStatus{
	types.StatusDraft:     {types.StatusRunning, types.StatusArchived},
	types.StatusRunning:   {types.StatusPaused, types.StatusConcluded},
	types.StatusPaused:    {types.StatusRunning, types.StatusConcluded, types.StatusArchived},
	types.StatusConcluded: {types.StatusArchived},
	types.StatusArchived:  {},
}

// ExperimentService owns the experiment lifecycle and the assignment path.
type ExperimentService struct {
	store    ExperimentStore
	cache    cache.Cache
	contexts *ContextBuilder
	cacheTTL time.Duration
	logger   *zap.Logger
}

func NewExperimentService(store ExperimentStore, c cache.Cache, contexts *ContextBuilder, cacheTTL time.Duration, logger *zap.Logger) *ExperimentService {
	return &ExperimentService{
		store:    store,
		cache:    c,
		contexts: contexts,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func experimentCacheKey(key string) string {
	return "experiment:" + key
}

func (s *ExperimentService) getExperiment(ctx context.Context, key string) (types.Experiment, error) {
	if s.cache != nil {
		var exp types.Experiment
		err := s.cache.Get(ctx, experimentCacheKey(key), &exp)
		if err == nil {
			return exp, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("experiment cache read failed", zap.String("experiment_key", key), zap.Error(err))
		}
	}

	exp, err := s.store.GetExperimentByKey(ctx, key)
	if err != nil {
		return types.Experiment{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, experimentCacheKey(key), exp, s.cacheTTL); err != nil {
			s.logger.Warn("experiment cache write failed", zap.String("experiment_key", key), zap.Error(err))
		}
	}
	return exp, nil
}

func (s *ExperimentService) invalidate(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, experimentCacheKey(key)); err != nil {
		s.logger.Warn("experiment cache invalidation failed", zap.String("experiment_key", key), zap.Error(err))
	}
}

// Assign resolves the variant for a subject, persisting a first-time
// assignment exactly once per (experiment, subject) pair.
//
// The decision order is fixed: status gate, idempotent read of an existing
// assignment, traffic gate, then weighted selection plus atomic insert.
// Subjects outside experiment traffic receive the control variant and no
// persisted record.
func (s *ExperimentService) Assign(ctx context.Context, experimentKey, subjectID string, extra map[string]any) (types.AssignmentResult, error) {
	exp, err := s.getExperiment(ctx, experimentKey)
	if err != nil {
		return types.AssignmentResult{}, err
	}

	if exp.Status != types.StatusRunning {
		return types.AssignmentResult{}, fmt.Errorf("experiment %q has status %s: %w",
			experimentKey, exp.Status, ErrExperimentNotRunning)
	}

	existing, err := s.store.GetAssignment(ctx, experimentKey, subjectID)
	if err == nil {
		metrics.assignments.WithLabelValues(experimentKey, existing.VariantKey, "false").Inc()
		return s.result(exp, existing, false), nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return types.AssignmentResult{}, err
	}

	if !targeting.InRollout(subjectID, experimentKey, exp.TrafficPercent) {
		control, ok := exp.ControlVariant()
		if !ok {
			return types.AssignmentResult{}, fmt.Errorf("experiment %q has no control variant", experimentKey)
		}
		metrics.assignments.WithLabelValues(experimentKey, control.Key, "false").Inc()
		return types.AssignmentResult{
			ExperimentKey:   experimentKey,
			SubjectID:       subjectID,
			VariantKey:      control.Key,
			Payload:         control.Payload,
			IsNewAssignment: false,
			AssignedAt:      time.Now().UTC(),
		}, nil
	}

	variant := targeting.SelectVariant(subjectID, experimentKey, exp.Variants)
	evalContext := s.contexts.Build(ctx, subjectID, extra)

	assignment := types.Assignment{
		ExperimentKey: experimentKey,
		SubjectID:     subjectID,
		VariantKey:    variant.Key,
		AssignedAt:    time.Now().UTC(),
	}
	stored, created, err := s.store.CreateAssignmentIfAbsent(ctx, assignment, evalContext)
	if err != nil {
		return types.AssignmentResult{}, err
	}

	metrics.assignments.WithLabelValues(experimentKey, stored.VariantKey, fmt.Sprintf("%t", created)).Inc()
	return s.result(exp, stored, created), nil
}

func (s *ExperimentService) result(exp types.Experiment, a types.Assignment, isNew bool) types.AssignmentResult {
	res := types.AssignmentResult{
		ExperimentKey:   a.ExperimentKey,
		SubjectID:       a.SubjectID,
		VariantKey:      a.VariantKey,
		IsNewAssignment: isNew,
		AssignedAt:      a.AssignedAt,
	}
	for _, v := range exp.Variants {
		if v.Key == a.VariantKey {
			res.Payload = v.Payload
			break
		}
	}
	return res
}

// Results reports per-variant participation and conversion outcomes.
// Participants come from the assignment store; conversions are supplied by
// the caller (the analytics pipeline counts them outside this service).
func (s *ExperimentService) Results(ctx context.Context, experimentKey string, conversions map[string]int64) (types.ExperimentResults, error) {
	exp, err := s.store.GetExperimentByKey(ctx, experimentKey)
	if err != nil {
		return types.ExperimentResults{}, err
	}

	participants, total, err := s.store.CountAssignments(ctx, experimentKey)
	if err != nil {
		return types.ExperimentResults{}, err
	}

	control, hasControl := exp.ControlVariant()
	var controlN, controlConv int64
	var controlRate float64
	if hasControl {
		controlN = participants[control.Key]
		controlConv = conversions[control.Key]
		if controlN > 0 {
			controlRate = float64(controlConv) / float64(controlN)
		}
	}

	results := types.ExperimentResults{
		ExperimentKey:     experimentKey,
		Status:            exp.Status,
		TotalParticipants: total,
		LastUpdated:       time.Now().UTC(),
	}

	var bestRate float64
	for _, v := range exp.Variants {
		n := participants[v.Key]
		conv := conversions[v.Key]

		vr := types.VariantResult{
			VariantKey:   v.Key,
			VariantName:  v.Name,
			IsControl:    v.IsControl,
			Participants: n,
			Conversions:  conv,
		}
		if n > 0 {
			vr.ConversionRate = float64(conv) / float64(n)
		}

		if !v.IsControl && hasControl && controlN > 0 && n > 0 {
			// A control that never converted still yields a figure: zero,
			// not absent, so reports can tell "no data" from "no baseline".
			improvement := 0.0
			if controlRate > 0 {
				improvement = (vr.ConversionRate - controlRate) / controlRate * 100
			}
			vr.Improvement = &improvement
			confidence := targeting.Confidence(n, conv, controlN, controlConv)
			vr.Confidence = &confidence
		}

		if n > 0 && vr.ConversionRate > bestRate {
			bestRate = vr.ConversionRate
			results.WinningVariant = v.Key
		}
		results.VariantResults = append(results.VariantResults, vr)
	}

	return results, nil
}

// Conclude records the final verdict for an experiment and flips its status
// to CONCLUDED. Concluding twice is a business-rule error.
func (s *ExperimentService) Conclude(ctx context.Context, experimentKey, winningVariant, conclusion string) (types.ExperimentConclusion, error) {
	exp, err := s.store.GetExperimentByKey(ctx, experimentKey)
	if err != nil {
		return types.ExperimentConclusion{}, err
	}
	if exp.Status == types.StatusConcluded {
		return types.ExperimentConclusion{}, fmt.Errorf("experiment %q: %w", experimentKey, ErrExperimentConcluded)
	}

	known := false
	for _, v := range exp.Variants {
		if v.Key == winningVariant {
			known = true
			break
		}
	}
	if !known {
		return types.ExperimentConclusion{}, fmt.Errorf("experiment %q has no variant %q: %w",
			experimentKey, winningVariant, ErrUnknownVariant)
	}

	_, total, err := s.store.CountAssignments(ctx, experimentKey)
	if err != nil {
		return types.ExperimentConclusion{}, err
	}

	record := types.ExperimentConclusion{
		ExperimentKey:  experimentKey,
		WinningVariant: winningVariant,
		Conclusion:     conclusion,
		SampleSize:     total,
		ConcludedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveConclusion(ctx, record); err != nil {
		return types.ExperimentConclusion{}, err
	}

	s.invalidate(ctx, experimentKey)
	return record, nil
}

// Conclusion returns the recorded verdict for a concluded experiment.
func (s *ExperimentService) Conclusion(ctx context.Context, experimentKey string) (types.ExperimentConclusion, error) {
	return s.store.GetConclusion(ctx, experimentKey)
}

// Create validates and stores a new experiment. New experiments always start
// as drafts.
func (s *ExperimentService) Create(ctx context.Context, exp types.Experiment) (types.Experiment, error) {
	if strings.TrimSpace(exp.Key) == "" {
		return types.Experiment{}, fmt.Errorf("%w: experiment key is required", ErrValidation)
	}
	if err := validateVariants(exp.Variants); err != nil {
		return types.Experiment{}, err
	}

	now := time.Now().UTC()
	exp.ID = uuid.NewString()
	exp.Status = types.StatusDraft
	exp.TrafficPercent = clampPercent(exp.TrafficPercent)
	exp.CreatedAt = now
	exp.UpdatedAt = now
	if err := s.store.CreateExperiment(ctx, exp); err != nil {
		return types.Experiment{}, err
	}
	return exp, nil
}

func (s *ExperimentService) Get(ctx context.Context, key string) (types.Experiment, error) {
	return s.getExperiment(ctx, key)
}

func (s *ExperimentService) List(ctx context.Context, status types.ExperimentStatus, limit, offset int) ([]types.Experiment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListExperiments(ctx, status, limit, offset)
}

// Update applies changes to an experiment. While an experiment is RUNNING
// only name, description, end date and status may change; variants, traffic
// and targeting are frozen so stored assignments stay explainable.
func (s *ExperimentService) Update(ctx context.Context, exp types.Experiment) (types.Experiment, error) {
	current, err := s.store.GetExperimentByKey(ctx, exp.Key)
	if err != nil {
		return types.Experiment{}, err
	}

	if exp.Status != current.Status {
		if !transitionAllowed(current.Status, exp.Status) {
			return types.Experiment{}, fmt.Errorf("%s -> %s: %w", current.Status, exp.Status, ErrInvalidTransition)
		}
	}

	if current.Status == types.StatusRunning {
		updated := current
		updated.Name = exp.Name
		updated.Description = exp.Description
		updated.EndDate = exp.EndDate
		updated.Status = exp.Status
		exp = updated
	} else {
		if err := validateVariants(exp.Variants); err != nil {
			return types.Experiment{}, err
		}
		exp.ID = current.ID
		exp.TrafficPercent = clampPercent(exp.TrafficPercent)
		exp.CreatedAt = current.CreatedAt
	}

	exp.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateExperiment(ctx, exp); err != nil {
		return types.Experiment{}, err
	}
	s.invalidate(ctx, exp.Key)
	return exp, nil
}

func (s *ExperimentService) Delete(ctx context.Context, key string) error {
	if err := s.store.DeleteExperiment(ctx, key); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

func transitionAllowed(from, to types.ExperimentStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// validateVariants enforces the creation rules: at least two arms, exactly
// one control, unique keys and weights summing to 100 within a tolerance of
// one point.
func validateVariants(variants []types.Variant) error {
	if len(variants) < 2 {
		return fmt.Errorf("%w: an experiment needs at least two variants", ErrValidation)
	}

	seen := make(map[string]bool, len(variants))
	controls := 0
	var weightSum float64
	for _, v := range variants {
		if strings.TrimSpace(v.Key) == "" {
			return fmt.Errorf("%w: variant key is required", ErrValidation)
		}
		if seen[v.Key] {
			return fmt.Errorf("%w: duplicate variant key %q", ErrValidation, v.Key)
		}
		seen[v.Key] = true
		if v.IsControl {
			controls++
		}
		if v.Weight < 0 {
			return fmt.Errorf("%w: variant %q has a negative weight", ErrValidation, v.Key)
		}
		weightSum += v.Weight
	}

	if controls != 1 {
		return fmt.Errorf("%w: exactly one control variant is required, got %d", ErrValidation, controls)
	}
	if weightSum < 99 || weightSum > 101 {
		return fmt.Errorf("%w: variant weights sum to %.2f, expected 100", ErrValidation, weightSum)
	}
	return nil
}
