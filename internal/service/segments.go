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

// SegmentStore is the persistence surface the segment service needs.
type SegmentStore interface {
	SegmentLister
	CreateSegment(ctx context.Context, s types.Segment) error
	GetSegment(ctx context.Context, key string) (types.Segment, error)
	UpdateSegment(ctx context.Context, s types.Segment) error
	DeleteSegment(ctx context.Context, key string) error
}

// SegmentService manages segment definitions and answers membership checks.
// Membership is always computed on demand from the rule tree, never stored.
type SegmentService struct {
	store  SegmentStore
	logger *zap.Logger
}

func NewSegmentService(store SegmentStore, logger *zap.Logger) *SegmentService {
	return &SegmentService{store: store, logger: logger}
}

// EvaluateMembership reports whether an attribute set satisfies the
// segment's rule tree.
func (s *SegmentService) EvaluateMembership(ctx context.Context, segmentKey string, attributes map[string]any) (bool, error) {
	segment, err := s.store.GetSegment(ctx, segmentKey)
	if err != nil {
		return false, err
	}
	return targeting.InSegment(segment, attributes), nil
}

func (s *SegmentService) Create(ctx context.Context, segment types.Segment) (types.Segment, error) {
	if strings.TrimSpace(segment.Key) == "" {
		return types.Segment{}, fmt.Errorf("%w: segment key is required", ErrValidation)
	}

	now := time.Now().UTC()
	segment.CreatedAt = now
	segment.UpdatedAt = now
	if err := s.store.CreateSegment(ctx, segment); err != nil {
		return types.Segment{}, err
	}
	return segment, nil
}

func (s *SegmentService) Get(ctx context.Context, key string) (types.Segment, error) {
	return s.store.GetSegment(ctx, key)
}

func (s *SegmentService) List(ctx context.Context) ([]types.Segment, error) {
	return s.store.ListSegments(ctx)
}

func (s *SegmentService) Update(ctx context.Context, segment types.Segment) (types.Segment, error) {
	if strings.TrimSpace(segment.Key) == "" {
		return types.Segment{}, fmt.Errorf("%w: segment key is required", ErrValidation)
	}

	segment.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSegment(ctx, segment); err != nil {
		return types.Segment{}, err
	}
	return segment, nil
}

func (s *SegmentService) Delete(ctx context.Context, key string) error {
	return s.store.DeleteSegment(ctx, key)
}
