package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/marketfold/go-targeting-service/internal/platform/database"
	"github.com/marketfold/go-targeting-service/pkg/targeting"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

// ProfileStore resolves subject identifiers to stored profiles.
type ProfileStore interface {
	GetProfileBySubject(ctx context.Context, subjectID string) (types.Profile, error)
}

// SegmentLister provides the segments considered for membership computation.
type SegmentLister interface {
	ListSegments(ctx context.Context) ([]types.Segment, error)
}

// ContextBuilder assembles the evaluation context for a subject: profile
// attributes, a traits sub-map and the list of dynamic segments the subject
// belongs to. Building never fails — an unresolvable subject evaluates
// against an anonymous context.
type ContextBuilder struct {
	profiles ProfileStore
	segments SegmentLister
	logger   *zap.Logger
}

func NewContextBuilder(profiles ProfileStore, segments SegmentLister, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{profiles: profiles, segments: segments, logger: logger}
}

// Build returns the evaluation context for a subject. Request-supplied extra
// attributes override profile-derived ones.
func (b *ContextBuilder) Build(ctx context.Context, subjectID string, extra map[string]any) map[string]any {
	attrs := map[string]any{
		"subject_id": subjectID,
		"anonymous":  true,
	}

	profile, err := b.profiles.GetProfileBySubject(ctx, subjectID)
	switch {
	case err == nil:
		attrs["anonymous"] = false
		attrs["profile_id"] = profile.ID
		if profile.Email != "" {
			attrs["email"] = profile.Email
		}
		if profile.FirstName != "" {
			attrs["first_name"] = profile.FirstName
		}
		if profile.LastName != "" {
			attrs["last_name"] = profile.LastName
		}
		if profile.Timezone != "" {
			attrs["timezone"] = profile.Timezone
		}
		if profile.Locale != "" {
			attrs["locale"] = profile.Locale
		}
		if len(profile.Traits) > 0 {
			attrs["traits"] = profile.Traits
		}
	case errors.Is(err, database.ErrNotFound):
		// Anonymous subject, evaluate with what the caller supplied.
	default:
		metrics.errors.WithLabelValues("profile_lookup").Inc()
		b.logger.Warn("profile lookup failed, degrading to anonymous context",
			zap.String("subject_id", subjectID), zap.Error(err))
	}

	for k, v := range extra {
		attrs[k] = v
	}

	attrs["segments"] = b.memberSegments(ctx, attrs)
	return attrs
}

// memberSegments computes the keys of the dynamic segments the attribute set
// belongs to. Lookup failures degrade to an empty list.
func (b *ContextBuilder) memberSegments(ctx context.Context, attrs map[string]any) []string {
	segments, err := b.segments.ListSegments(ctx)
	if err != nil {
		metrics.errors.WithLabelValues("segment_list").Inc()
		b.logger.Warn("segment listing failed, context carries no segments", zap.Error(err))
		return []string{}
	}

	keys := []string{}
	for _, s := range segments {
		if !s.Dynamic {
			continue
		}
		if targeting.InSegment(s, attrs) {
			keys = append(keys, s.Key)
		}
	}
	return keys
}
