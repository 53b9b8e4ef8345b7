package targeting

import (
	"time"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

// EvaluateFlag resolves a flag's value for a subject. Targeting entries are
// walked in stored order; the first entry whose conditions match the
// context and whose rollout includes the subject wins. Inactive flags and
// unmatched subjects fall through to the default value.
func EvaluateFlag(flag types.Flag, subjectID string, context map[string]any) types.FlagEvaluation {
	now := time.Now().UTC()

	if !flag.Active {
		return types.FlagEvaluation{
			FlagKey:     flag.Key,
			Value:       flag.DefaultValue,
			IsEnabled:   false,
			EvaluatedAt: now,
		}
	}

	for i, entry := range flag.Targeting {
		if !EvaluateGroup(entry.Conditions, context) {
			continue
		}
		if !InRollout(subjectID, flag.Key, entry.RolloutPercentage) {
			continue
		}
		matched := i
		return types.FlagEvaluation{
			FlagKey:     flag.Key,
			Value:       entry.Value,
			IsEnabled:   true,
			MatchedRule: &matched,
			EvaluatedAt: now,
		}
	}

	return types.FlagEvaluation{
		FlagKey:     flag.Key,
		Value:       flag.DefaultValue,
		IsEnabled:   defaultEnabled(flag),
		EvaluatedAt: now,
	}
}

// defaultEnabled reports whether serving the default value counts as the
// flag being "on". For boolean flags that is the default value itself; for
// value-carrying flags the default is always a served value.
func defaultEnabled(flag types.Flag) bool {
	if flag.Type == types.FlagBoolean {
		v, ok := flag.DefaultValue.(bool)
		return ok && v
	}
	return true
}

// InSegment reports whether a profile's attributes satisfy a segment's rule
// tree.
func InSegment(segment types.Segment, attributes map[string]any) bool {
	return EvaluateGroup(segment.Rules, attributes)
}
