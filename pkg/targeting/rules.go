package targeting

import (
	"sort"
	"time"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

// MatchingRules filters rules down to those that are active at the given
// instant and whose condition tree matches the context, ordered by priority
// descending. Rules with equal priority keep their input order.
func MatchingRules(rules []types.Rule, context map[string]any, now time.Time) []types.Rule {
	var matched []types.Rule
	for _, rule := range rules {
		if !rule.ActiveAt(now) {
			continue
		}
		if !EvaluateGroup(rule.Conditions, context) {
			continue
		}
		matched = append(matched, rule)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})
	return matched
}
