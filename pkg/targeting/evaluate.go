package targeting

import (
	"reflect"
	"strconv"
	"strings"

	version "github.com/hashicorp/go-version"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

// EvaluateGroup evaluates a condition tree against a flat attribute context.
// AND groups short-circuit on the first false child, OR groups on the first
// true child. An empty AND group matches, an empty OR group does not.
//
// The function is total: unknown operators, unknown node kinds and missing
// fields all evaluate to false.
func EvaluateGroup(group types.ConditionGroup, context map[string]any) bool {
	switch group.Operator {
	case types.GroupOr:
		for _, node := range group.Conditions {
			if evaluateNode(node, context) {
				return true
			}
		}
		return false
	default:
		// AND is the default combinator for definitions that omit it.
		for _, node := range group.Conditions {
			if !evaluateNode(node, context) {
				return false
			}
		}
		return true
	}
}

func evaluateNode(node types.ConditionNode, context map[string]any) bool {
	switch node.Kind {
	case types.NodeCondition:
		if node.Condition == nil {
			return false
		}
		return evaluateCondition(*node.Condition, context)
	case types.NodeGroup:
		if node.Group == nil {
			return false
		}
		return EvaluateGroup(*node.Group, context)
	default:
		return false
	}
}

func evaluateCondition(cond types.Condition, context map[string]any) bool {
	fieldValue, found := lookupPath(context, cond.Field)

	switch cond.Operator {
	case types.OpEquals:
		return valuesEqual(fieldValue, cond.Value)
	case types.OpNotEquals:
		return !valuesEqual(fieldValue, cond.Value)
	case types.OpContains:
		return containsValue(fieldValue, cond.Value)
	case types.OpNotContains:
		return !containsValue(fieldValue, cond.Value)
	case types.OpGreaterThan:
		a, ok1 := toFloat64(fieldValue)
		b, ok2 := toFloat64(cond.Value)
		return ok1 && ok2 && a > b
	case types.OpLessThan:
		a, ok1 := toFloat64(fieldValue)
		b, ok2 := toFloat64(cond.Value)
		return ok1 && ok2 && a < b
	case types.OpIn:
		return inList(fieldValue, cond.Value)
	case types.OpNotIn:
		return isList(cond.Value) && !inList(fieldValue, cond.Value)
	case types.OpExists:
		return found && fieldValue != nil
	case types.OpNotExists:
		return !found || fieldValue == nil
	case types.OpVersionEquals:
		return compareVersions(fieldValue, cond.Value, func(c int) bool { return c == 0 })
	case types.OpVersionGreaterThan:
		return compareVersions(fieldValue, cond.Value, func(c int) bool { return c > 0 })
	case types.OpVersionLessThan:
		return compareVersions(fieldValue, cond.Value, func(c int) bool { return c < 0 })
	default:
		return false
	}
}

// lookupPath walks the context along a dot-separated path. Missing
// intermediate keys or non-map intermediates resolve to (nil, false).
func lookupPath(context map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = context
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// valuesEqual compares a context value with a condition value. Numbers are
// compared numerically so that an int attribute matches a float64 decoded
// from JSON; everything else falls back to deep equality.
func valuesEqual(a, b any) bool {
	if fa, ok1 := toNumber(a); ok1 {
		if fb, ok2 := toNumber(b); ok2 {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

// containsValue implements substring matching for string fields and element
// membership for slice fields.
func containsValue(fieldValue, want any) bool {
	switch fv := fieldValue.(type) {
	case string:
		s, ok := want.(string)
		return ok && strings.Contains(fv, s)
	case []any:
		for _, item := range fv {
			if valuesEqual(item, want) {
				return true
			}
		}
		return false
	case []string:
		s, ok := want.(string)
		if !ok {
			return false
		}
		for _, item := range fv {
			if item == s {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isList(v any) bool {
	switch v.(type) {
	case []any, []string:
		return true
	default:
		return false
	}
}

// inList reports whether the field value is a member of the condition's
// list value.
func inList(fieldValue, list any) bool {
	switch l := list.(type) {
	case []any:
		for _, item := range l {
			if valuesEqual(fieldValue, item) {
				return true
			}
		}
	case []string:
		s, ok := fieldValue.(string)
		if !ok {
			return false
		}
		for _, item := range l {
			if item == s {
				return true
			}
		}
	}
	return false
}

// toNumber is toFloat64 minus string parsing: strings only count as numbers
// for explicitly numeric operators, not for equality.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// toFloat64 coerces common numeric types and numeric strings.
func toFloat64(v any) (float64, bool) {
	if f, ok := toNumber(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

// compareVersions parses both sides as semantic versions and applies cmp to
// their comparison result. Non-string or malformed versions fail closed.
func compareVersions(fieldValue, want any, cmp func(int) bool) bool {
	fs, ok1 := fieldValue.(string)
	ws, ok2 := want.(string)
	if !ok1 || !ok2 {
		return false
	}
	fv, err1 := version.NewVersion(fs)
	wv, err2 := version.NewVersion(ws)
	if err1 != nil || err2 != nil {
		return false
	}
	return cmp(fv.Compare(wv))
}
