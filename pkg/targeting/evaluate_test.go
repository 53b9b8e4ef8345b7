package targeting_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketfold/go-targeting-service/pkg/targeting"
	"github.com/marketfold/go-targeting-service/pkg/types"
)

func group(op types.GroupOperator, children ...types.ConditionNode) types.ConditionGroup {
	return types.ConditionGroup{Operator: op, Conditions: children}
}

func testContext() map[string]any {
	return map[string]any{
		"userId":  "user-42",
		"email":   "jamie@example.com",
		"age":     float64(30),
		"country": "DE",
		"traits": map[string]any{
			"plan":       "pro",
			"betaTester": true,
			"appVersion": "2.4.1",
		},
		"segments": []any{"power-users", "newsletter"},
		"nothing":  nil,
	}
}

func TestEvaluateGroup_Operators(t *testing.T) {
	tests := []struct {
		name string
		node types.ConditionNode
		want bool
	}{
		{"equals string", types.NewCondition("country", types.OpEquals, "DE"), true},
		{"equals mismatch", types.NewCondition("country", types.OpEquals, "FR"), false},
		{"equals numeric cross-type", types.NewCondition("age", types.OpEquals, 30), true},
		{"equals bool in nested map", types.NewCondition("traits.betaTester", types.OpEquals, true), true},
		{"notEquals", types.NewCondition("country", types.OpNotEquals, "FR"), true},
		{"contains substring", types.NewCondition("email", types.OpContains, "@example."), true},
		{"contains array element", types.NewCondition("segments", types.OpContains, "power-users"), true},
		{"contains missing element", types.NewCondition("segments", types.OpContains, "vip"), false},
		{"notContains", types.NewCondition("email", types.OpNotContains, "@corp."), true},
		{"greaterThan", types.NewCondition("age", types.OpGreaterThan, 21), true},
		{"greaterThan numeric string", types.NewCondition("age", types.OpGreaterThan, "29"), true},
		{"greaterThan non-numeric", types.NewCondition("country", types.OpGreaterThan, 1), false},
		{"lessThan", types.NewCondition("age", types.OpLessThan, 65), true},
		{"in", types.NewCondition("country", types.OpIn, []any{"DE", "AT", "CH"}), true},
		{"in miss", types.NewCondition("country", types.OpIn, []any{"US", "CA"}), false},
		{"in non-list value", types.NewCondition("country", types.OpIn, "DE"), false},
		{"notIn", types.NewCondition("country", types.OpNotIn, []any{"US", "CA"}), true},
		{"notIn non-list value fails closed", types.NewCondition("country", types.OpNotIn, "US"), false},
		{"exists", types.NewCondition("traits.plan", types.OpExists, nil), true},
		{"exists on null value", types.NewCondition("nothing", types.OpExists, nil), false},
		{"exists missing field", types.NewCondition("traits.missing", types.OpExists, nil), false},
		{"notExists", types.NewCondition("traits.missing", types.OpNotExists, nil), true},
		{"versionEquals", types.NewCondition("traits.appVersion", types.OpVersionEquals, "2.4.1"), true},
		{"versionGreaterThan", types.NewCondition("traits.appVersion", types.OpVersionGreaterThan, "2.4.0"), true},
		{"versionLessThan", types.NewCondition("traits.appVersion", types.OpVersionLessThan, "3.0.0"), true},
		{"version malformed fails closed", types.NewCondition("email", types.OpVersionGreaterThan, "1.0.0"), false},
		{"unknown operator fails closed", types.NewCondition("country", "matches", "DE"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := targeting.EvaluateGroup(group(types.GroupAnd, tt.node), testContext())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateGroup_Combinators(t *testing.T) {
	matching := types.NewCondition("country", types.OpEquals, "DE")
	failing := types.NewCondition("country", types.OpEquals, "FR")

	assert.True(t, targeting.EvaluateGroup(group(types.GroupAnd, matching, matching), testContext()))
	assert.False(t, targeting.EvaluateGroup(group(types.GroupAnd, matching, failing), testContext()))
	assert.True(t, targeting.EvaluateGroup(group(types.GroupOr, failing, matching), testContext()))
	assert.False(t, targeting.EvaluateGroup(group(types.GroupOr, failing, failing), testContext()))

	// Empty groups: AND matches vacuously, OR does not.
	assert.True(t, targeting.EvaluateGroup(group(types.GroupAnd), testContext()))
	assert.False(t, targeting.EvaluateGroup(group(types.GroupOr), testContext()))
}

func TestEvaluateGroup_NestedGroups(t *testing.T) {
	// (country == DE AND (plan == pro OR plan == enterprise))
	tree := group(types.GroupAnd,
		types.NewCondition("country", types.OpEquals, "DE"),
		types.NewGroup(types.GroupOr,
			types.NewCondition("traits.plan", types.OpEquals, "pro"),
			types.NewCondition("traits.plan", types.OpEquals, "enterprise"),
		),
	)

	assert.True(t, targeting.EvaluateGroup(tree, testContext()))

	ctx := testContext()
	ctx["traits"].(map[string]any)["plan"] = "free"
	assert.False(t, targeting.EvaluateGroup(tree, ctx))
}

func TestEvaluateGroup_TotalOnMalformedInput(t *testing.T) {
	// Nodes with an unknown kind or missing payloads must evaluate to
	// false, never panic.
	malformed := group(types.GroupOr,
		types.ConditionNode{Kind: "mystery"},
		types.ConditionNode{Kind: types.NodeCondition},
		types.ConditionNode{Kind: types.NodeGroup},
	)

	assert.NotPanics(t, func() {
		assert.False(t, targeting.EvaluateGroup(malformed, testContext()))
		assert.False(t, targeting.EvaluateGroup(malformed, nil))
	})
}

func TestEvaluateGroup_DotPathThroughNonMap(t *testing.T) {
	tree := group(types.GroupAnd, types.NewCondition("email.domain", types.OpExists, nil))
	assert.False(t, targeting.EvaluateGroup(tree, testContext()))
}

func TestConditionNode_DecodesUntaggedForm(t *testing.T) {
	// Definitions written before nodes carried a kind tag are flat objects.
	raw := `{
		"operator": "AND",
		"conditions": [
			{"field": "traits.betaTester", "operator": "equals", "value": true},
			{"operator": "OR", "conditions": [
				{"field": "country", "operator": "in", "value": ["DE", "AT"]}
			]}
		]
	}`

	var node types.ConditionNode
	require.NoError(t, json.Unmarshal([]byte(raw), &node))
	require.Equal(t, types.NodeGroup, node.Kind)
	require.NotNil(t, node.Group)
	require.Len(t, node.Group.Conditions, 2)
	assert.Equal(t, types.NodeCondition, node.Group.Conditions[0].Kind)
	assert.Equal(t, types.NodeGroup, node.Group.Conditions[1].Kind)

	assert.True(t, targeting.EvaluateGroup(*node.Group, testContext()))
}

func TestConditionNode_DecodesTaggedForm(t *testing.T) {
	raw := `{
		"kind": "group",
		"group": {
			"operator": "AND",
			"conditions": [
				{"kind": "condition", "condition": {"field": "country", "operator": "equals", "value": "DE"}}
			]
		}
	}`

	var node types.ConditionNode
	require.NoError(t, json.Unmarshal([]byte(raw), &node))
	require.Equal(t, types.NodeGroup, node.Kind)
	assert.True(t, targeting.EvaluateGroup(*node.Group, testContext()))
}
