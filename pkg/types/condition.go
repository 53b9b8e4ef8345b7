package types

import (
	"encoding/json"
	"fmt"
)

// GroupOperator combines the children of a ConditionGroup.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Operator compares a context field against a condition value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "notExists"

	// SemVer comparison of string attributes such as "app_version".
	OpVersionEquals      Operator = "versionEquals"
	OpVersionGreaterThan Operator = "versionGreaterThan"
	OpVersionLessThan    Operator = "versionLessThan"
)

// NodeKind discriminates the two shapes a ConditionNode can take.
type NodeKind string

const (
	NodeCondition NodeKind = "condition"
	NodeGroup     NodeKind = "group"
)

// Condition is a leaf of a rule tree. Field is a dot-path into the
// evaluation context ("traits.plan", "segments").
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// ConditionGroup is a boolean combinator over conditions and nested groups.
// The root of every rule tree is a group.
type ConditionGroup struct {
	Operator   GroupOperator   `json:"operator"`
	Conditions []ConditionNode `json:"conditions"`
}

// ConditionNode is the tagged union of Condition and ConditionGroup.
// Evaluators dispatch on Kind, never on the shape of the payload.
type ConditionNode struct {
	Kind      NodeKind        `json:"kind"`
	Condition *Condition      `json:"condition,omitempty"`
	Group     *ConditionGroup `json:"group,omitempty"`
}

// NewCondition wraps a leaf condition in a node.
func NewCondition(field string, op Operator, value any) ConditionNode {
	return ConditionNode{
		Kind:      NodeCondition,
		Condition: &Condition{Field: field, Operator: op, Value: value},
	}
}

// NewGroup wraps a nested group in a node.
func NewGroup(op GroupOperator, children ...ConditionNode) ConditionNode {
	return ConditionNode{
		Kind:  NodeGroup,
		Group: &ConditionGroup{Operator: op, Conditions: children},
	}
}

// conditionNodeJSON mirrors both node shapes for decoding. Definitions
// written by older tooling carry flat {field, operator, value} leaves and
// {operator, conditions} groups without a kind tag; decoding normalizes
// them so evaluation stays tag-dispatched.
type conditionNodeJSON struct {
	Kind      NodeKind        `json:"kind"`
	Condition *Condition      `json:"condition"`
	Group     *ConditionGroup `json:"group"`

	Field      string            `json:"field"`
	Operator   string            `json:"operator"`
	Value      any               `json:"value"`
	Conditions []json.RawMessage `json:"conditions"`
}

// UnmarshalJSON decodes a node in either tagged or flat form.
func (n *ConditionNode) UnmarshalJSON(data []byte) error {
	var raw conditionNodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode condition node: %w", err)
	}

	switch raw.Kind {
	case NodeCondition:
		if raw.Condition == nil {
			// Tagged leaf with inline fields.
			n.Kind = NodeCondition
			n.Condition = &Condition{Field: raw.Field, Operator: Operator(raw.Operator), Value: raw.Value}
			return nil
		}
		n.Kind = NodeCondition
		n.Condition = raw.Condition
		return nil
	case NodeGroup:
		if raw.Group != nil {
			n.Kind = NodeGroup
			n.Group = raw.Group
			return nil
		}
	case "":
		// Untagged legacy form, normalized below.
	default:
		return fmt.Errorf("unknown condition node kind %q", raw.Kind)
	}

	if raw.Conditions != nil {
		group := ConditionGroup{Operator: GroupOperator(raw.Operator)}
		for _, child := range raw.Conditions {
			var node ConditionNode
			if err := json.Unmarshal(child, &node); err != nil {
				return err
			}
			group.Conditions = append(group.Conditions, node)
		}
		n.Kind = NodeGroup
		n.Group = &group
		return nil
	}

	n.Kind = NodeCondition
	n.Condition = &Condition{Field: raw.Field, Operator: Operator(raw.Operator), Value: raw.Value}
	return nil
}

// MarshalJSON always emits the tagged form.
func (n ConditionNode) MarshalJSON() ([]byte, error) {
	type tagged ConditionNode
	return json.Marshal(tagged(n))
}
