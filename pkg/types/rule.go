package types

import "time"

// RuleAction is one effect a matched rule asks the caller to apply.
// Actions are opaque to the evaluation engine.
type RuleAction struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Rule is a targeting/personalization rule. Rules of the same type are
// evaluated together and returned in priority order, highest first.
type Rule struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Priority    int            `json:"priority"`
	Conditions  ConditionGroup `json:"conditions"`
	Actions     []RuleAction   `json:"actions,omitempty"`
	Active      bool           `json:"active"`
	ActiveFrom  *time.Time     `json:"active_from,omitempty"`
	ActiveUntil *time.Time     `json:"active_until,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ActiveAt reports whether the rule is switched on and inside its activity
// window at the given instant. Open-ended bounds are allowed.
func (r Rule) ActiveAt(t time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ActiveFrom != nil && t.Before(*r.ActiveFrom) {
		return false
	}
	if r.ActiveUntil != nil && t.After(*r.ActiveUntil) {
		return false
	}
	return true
}

// Segment groups profiles by a rule tree. Membership is computed on demand,
// never stored.
type Segment struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Rules       ConditionGroup `json:"rules"`
	Dynamic     bool           `json:"dynamic"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
