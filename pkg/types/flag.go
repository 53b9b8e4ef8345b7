package types

import (
	"encoding/json"
	"time"
)

// FlagType is the value type a flag resolves to.
type FlagType string

const (
	FlagBoolean FlagType = "boolean"
	FlagString  FlagType = "string"
	FlagNumber  FlagType = "number"
	FlagJSON    FlagType = "json"
)

// FlagTargeting is one entry of a flag's ordered targeting list. The first
// entry whose conditions match and whose rollout includes the subject wins.
type FlagTargeting struct {
	Conditions        ConditionGroup `json:"conditions"`
	Value             any            `json:"value"`
	RolloutPercentage float64        `json:"rollout_percentage"`
}

// UnmarshalJSON defaults a missing rollout percentage to 100 so that a
// targeting entry without an explicit rollout applies to every match.
func (t *FlagTargeting) UnmarshalJSON(data []byte) error {
	type alias FlagTargeting
	tmp := struct {
		*alias
		RolloutPercentage *float64 `json:"rollout_percentage"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.RolloutPercentage == nil {
		t.RolloutPercentage = 100
	} else {
		t.RolloutPercentage = *tmp.RolloutPercentage
	}
	return nil
}

// Flag is a feature flag definition, stored per environment.
type Flag struct {
	Key          string          `json:"key"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Environment  string          `json:"environment"`
	Type         FlagType        `json:"type"`
	DefaultValue any             `json:"default_value"`
	Targeting    []FlagTargeting `json:"targeting,omitempty"`
	Active       bool            `json:"active"`
	Tags         []string        `json:"tags,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// FlagEvaluation is the outcome of evaluating one flag for one subject.
// MatchedRule is nil when the default value was served.
type FlagEvaluation struct {
	FlagKey     string    `json:"flag_key"`
	Value       any       `json:"value"`
	IsEnabled   bool      `json:"is_enabled"`
	MatchedRule *int      `json:"matched_rule,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}
