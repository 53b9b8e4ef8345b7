package types

import "time"

// AssignmentEvent is published to Kafka (via the transactional outbox) for
// every newly persisted assignment. Consumers sink these into the analytics
// store; the event is never read back on the decision path.
type AssignmentEvent struct {
	ExperimentKey string         `json:"experiment_key"`
	SubjectID     string         `json:"subject_id"`
	VariantKey    string         `json:"variant_key"`
	AssignedAt    time.Time      `json:"assigned_at"`
	Context       map[string]any `json:"context,omitempty"`
}

// DefinitionEvent notifies downstream caches that a definition changed.
type DefinitionEvent struct {
	Kind      string    `json:"kind"` // flag, segment, rule, experiment
	Key       string    `json:"key"`
	Action    string    `json:"action"` // UPSERT, DELETE
	ChangedAt time.Time `json:"changed_at"`
}
