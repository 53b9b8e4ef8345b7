package types

import "time"

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus string

const (
	StatusDraft     ExperimentStatus = "DRAFT"
	StatusRunning   ExperimentStatus = "RUNNING"
	StatusPaused    ExperimentStatus = "PAUSED"
	StatusConcluded ExperimentStatus = "CONCLUDED"
	StatusArchived  ExperimentStatus = "ARCHIVED"
)

// Variant is one arm of an experiment. Weights are relative traffic shares
// that sum to ~100 across the experiment. Exactly one variant is the control.
type Variant struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	IsControl   bool           `json:"is_control"`
	Weight      float64        `json:"weight"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Experiment is a full A/B experiment definition.
type Experiment struct {
	ID             string           `json:"id"`
	Key            string           `json:"key"`
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	Hypothesis     string           `json:"hypothesis,omitempty"`
	Status         ExperimentStatus `json:"status"`
	TrafficPercent float64          `json:"traffic_percent"`
	TargetSegments []string         `json:"target_segments,omitempty"`
	StartDate      *time.Time       `json:"start_date,omitempty"`
	EndDate        *time.Time       `json:"end_date,omitempty"`
	Variants       []Variant        `json:"variants"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ControlVariant returns the control arm. Definitions are validated at
// creation to carry exactly one; the bool guards malformed stored data.
func (e Experiment) ControlVariant() (Variant, bool) {
	for _, v := range e.Variants {
		if v.IsControl {
			return v, true
		}
	}
	return Variant{}, false
}

// Assignment records which variant a subject was given. At most one row
// exists per (experiment, subject) pair, ever.
type Assignment struct {
	ExperimentKey string    `json:"experiment_key"`
	SubjectID     string    `json:"subject_id"`
	VariantKey    string    `json:"variant_key"`
	AssignedAt    time.Time `json:"assigned_at"`
}

// AssignmentResult is what callers of the assignment endpoint receive.
// Subjects outside experiment traffic get the control variant with
// IsNewAssignment=false and no persisted record.
type AssignmentResult struct {
	ExperimentKey   string         `json:"experiment_key"`
	SubjectID       string         `json:"subject_id"`
	VariantKey      string         `json:"variant_key"`
	Payload         map[string]any `json:"payload,omitempty"`
	IsNewAssignment bool           `json:"is_new_assignment"`
	AssignedAt      time.Time      `json:"assigned_at"`
}

// VariantCounts carries observed conversion counts for one variant,
// supplied by the analytics pipeline when computing results.
type VariantCounts struct {
	Participants int64 `json:"participants"`
	Conversions  int64 `json:"conversions"`
}

// VariantResult is the reported outcome for one variant. Improvement and
// Confidence are only present for non-control variants with control data.
type VariantResult struct {
	VariantKey     string   `json:"variant_key"`
	VariantName    string   `json:"variant_name"`
	IsControl      bool     `json:"is_control"`
	Participants   int64    `json:"participants"`
	Conversions    int64    `json:"conversions"`
	ConversionRate float64  `json:"conversion_rate"`
	Improvement    *float64 `json:"improvement,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

// ExperimentResults is the aggregate report for an experiment.
type ExperimentResults struct {
	ExperimentKey     string           `json:"experiment_key"`
	Status            ExperimentStatus `json:"status"`
	TotalParticipants int64            `json:"total_participants"`
	VariantResults    []VariantResult  `json:"variant_results"`
	WinningVariant    string           `json:"winning_variant,omitempty"`
	LastUpdated       time.Time        `json:"last_updated"`
}

// ExperimentConclusion records the final verdict of a concluded experiment.
type ExperimentConclusion struct {
	ExperimentKey  string    `json:"experiment_key"`
	WinningVariant string    `json:"winning_variant"`
	Conclusion     string    `json:"conclusion,omitempty"`
	SampleSize     int64     `json:"sample_size"`
	ConcludedAt    time.Time `json:"concluded_at"`
}
