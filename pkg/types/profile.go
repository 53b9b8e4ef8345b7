package types

import "time"

// Profile is the stored identity a subject id resolves to. Subjects without
// a profile are still served decisions; they just evaluate against an
// anonymous context.
type Profile struct {
	ID             string         `json:"id"`
	ExternalUserID string         `json:"external_user_id,omitempty"`
	Email          string         `json:"email,omitempty"`
	FirstName      string         `json:"first_name,omitempty"`
	LastName       string         `json:"last_name,omitempty"`
	Timezone       string         `json:"timezone,omitempty"`
	Locale         string         `json:"locale,omitempty"`
	Traits         map[string]any `json:"traits,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
