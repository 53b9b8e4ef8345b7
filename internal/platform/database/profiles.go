package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marketfold/go-targeting-service/pkg/types"
)

// GetProfileBySubject resolves a subject identifier to a profile, matching
// the internal id first and falling back to the external user id.
func (r *Repository) GetProfileBySubject(ctx context.Context, subjectID string) (types.Profile, error) {
	const q = `
		SELECT id, external_user_id, email, first_name, last_name,
		       timezone, locale, traits, created_at, updated_at
		FROM profiles
		WHERE id = $1 OR external_user_id = $1
		ORDER BY (id = $1) DESC
		LIMIT 1`

	var p types.Profile
	err := r.pool.QueryRow(ctx, q, subjectID).Scan(
		&p.ID, &p.ExternalUserID, &p.Email, &p.FirstName, &p.LastName,
		&p.Timezone, &p.Locale, &p.Traits, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Profile{}, fmt.Errorf("profile for subject %q: %w", subjectID, ErrNotFound)
		}
		return types.Profile{}, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}
