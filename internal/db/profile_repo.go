package db

import (
	"context"

	"wardalert/internal/types"
)

// ProfileRepository manages rows in the profiles table, keyed by auth user ID.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new ProfileRepository backed by the given database connection.
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Delete removes the profile. A missing profile is not an error.
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, userID); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete profile", err)
	}
	return nil
}
