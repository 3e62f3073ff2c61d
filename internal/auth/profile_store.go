package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalescola/portalescola/internal/authz"
	"github.com/portalescola/portalescola/internal/shared"
)

// PGProfileStore implements ProfileStore and AssignmentIndex on
// PostgreSQL.
type PGProfileStore struct {
	pool *pgxpool.Pool
}

// NewPGProfileStore constructs a store.
func NewPGProfileStore(pool *pgxpool.Pool) *PGProfileStore {
	return &PGProfileStore{pool: pool}
}

// GetProfileByID fetches one profile.
func (s *PGProfileStore) GetProfileByID(ctx context.Context, userID string) (Profile, error) {
	var (
		profile     Profile
		role        string
		preferences []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, email, name, role, dynamic_role_ids, preferences, created_at, updated_at
		FROM profiles WHERE user_id = $1`, userID).
		Scan(&profile.UserID, &profile.Email, &profile.Name, &role, &profile.DynamicRoleIDs, &preferences, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrProfileNotFound
		}
		return Profile{}, fmt.Errorf("auth: get profile: %w", err)
	}
	profile.Role = authz.RoleLevel(role)
	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &profile.Preferences); err != nil {
			return Profile{}, fmt.Errorf("auth: decode preferences: %w", err)
		}
	}
	return profile, nil
}

// UpdateProfile applies a partial update and returns the stored result.
func (s *PGProfileStore) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (Profile, error) {
	current, err := s.GetProfileByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if update.Name != nil {
		current.Name = *update.Name
	}
	if update.Role != nil {
		current.Role = *update.Role
	}
	if update.DynamicRoleIDs != nil {
		current.DynamicRoleIDs = update.DynamicRoleIDs
	}
	if update.Preferences != nil {
		current.Preferences = update.Preferences
	}
	preferences, err := json.Marshal(current.Preferences)
	if err != nil {
		return Profile{}, fmt.Errorf("auth: encode preferences: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles
		SET name = $2, role = $3, dynamic_role_ids = $4, preferences = $5, updated_at = now()
		WHERE user_id = $1`,
		userID, current.Name, string(current.Role), current.DynamicRoleIDs, preferences)
	if err != nil {
		return Profile{}, fmt.Errorf("auth: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Profile{}, shared.ErrProfileNotFound
	}
	return s.GetProfileByID(ctx, userID)
}

// ListUserIDsByDynamicRole returns the ids of users assigned the role.
func (s *PGProfileStore) ListUserIDsByDynamicRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM profiles WHERE $1 = ANY(dynamic_role_ids)`, roleID)
	if err != nil {
		return nil, fmt.Errorf("auth: list assignments: %w", err)
	}
	defer rows.Close()
	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("auth: scan assignment: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: list assignments: %w", err)
	}
	return userIDs, nil
}

var (
	_ ProfileStore    = (*PGProfileStore)(nil)
	_ AssignmentIndex = (*PGProfileStore)(nil)
)
