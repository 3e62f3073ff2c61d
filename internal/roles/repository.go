package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalescola/portalescola/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence for dynamic roles.
// The registry remains the source consulted at resolution time; the
// repository exists so the catalog survives restarts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns every persisted role.
func (r *Repository) ListRoles(ctx context.Context) ([]DynamicRole, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, permissions, is_active, created_at, updated_at FROM dynamic_roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()
	var roles []DynamicRole
	for rows.Next() {
		var role DynamicRole
		var permissions []byte
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &permissions, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		if err := json.Unmarshal(permissions, &role.Permissions); err != nil {
			return nil, fmt.Errorf("roles: decode permissions for %s: %w", role.ID, err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return roles, nil
}

// SaveRole upserts a role. A name collision surfaces as a
// ValidationError so the admin API reports it alongside other input
// problems.
func (r *Repository) SaveRole(ctx context.Context, role DynamicRole) error {
	permissions, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("roles: encode permissions: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO dynamic_roles (id, name, description, permissions, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			permissions = EXCLUDED.permissions,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		role.ID, role.Name, role.Description, permissions, role.IsActive, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.NewValidationError(fmt.Sprintf("role name %q is already in use", role.Name))
		}
		return fmt.Errorf("roles: save: %w", err)
	}
	return nil
}

// DeleteRole removes a persisted role.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM dynamic_roles WHERE id = $1`, id); err != nil {
		return fmt.Errorf("roles: delete: %w", err)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
