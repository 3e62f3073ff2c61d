package roles

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/portalescola/portalescola/internal/authz"
)

// RepositoryPort defines persistence operations for dynamic roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]DynamicRole, error)
	SaveRole(ctx context.Context, role DynamicRole) error
	DeleteRole(ctx context.Context, id string) error
}

// ChangeNotifier is told about role mutations so cached resolutions of
// affected users can be invalidated ahead of the cache TTL.
type ChangeNotifier interface {
	RoleChanged(ctx context.Context, roleID string) error
}

// Service combines the in-memory registry with write-through
// persistence and change notification. The repository and notifier are
// both optional; without them the registry is memory-only and role
// edits take effect within one cache TTL window.
type Service struct {
	registry *Registry
	repo     RepositoryPort
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewService builds a Service around registry.
func NewService(registry *Registry, repo RepositoryPort, notifier ChangeNotifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{registry: registry, repo: repo, notifier: notifier, logger: logger}
}

// Registry exposes the underlying catalog, e.g. as the resolver's role
// source.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Hydrate loads persisted roles into the registry. Called once at boot.
func (s *Service) Hydrate(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	persisted, err := s.repo.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("roles: hydrate: %w", err)
	}
	s.registry.Load(persisted)
	return nil
}

// AddRole creates a role in the registry and persists it. A newly
// created role has no assignments yet, so no invalidation is needed.
func (s *Service) AddRole(ctx context.Context, name, description string, permissions authz.ModulePermissions, isActive bool) (DynamicRole, error) {
	role, err := s.registry.AddRole(name, description, permissions, isActive)
	if err != nil {
		return DynamicRole{}, err
	}
	if s.repo != nil {
		if err := s.repo.SaveRole(ctx, role); err != nil {
			s.registry.RemoveRole(role.ID)
			return DynamicRole{}, err
		}
	}
	return role, nil
}

// UpdateRole applies a partial update and notifies so users carrying
// the role get recomputed permissions before the TTL would expire them.
func (s *Service) UpdateRole(ctx context.Context, id string, update RoleUpdate) (DynamicRole, error) {
	role, err := s.registry.UpdateRole(id, update)
	if err != nil {
		return DynamicRole{}, err
	}
	if s.repo != nil {
		if err := s.repo.SaveRole(ctx, role); err != nil {
			return DynamicRole{}, err
		}
	}
	s.notifyChanged(ctx, id)
	return role, nil
}

// RemoveRole deletes the role. Assignments referencing the id are left
// in place; the resolver treats the missing role as granting nothing.
func (s *Service) RemoveRole(ctx context.Context, id string) (bool, error) {
	if removed := s.registry.RemoveRole(id); !removed {
		return false, nil
	}
	if s.repo != nil {
		if err := s.repo.DeleteRole(ctx, id); err != nil {
			return true, err
		}
	}
	s.notifyChanged(ctx, id)
	return true, nil
}

// GetRole fetches a role by id.
func (s *Service) GetRole(id string) (DynamicRole, bool) {
	return s.registry.GetRole(id)
}

// ListRoles returns every role.
func (s *Service) ListRoles() []DynamicRole {
	return s.registry.ListRoles()
}

// ListActiveRoles returns active roles only.
func (s *Service) ListActiveRoles() []DynamicRole {
	return s.registry.ListActiveRoles()
}

// HasPermission checks one role for one module/action grant.
func (s *Service) HasPermission(id, module string, action authz.Action) bool {
	return s.registry.HasPermission(id, module, action)
}

func (s *Service) notifyChanged(ctx context.Context, roleID string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.RoleChanged(ctx, roleID); err != nil {
		// Invalidation is best effort; the cache TTL still bounds staleness.
		s.logger.Warn("role change notification", slog.String("role_id", roleID), slog.Any("error", err))
	}
}
