package roles

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/portalescola/portalescola/internal/authz"
	"github.com/portalescola/portalescola/internal/shared"
)

// Registry is the in-memory catalog of dynamic roles, consulted by the
// permission resolver on every cache miss. Reads are served under a
// read lock; mutations take the write lock.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]DynamicRole
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{roles: make(map[string]DynamicRole)}
}

// Load replaces the catalog contents, normalising permission keys.
// Used once at boot to hydrate from persistence.
func (r *Registry) Load(roles []DynamicRole) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles = make(map[string]DynamicRole, len(roles))
	for _, role := range roles {
		role.Permissions = role.Permissions.Normalized()
		r.roles[role.ID] = role
	}
}

// AddRole validates the input, assigns an id and timestamps, and stores
// the role. All validation problems are reported together as one
// ValidationError. An empty permission map is valid and grants nothing;
// an absent (nil) map is not.
func (r *Registry) AddRole(name, description string, permissions authz.ModulePermissions, isActive bool) (DynamicRole, error) {
	var messages []string
	name = strings.TrimSpace(name)
	if name == "" {
		messages = append(messages, "name must not be empty")
	}
	if permissions == nil {
		messages = append(messages, "permissions must be provided (an empty map grants nothing)")
	}
	if len(messages) > 0 {
		return DynamicRole{}, shared.NewValidationError(messages...)
	}

	now := time.Now().UTC()
	role := DynamicRole{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Permissions: permissions.Normalized(),
		IsActive:    isActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	r.roles[role.ID] = role
	r.mu.Unlock()
	return role, nil
}

// UpdateRole merges the non-nil fields of update into the stored role
// and bumps UpdatedAt. Cached resolutions are not touched here; the
// service layer triggers invalidation of affected users.
func (r *Registry) UpdateRole(id string, update RoleUpdate) (DynamicRole, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return DynamicRole{}, shared.ErrNotFound
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return DynamicRole{}, shared.NewValidationError("name must not be empty")
		}
		role.Name = name
	}
	if update.Description != nil {
		role.Description = strings.TrimSpace(*update.Description)
	}
	if update.Permissions != nil {
		role.Permissions = update.Permissions.Normalized()
	}
	if update.IsActive != nil {
		role.IsActive = *update.IsActive
	}
	role.UpdatedAt = time.Now().UTC()
	r.roles[id] = role
	return role, nil
}

// RemoveRole deletes the role, reporting whether it existed. User
// assignments are not pruned; the resolver tolerates dangling ids.
func (r *Registry) RemoveRole(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return false
	}
	delete(r.roles, id)
	return true
}

// GetRole fetches a role by id.
func (r *Registry) GetRole(id string) (DynamicRole, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if ok {
		role.Permissions = role.Permissions.Clone()
	}
	return role, ok
}

// ListRoles returns every role ordered by name.
func (r *Registry) ListRoles() []DynamicRole {
	return r.list(false)
}

// ListActiveRoles returns the roles with IsActive set, ordered by name.
func (r *Registry) ListActiveRoles() []DynamicRole {
	return r.list(true)
}

func (r *Registry) list(activeOnly bool) []DynamicRole {
	r.mu.RLock()
	roles := make([]DynamicRole, 0, len(r.roles))
	for _, role := range r.roles {
		if activeOnly && !role.IsActive {
			continue
		}
		role.Permissions = role.Permissions.Clone()
		roles = append(roles, role)
	}
	r.mu.RUnlock()
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}

// HasPermission reports whether the role is active and grants the
// action on the module. Admin on a module implies every action.
func (r *Registry) HasPermission(id, module string, action authz.Action) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok || !role.IsActive {
		return false
	}
	return role.Permissions.Grants(module, action)
}

// ActiveRolePermissions implements authz.RoleSource: it yields the
// permissions of an active role and a false for unknown or inactive
// ids, which the resolver skips silently.
func (r *Registry) ActiveRolePermissions(id string) (authz.ModulePermissions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[id]
	if !ok || !role.IsActive {
		return nil, false
	}
	return role.Permissions.Clone(), true
}
