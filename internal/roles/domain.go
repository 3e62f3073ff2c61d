// Package roles implements the dynamic role registry: administratively
// defined, assignable permission bundles layered on top of the static
// role baseline.
package roles

import (
	"time"

	"github.com/portalescola/portalescola/internal/authz"
)

// DynamicRole is an assignable bundle of module permissions. Inactive
// roles are excluded from resolution but retained for history; prefer
// deactivation over deletion while assignments may still reference the
// id.
type DynamicRole struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Permissions authz.ModulePermissions `json:"permissions"`
	IsActive    bool                    `json:"isActive"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// RoleUpdate carries the fields of a partial role update. Nil fields
// are left untouched.
type RoleUpdate struct {
	Name        *string
	Description *string
	Permissions authz.ModulePermissions
	IsActive    *bool
}
