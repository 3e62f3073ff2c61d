// Package auth exposes the authentication facade consumed by the
// portal applications: sign-in/out, permission and role queries, and
// profile updates, backed by an external identity provider and profile
// store.
package auth

import (
	"time"

	"github.com/portalescola/portalescola/internal/authz"
)

// User is the authenticated account as seen by consuming applications.
// ResolvedPermissions is derived state; it is always reproducible from
// Role, DynamicRoleIDs and the current registry contents.
type User struct {
	ID                  string                  `json:"id"`
	Email               string                  `json:"email"`
	Name                string                  `json:"name"`
	Role                authz.RoleLevel         `json:"role"`
	DynamicRoleIDs      []string                `json:"dynamicRoleIds"`
	ResolvedPermissions authz.ModulePermissions `json:"resolvedPermissions"`
}

// Profile is the profile-store record for a user.
type Profile struct {
	UserID         string            `json:"userId"`
	Email          string            `json:"email"`
	Name           string            `json:"name"`
	Role           authz.RoleLevel   `json:"role"`
	DynamicRoleIDs []string          `json:"dynamicRoleIds"`
	Preferences    map[string]string `json:"preferences"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// ProfileUpdate carries a partial profile change. Nil fields are left
// untouched; a non-nil DynamicRoleIDs replaces the whole assignment
// list.
type ProfileUpdate struct {
	Name           *string
	Role           *authz.RoleLevel
	DynamicRoleIDs []string
	Preferences    map[string]string
}

// TouchesPermissions reports whether applying the update can change the
// user's resolved permissions, in which case the cached resolution must
// not be served again.
func (u ProfileUpdate) TouchesPermissions() bool {
	return u.Role != nil || u.DynamicRoleIDs != nil
}

// Credentials are the sign-in inputs.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
