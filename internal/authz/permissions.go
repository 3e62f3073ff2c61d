// Package authz implements module-level permission resolution for the
// portal applications: a static per-role baseline, additive dynamic
// roles, and a TTL-bounded cache of resolved permission sets.
package authz

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RoleLevel is the static role assigned to every account. The set is
// closed; levels are fixed at definition time.
type RoleLevel string

// Known role levels.
const (
	RoleSuperAdmin       RoleLevel = "super_admin"
	RoleInstitutionAdmin RoleLevel = "institution_admin"
	RoleCoordinator      RoleLevel = "coordinator"
	RoleTeacher          RoleLevel = "teacher"
	RoleSecretary        RoleLevel = "secretary"
	RoleFinancial        RoleLevel = "financial"
	RoleStudent          RoleLevel = "student"
	RoleParent           RoleLevel = "parent"
)

// Action identifies one of the four grantable actions on a module.
type Action string

// Grantable actions.
const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

// Actions is the per-module action set. A module entry always carries
// all four flags; an absent module is equivalent to all-false.
type Actions struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
	Admin  bool `json:"admin"`
}

// Allows reports whether the set grants the action. Admin implies every
// action on the module.
func (a Actions) Allows(action Action) bool {
	if a.Admin {
		return true
	}
	switch action {
	case ActionRead:
		return a.Read
	case ActionWrite:
		return a.Write
	case ActionDelete:
		return a.Delete
	case ActionAdmin:
		return a.Admin
	default:
		return false
	}
}

// or merges two action sets flag-by-flag. Admin on either side expands
// into read/write/delete so checks and merges agree on its meaning.
func (a Actions) or(b Actions) Actions {
	merged := Actions{
		Read:   a.Read || b.Read,
		Write:  a.Write || b.Write,
		Delete: a.Delete || b.Delete,
		Admin:  a.Admin || b.Admin,
	}
	if merged.Admin {
		merged.Read = true
		merged.Write = true
		merged.Delete = true
	}
	return merged
}

// ModulePermissions maps a normalized module key to its action set.
type ModulePermissions map[string]Actions

// Grants reports whether the set allows action on module. The module
// name is normalized before lookup.
func (p ModulePermissions) Grants(module string, action Action) bool {
	if p == nil {
		return false
	}
	return p[NormalizeModule(module)].Allows(action)
}

// Clone returns an independent copy. Cached sets are cloned on every
// read so callers can never mutate shared state.
func (p ModulePermissions) Clone() ModulePermissions {
	if p == nil {
		return nil
	}
	out := make(ModulePermissions, len(p))
	for module, actions := range p {
		out[module] = actions
	}
	return out
}

// Merge ORs other into p module by module and returns p. A module
// present on only one side is treated as all-false on the other before
// the OR, so merging never unsets anything: the operation is additive,
// commutative and idempotent.
func (p ModulePermissions) Merge(other ModulePermissions) ModulePermissions {
	for module, actions := range other {
		key := NormalizeModule(module)
		p[key] = p[key].or(actions)
	}
	return p
}

// Normalized returns a copy with every module key normalized and admin
// expanded into the implied actions.
func (p ModulePermissions) Normalized() ModulePermissions {
	out := make(ModulePermissions, len(p))
	return out.Merge(p)
}

// NormalizeModule lowercases and accent-folds a module name so grants
// and checks agree on keys ("Matrículas" and "matriculas" are the same
// module).
func NormalizeModule(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, name)
	if err != nil {
		return name
	}
	return folded
}
