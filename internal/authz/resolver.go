package authz

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/portalescola/portalescola/internal/observability"
)

// RoleSource supplies the permissions of active dynamic roles. A false
// return means the role is unknown or inactive; the resolver treats
// both as contributing nothing.
type RoleSource interface {
	ActiveRolePermissions(id string) (ModulePermissions, bool)
}

// Resolver computes a user's effective permission set from the static
// baseline plus assigned dynamic roles, caching results per user.
// Concurrent resolutions for the same user during a cache miss collapse
// into a single computation.
type Resolver struct {
	source  RoleSource
	cache   *Cache
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewResolver constructs a Resolver. metrics may be nil.
func NewResolver(source RoleSource, cache *Cache, metrics *observability.Metrics) *Resolver {
	return &Resolver{source: source, cache: cache, metrics: metrics}
}

// Cache exposes the injected permission cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve computes the effective permission set for a role level and a
// list of dynamic role ids, without touching the cache. Missing or
// inactive ids are skipped; absence is not a fault. The merge is
// per-action OR: order of ids does not matter, duplicates change
// nothing, and the result is always a superset of the baseline.
func (r *Resolver) Resolve(role RoleLevel, dynamicRoleIDs []string) ModulePermissions {
	resolved := Baseline(role).Normalized()
	if r.source == nil {
		return resolved
	}
	for _, id := range dynamicRoleIDs {
		permissions, ok := r.source.ActiveRolePermissions(id)
		if !ok {
			continue
		}
		resolved.Merge(permissions)
	}
	return resolved
}

// AssignmentLoader fetches a user's role level and dynamic role ids.
// It is only invoked on a cache miss, so a cache hit costs no profile
// round trip.
type AssignmentLoader func(ctx context.Context) (RoleLevel, []string, error)

// Permissions returns the user's effective permission set, serving from
// the cache when a live entry exists and otherwise loading assignments,
// resolving and populating it. On cancellation the waiting caller gets
// ctx.Err() and commits nothing (an in-flight shared computation may
// still complete for the others waiting on it).
func (r *Resolver) Permissions(ctx context.Context, userID string, load AssignmentLoader) (ModulePermissions, error) {
	if cached, ok := r.cache.Get(userID); ok {
		if r.metrics != nil {
			r.metrics.PermissionCacheHit()
		}
		return cached, nil
	}
	if r.metrics != nil {
		r.metrics.PermissionCacheMiss()
	}

	results := r.group.DoChan(userID, func() (interface{}, error) {
		role, dynamicRoleIDs, err := load(ctx)
		if err != nil {
			return nil, err
		}
		started := time.Now()
		resolved := r.Resolve(role, dynamicRoleIDs)
		r.cache.Set(userID, resolved)
		if r.metrics != nil {
			r.metrics.ObserveResolve(time.Since(started))
		}
		return resolved, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(ModulePermissions).Clone(), nil
	}
}

// Invalidate removes the user's cached resolution so the next
// Permissions call recomputes.
func (r *Resolver) Invalidate(userID string) {
	r.cache.Remove(userID)
}
