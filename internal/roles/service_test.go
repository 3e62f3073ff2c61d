package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/portalescola/portalescola/internal/authz"
)

type memoryRoleRepo struct {
	saved     map[string]DynamicRole
	deleted   []string
	persisted []DynamicRole
	saveErr   error
	deleteErr error
	listErr   error
}

func newMemoryRoleRepo() *memoryRoleRepo {
	return &memoryRoleRepo{saved: make(map[string]DynamicRole)}
}

func (r *memoryRoleRepo) ListRoles(ctx context.Context) ([]DynamicRole, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]DynamicRole(nil), r.persisted...), nil
}

func (r *memoryRoleRepo) SaveRole(ctx context.Context, role DynamicRole) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved[role.ID] = role
	return nil
}

func (r *memoryRoleRepo) DeleteRole(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.deleted = append(r.deleted, id)
	return nil
}

type recordingNotifier struct {
	changed []string
	err     error
}

func (n *recordingNotifier) RoleChanged(ctx context.Context, roleID string) error {
	n.changed = append(n.changed, roleID)
	return n.err
}

func TestServiceHydrate(t *testing.T) {
	repo := newMemoryRoleRepo()
	repo.persisted = []DynamicRole{
		{ID: "r1", Name: "Conselho", IsActive: true, Permissions: authz.ModulePermissions{}},
	}
	svc := NewService(NewRegistry(), repo, nil, nil)

	require.NoError(t, svc.Hydrate(context.Background()))
	_, ok := svc.GetRole("r1")
	require.True(t, ok)
}

func TestServiceHydrateRepoFailure(t *testing.T) {
	repo := newMemoryRoleRepo()
	repo.listErr = errors.New("db down")
	svc := NewService(NewRegistry(), repo, nil, nil)
	require.Error(t, svc.Hydrate(context.Background()))
}

func TestServiceAddRolePersists(t *testing.T) {
	repo := newMemoryRoleRepo()
	notifier := &recordingNotifier{}
	svc := NewService(NewRegistry(), repo, notifier, nil)

	role, err := svc.AddRole(context.Background(), "Auxiliar", "", authz.ModulePermissions{}, true)
	require.NoError(t, err)
	require.Contains(t, repo.saved, role.ID)
	// A fresh role has no assignees, so no invalidation fanout.
	require.Empty(t, notifier.changed)
}

func TestServiceAddRoleRollsBackOnRepoFailure(t *testing.T) {
	repo := newMemoryRoleRepo()
	repo.saveErr = errors.New("db down")
	svc := NewService(NewRegistry(), repo, nil, nil)

	_, err := svc.AddRole(context.Background(), "Auxiliar", "", authz.ModulePermissions{}, true)
	require.Error(t, err)
	require.Empty(t, svc.ListRoles(), "registry must not keep a role the repo rejected")
}

func TestServiceUpdateRoleNotifies(t *testing.T) {
	repo := newMemoryRoleRepo()
	notifier := &recordingNotifier{}
	svc := NewService(NewRegistry(), repo, notifier, nil)

	role, err := svc.AddRole(context.Background(), "Auxiliar", "", authz.ModulePermissions{}, true)
	require.NoError(t, err)

	name := "Auxiliar Administrativo"
	_, err = svc.UpdateRole(context.Background(), role.ID, RoleUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, []string{role.ID}, notifier.changed)
	require.Equal(t, "Auxiliar Administrativo", repo.saved[role.ID].Name)
}

func TestServiceRemoveRoleNotifies(t *testing.T) {
	repo := newMemoryRoleRepo()
	notifier := &recordingNotifier{}
	svc := NewService(NewRegistry(), repo, notifier, nil)

	role, err := svc.AddRole(context.Background(), "Auxiliar", "", authz.ModulePermissions{}, true)
	require.NoError(t, err)

	removed, err := svc.RemoveRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, []string{role.ID}, repo.deleted)
	require.Equal(t, []string{role.ID}, notifier.changed)

	removed, err = svc.RemoveRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.False(t, removed)
	require.Len(t, notifier.changed, 1, "a missed delete must not notify")
}

func TestServiceNotifierFailureIsBestEffort(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("queue down")}
	svc := NewService(NewRegistry(), nil, notifier, nil)

	role, err := svc.AddRole(context.Background(), "Auxiliar", "", authz.ModulePermissions{}, true)
	require.NoError(t, err)

	active := false
	// Notification failure must not fail the edit; the cache TTL still
	// bounds staleness.
	_, err = svc.UpdateRole(context.Background(), role.ID, RoleUpdate{IsActive: &active})
	require.NoError(t, err)
	require.Equal(t, []string{role.ID}, notifier.changed)
}

func TestServiceMemoryOnly(t *testing.T) {
	svc := NewService(NewRegistry(), nil, nil, nil)
	require.NoError(t, svc.Hydrate(context.Background()))

	role, err := svc.AddRole(context.Background(), "Auxiliar", "", authz.ModulePermissions{
		authz.ModuleAgenda: {Read: true},
	}, true)
	require.NoError(t, err)
	require.True(t, svc.HasPermission(role.ID, authz.ModuleAgenda, authz.ActionRead))

	removed, err := svc.RemoveRole(context.Background(), role.ID)
	require.NoError(t, err)
	require.True(t, removed)
}
