package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/portalescola/portalescola/internal/shared"
)

type stubRefresher struct {
	payload TokenPayload
	err     error
	calls   int
}

func (s *stubRefresher) RefreshToken(ctx context.Context, refreshToken string) (TokenPayload, error) {
	s.calls++
	if s.err != nil {
		return TokenPayload{}, s.err
	}
	return s.payload, nil
}

type stubInvalidator struct {
	removed []string
}

func (s *stubInvalidator) Remove(userID string) {
	s.removed = append(s.removed, userID)
}

func newTestManager(t *testing.T, refresher Refresher) (*Manager, *stubInvalidator) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	invalidator := &stubInvalidator{}
	return NewManager(client, refresher, invalidator, time.Hour), invalidator
}

func payloadFor(userID, suffix string) TokenPayload {
	return TokenPayload{
		UserID:       userID,
		AccessToken:  "access-" + suffix,
		RefreshToken: "refresh-" + suffix,
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}
}

func TestCreateAndGet(t *testing.T) {
	manager, _ := newTestManager(t, nil)
	ctx := context.Background()

	created, err := manager.Create(ctx, payloadFor("user-1", "a"))
	require.NoError(t, err)
	require.Equal(t, "user-1", created.UserID)
	require.False(t, created.IsExpired())

	fetched, err := manager.Get(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, created.AccessToken, fetched.AccessToken)
	require.Equal(t, created.RefreshToken, fetched.RefreshToken)
}

func TestGetMissingSession(t *testing.T) {
	manager, _ := newTestManager(t, nil)
	_, err := manager.Get(context.Background(), "nobody")
	require.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestLookupAccessToken(t *testing.T) {
	manager, _ := newTestManager(t, nil)
	ctx := context.Background()

	created, err := manager.Create(ctx, payloadFor("user-1", "a"))
	require.NoError(t, err)

	sess, err := manager.LookupAccessToken(ctx, created.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", sess.UserID)

	_, err = manager.LookupAccessToken(ctx, "unknown-token")
	require.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestRefreshRotatesTokens(t *testing.T) {
	refresher := &stubRefresher{payload: payloadFor("user-1", "b")}
	manager, invalidator := newTestManager(t, refresher)
	ctx := context.Background()

	old, err := manager.Create(ctx, payloadFor("user-1", "a"))
	require.NoError(t, err)

	refreshed, err := manager.Refresh(ctx, old)
	require.NoError(t, err)
	require.Equal(t, "access-b", refreshed.AccessToken)
	require.Equal(t, 1, refresher.calls)
	require.Empty(t, invalidator.removed)

	// The new access token resolves; the pre-refresh one fails closed
	// even though its index entry has not expired yet.
	_, err = manager.LookupAccessToken(ctx, "access-b")
	require.NoError(t, err)
	_, err = manager.LookupAccessToken(ctx, old.AccessToken)
	require.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestRefreshKeepsUserIDWhenProviderOmitsIt(t *testing.T) {
	refresher := &stubRefresher{payload: TokenPayload{
		AccessToken:  "access-b",
		RefreshToken: "refresh-b",
		ExpiresAt:    time.Now().Add(time.Hour),
	}}
	manager, _ := newTestManager(t, refresher)
	ctx := context.Background()

	old, err := manager.Create(ctx, payloadFor("user-1", "a"))
	require.NoError(t, err)

	refreshed, err := manager.Refresh(ctx, old)
	require.NoError(t, err)
	require.Equal(t, "user-1", refreshed.UserID)
}

func TestRefreshFailureSignsOut(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("refresh token revoked")}
	manager, invalidator := newTestManager(t, refresher)
	ctx := context.Background()

	old, err := manager.Create(ctx, payloadFor("user-1", "a"))
	require.NoError(t, err)

	_, err = manager.Refresh(ctx, old)
	require.ErrorIs(t, err, shared.ErrSessionRefreshFailed)

	// The stored session is gone and the cached permission resolution
	// dropped with it.
	_, err = manager.Get(ctx, "user-1")
	require.ErrorIs(t, err, shared.ErrSessionExpired)
	require.Equal(t, []string{"user-1"}, invalidator.removed)
}

func TestRefreshCancelledCommitsNothing(t *testing.T) {
	refresher := &stubRefresher{err: context.Canceled}
	manager, invalidator := newTestManager(t, refresher)

	old, err := manager.Create(context.Background(), payloadFor("user-1", "a"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = manager.Refresh(ctx, old)
	require.ErrorIs(t, err, context.Canceled)

	// The session survives; a cancelled refresh is not a sign-out.
	_, err = manager.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.Empty(t, invalidator.removed)
}

func TestRefreshWithoutRefresher(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	manager := NewManager(client, nil, nil, time.Hour)

	_, err := manager.Refresh(context.Background(), Session{UserID: "user-1"})
	require.ErrorIs(t, err, shared.ErrSessionRefreshFailed)
}

func TestInvalidateCascades(t *testing.T) {
	manager, invalidator := newTestManager(t, nil)
	ctx := context.Background()

	created, err := manager.Create(ctx, payloadFor("user-1", "a"))
	require.NoError(t, err)

	require.NoError(t, manager.Invalidate(ctx, "user-1"))
	require.Equal(t, []string{"user-1"}, invalidator.removed)

	_, err = manager.Get(ctx, "user-1")
	require.ErrorIs(t, err, shared.ErrSessionExpired)
	_, err = manager.LookupAccessToken(ctx, created.AccessToken)
	require.ErrorIs(t, err, shared.ErrSessionExpired)
}

func TestInvalidateWithoutSession(t *testing.T) {
	manager, invalidator := newTestManager(t, nil)
	require.NoError(t, manager.Invalidate(context.Background(), "nobody"))
	require.Equal(t, []string{"nobody"}, invalidator.removed)
}

func TestSessionExpiryInstant(t *testing.T) {
	expired := Session{ExpiresAt: time.Now().Add(-time.Minute)}
	require.True(t, expired.IsExpired())

	live := Session{ExpiresAt: time.Now().Add(time.Minute)}
	require.False(t, live.IsExpired())
}
