// Package session owns the authentication token lifecycle: issuance
// wrapping, expiry tracking, refresh and invalidation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portalescola/portalescola/internal/shared"
)

// Session wraps the identity provider's token payload. One active
// session exists per authenticated user context.
type Session struct {
	UserID       string    `json:"userId"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// IsExpired compares the expiry instant to the current time.
func (s Session) IsExpired() bool {
	return !s.ExpiresAt.After(time.Now())
}

// TokenPayload is the raw token material returned by the identity
// provider.
type TokenPayload struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Refresher exchanges a refresh token for fresh token material at the
// identity provider.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (TokenPayload, error)
}

// PermissionInvalidator removes a user's cached permission resolution.
// Session invalidation always cascades through it: the permission cache
// may expire on its own, but a dropped session forces a fresh
// resolution next time.
type PermissionInvalidator interface {
	Remove(userID string)
}

// Manager stores sessions in Redis keyed by user id.
type Manager struct {
	client      *redis.Client
	refresher   Refresher
	invalidator PermissionInvalidator
	ttl         time.Duration
}

// NewManager constructs a Manager. ttl bounds how long a session record
// is kept after its last write; the session's own ExpiresAt still
// governs token validity.
func NewManager(client *redis.Client, refresher Refresher, invalidator PermissionInvalidator, ttl time.Duration) *Manager {
	return &Manager{client: client, refresher: refresher, invalidator: invalidator, ttl: ttl}
}

// Create wraps provider token material into a Session and persists it.
func (m *Manager) Create(ctx context.Context, payload TokenPayload) (Session, error) {
	sess := Session{
		UserID:       payload.UserID,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    payload.ExpiresAt,
	}
	if err := m.store(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get loads the user's session. A missing record returns
// shared.ErrSessionExpired.
func (m *Manager) Get(ctx context.Context, userID string) (Session, error) {
	raw, err := m.client.Get(ctx, m.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, shared.ErrSessionExpired
		}
		return Session{}, fmt.Errorf("session: get: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("session: decode: %w", err)
	}
	return sess, nil
}

// Refresh exchanges the session's refresh token for new token material
// and persists the replacement. On provider failure the stored session
// is dropped and ErrSessionRefreshFailed returned; the caller must
// treat the user as signed out.
func (m *Manager) Refresh(ctx context.Context, sess Session) (Session, error) {
	if m.refresher == nil {
		return Session{}, shared.ErrSessionRefreshFailed
	}
	payload, err := m.refresher.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled: commit nothing, keep the stored session as-is.
			return Session{}, ctx.Err()
		}
		_ = m.drop(ctx, sess.UserID)
		if m.invalidator != nil {
			m.invalidator.Remove(sess.UserID)
		}
		return Session{}, fmt.Errorf("%w: %v", shared.ErrSessionRefreshFailed, err)
	}
	if payload.UserID == "" {
		payload.UserID = sess.UserID
	}
	return m.Create(ctx, payload)
}

// Invalidate clears the user's session state and removes the cached
// permission resolution.
func (m *Manager) Invalidate(ctx context.Context, userID string) error {
	if m.invalidator != nil {
		m.invalidator.Remove(userID)
	}
	return m.drop(ctx, userID)
}

// LookupAccessToken resolves an access token to its session. Stale
// tokens from before a refresh fail closed even while their index entry
// lingers, because the stored session no longer carries them.
func (m *Manager) LookupAccessToken(ctx context.Context, accessToken string) (Session, error) {
	userID, err := m.client.Get(ctx, m.tokenKey(accessToken)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, shared.ErrSessionExpired
		}
		return Session{}, fmt.Errorf("session: lookup token: %w", err)
	}
	sess, err := m.Get(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if sess.AccessToken != accessToken {
		return Session{}, shared.ErrSessionExpired
	}
	return sess, nil
}

// TTL exposes the configured session record lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) store(ctx context.Context, sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := m.client.Set(ctx, m.key(sess.UserID), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("session: store: %w", err)
	}
	if err := m.client.Set(ctx, m.tokenKey(sess.AccessToken), sess.UserID, m.ttl).Err(); err != nil {
		return fmt.Errorf("session: store token index: %w", err)
	}
	return nil
}

func (m *Manager) drop(ctx context.Context, userID string) error {
	if sess, err := m.Get(ctx, userID); err == nil {
		_ = m.client.Del(ctx, m.tokenKey(sess.AccessToken)).Err()
	}
	if err := m.client.Del(ctx, m.key(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: drop: %w", err)
	}
	return nil
}

func (m *Manager) key(userID string) string {
	return "session:user:" + userID
}

func (m *Manager) tokenKey(accessToken string) string {
	return "session:token:" + accessToken
}
