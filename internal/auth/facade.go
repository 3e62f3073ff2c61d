package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/portalescola/portalescola/internal/authz"
	"github.com/portalescola/portalescola/internal/observability"
	"github.com/portalescola/portalescola/internal/session"
	"github.com/portalescola/portalescola/internal/shared"
)

// AuthEvent identifies a change of authentication state.
type AuthEvent string

// Auth state change events.
const (
	EventSignedIn      AuthEvent = "signed_in"
	EventSignedOut     AuthEvent = "signed_out"
	EventRefreshFailed AuthEvent = "refresh_failed"
)

// StateCallback observes auth state changes, mirroring provider-side
// subscriptions so consumers can keep local state synchronized.
type StateCallback func(event AuthEvent, userID string)

// Facade orchestrates the identity provider, profile store, permission
// resolver and session manager behind the only surface consuming
// applications are permitted to depend on.
type Facade struct {
	provider IdentityProvider
	profiles ProfileStore
	sessions *session.Manager
	resolver *authz.Resolver
	metrics  *observability.Metrics
	logger   *slog.Logger
	timeout  time.Duration

	mu        sync.RWMutex
	callbacks []StateCallback
}

// NewFacade constructs a Facade. timeout bounds every identity-provider
// and profile-store call; metrics may be nil.
func NewFacade(provider IdentityProvider, profiles ProfileStore, sessions *session.Manager, resolver *authz.Resolver, metrics *observability.Metrics, logger *slog.Logger, timeout time.Duration) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Facade{
		provider: provider,
		profiles: profiles,
		sessions: sessions,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
		timeout:  timeout,
	}
}

// OnAuthStateChange registers a callback fired on sign-in, sign-out and
// refresh failure.
func (f *Facade) OnAuthStateChange(cb StateCallback) {
	f.mu.Lock()
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

// SignIn verifies credentials, loads the profile, resolves and caches
// permissions and opens a session. The commit is all-or-nothing: on any
// failure or cancellation no session and no cache entry survive.
func (f *Facade) SignIn(ctx context.Context, credentials Credentials) (User, session.Session, error) {
	payload, err := f.callProvider(ctx, func(ctx context.Context) (session.TokenPayload, error) {
		return f.provider.SignInWithPassword(ctx, credentials.Email, credentials.Password)
	})
	if err != nil {
		f.signInMetric(err)
		return User{}, session.Session{}, err
	}

	profile, err := f.getProfile(ctx, payload.UserID)
	if err != nil {
		f.signInMetric(err)
		return User{}, session.Session{}, err
	}

	resolved := f.resolver.Resolve(profile.Role, profile.DynamicRoleIDs)
	if err := ctx.Err(); err != nil {
		return User{}, session.Session{}, err
	}
	f.resolver.Cache().Set(payload.UserID, resolved)

	sess, err := f.sessions.Create(ctx, payload)
	if err != nil {
		f.resolver.Cache().Remove(payload.UserID)
		f.signInMetric(err)
		return User{}, session.Session{}, f.classify(err)
	}

	f.metrics.SignIn("success")
	f.emit(EventSignedIn, payload.UserID)
	return f.buildUser(profile, resolved), sess, nil
}

// SignOut revokes the user's tokens at the provider and invalidates the
// session, which cascades to the permission cache.
func (f *Facade) SignOut(ctx context.Context, userID string) error {
	if sess, err := f.sessions.Get(ctx, userID); err == nil {
		if err := f.callProviderErr(ctx, func(ctx context.Context) error {
			return f.provider.SignOut(ctx, sess.AccessToken)
		}); err != nil {
			// Local invalidation proceeds regardless; the provider-side
			// revocation is retried by token expiry.
			f.logger.Warn("provider sign out", slog.Any("error", err))
		}
	}
	if err := f.sessions.Invalidate(ctx, userID); err != nil {
		return f.classify(err)
	}
	f.emit(EventSignedOut, userID)
	return nil
}

// Refresh exchanges the user's session for a fresh one. A refresh
// failure signs the user out.
func (f *Facade) Refresh(ctx context.Context, userID string) (session.Session, error) {
	sess, err := f.sessions.Get(ctx, userID)
	if err != nil {
		return session.Session{}, err
	}
	refreshed, err := f.sessions.Refresh(ctx, sess)
	if err != nil {
		if errors.Is(err, shared.ErrSessionRefreshFailed) {
			f.emit(EventRefreshFailed, userID)
		}
		return session.Session{}, err
	}
	return refreshed, nil
}

// Session returns the user's current session, refreshing it when the
// access token already expired. A failed refresh surfaces as
// ErrSessionRefreshFailed and the user must sign in again.
func (f *Facade) Session(ctx context.Context, userID string) (session.Session, error) {
	sess, err := f.sessions.Get(ctx, userID)
	if err != nil {
		return session.Session{}, err
	}
	if !sess.IsExpired() {
		return sess, nil
	}
	return f.Refresh(ctx, userID)
}

// Permissions returns the user's effective permission set, cached up to
// the configured TTL.
func (f *Facade) Permissions(ctx context.Context, userID string) (authz.ModulePermissions, error) {
	return f.resolver.Permissions(ctx, userID, func(ctx context.Context) (authz.RoleLevel, []string, error) {
		profile, err := f.getProfile(ctx, userID)
		if err != nil {
			return "", nil, err
		}
		return profile.Role, profile.DynamicRoleIDs, nil
	})
}

// HasPermission reports whether the user may perform action on module.
func (f *Facade) HasPermission(ctx context.Context, userID, module string, action authz.Action) (bool, error) {
	permissions, err := f.Permissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return permissions.Grants(module, action), nil
}

// HasRole reports whether the user's static role level satisfies
// required per the role hierarchy (a coordinator satisfies a teacher
// check).
func (f *Facade) HasRole(ctx context.Context, userID string, required authz.RoleLevel) (bool, error) {
	profile, err := f.getProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	return authz.Satisfies(profile.Role, required), nil
}

// UpdateProfile persists a partial profile change. When the change can
// affect resolved permissions the cached resolution is dropped so the
// next check recomputes instead of serving stale state.
func (f *Facade) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	profile, err := f.profiles.UpdateProfile(ctx, userID, update)
	if err != nil {
		return Profile{}, f.classify(err)
	}
	if update.TouchesPermissions() {
		f.resolver.Invalidate(userID)
	}
	return profile, nil
}

// CurrentUser assembles the User view: profile plus resolved
// permissions.
func (f *Facade) CurrentUser(ctx context.Context, userID string) (User, error) {
	profile, err := f.getProfile(ctx, userID)
	if err != nil {
		return User{}, err
	}
	permissions, err := f.Permissions(ctx, userID)
	if err != nil {
		return User{}, err
	}
	return f.buildUser(profile, permissions), nil
}

// Sessions exposes the session manager for transport-layer token
// lookups.
func (f *Facade) Sessions() *session.Manager {
	return f.sessions
}

func (f *Facade) buildUser(profile Profile, permissions authz.ModulePermissions) User {
	return User{
		ID:                  profile.UserID,
		Email:               profile.Email,
		Name:                profile.Name,
		Role:                profile.Role,
		DynamicRoleIDs:      profile.DynamicRoleIDs,
		ResolvedPermissions: permissions,
	}
}

func (f *Facade) getProfile(ctx context.Context, userID string) (Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	profile, err := f.profiles.GetProfileByID(ctx, userID)
	if err != nil {
		return Profile{}, f.classify(err)
	}
	return profile, nil
}

func (f *Facade) callProvider(ctx context.Context, call func(context.Context) (session.TokenPayload, error)) (session.TokenPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	payload, err := call(ctx)
	if err != nil {
		return session.TokenPayload{}, f.classify(err)
	}
	return payload, nil
}

func (f *Facade) callProviderErr(ctx context.Context, call func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := call(ctx); err != nil {
		return f.classify(err)
	}
	return nil
}

// classify maps upstream failures onto the facade's error kinds.
// Timeouts and I/O failures become ErrUpstreamUnavailable (retryable);
// the recoverable kinds pass through untouched.
func (f *Facade) classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrProfileNotFound),
		errors.Is(err, shared.ErrSessionExpired),
		errors.Is(err, shared.ErrSessionRefreshFailed),
		errors.Is(err, shared.ErrNotFound):
		return err
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", shared.ErrUpstreamUnavailable, err)
	}
}

func (f *Facade) signInMetric(err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		f.metrics.SignIn("invalid")
	case errors.Is(err, shared.ErrUpstreamUnavailable):
		f.metrics.SignIn("upstream")
	default:
		f.metrics.SignIn("error")
	}
}

func (f *Facade) emit(event AuthEvent, userID string) {
	f.mu.RLock()
	callbacks := make([]StateCallback, len(f.callbacks))
	copy(callbacks, f.callbacks)
	f.mu.RUnlock()
	for _, cb := range callbacks {
		cb(event, userID)
	}
}
