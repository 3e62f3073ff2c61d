package auth

import (
	"context"

	"github.com/portalescola/portalescola/internal/session"
)

// IdentityProvider is the consumed surface of the external identity
// provider. Credential verification and token issuance live entirely
// behind it.
type IdentityProvider interface {
	// SignInWithPassword verifies credentials and issues token material.
	// Unknown account and wrong password both return
	// shared.ErrInvalidCredentials.
	SignInWithPassword(ctx context.Context, email, password string) (session.TokenPayload, error)
	// RefreshToken exchanges a refresh token for fresh token material.
	RefreshToken(ctx context.Context, refreshToken string) (session.TokenPayload, error)
	// SignOut revokes the tokens behind an access token.
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileStore is the consumed surface of the external profile store.
type ProfileStore interface {
	GetProfileByID(ctx context.Context, userID string) (Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (Profile, error)
}

// AssignmentIndex lists the users carrying a dynamic role, used by the
// invalidation fanout after role edits.
type AssignmentIndex interface {
	ListUserIDsByDynamicRole(ctx context.Context, roleID string) ([]string, error)
}
