package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/portalescola/portalescola/internal/session"
	"github.com/portalescola/portalescola/internal/shared"
)

// PGIdentityProvider is the shipped IdentityProvider: accounts and
// refresh tokens in PostgreSQL, bcrypt password hashes, opaque uuid
// tokens. Hosted providers can replace it behind the interface.
type PGIdentityProvider struct {
	pool     *pgxpool.Pool
	tokenTTL time.Duration
}

// NewPGIdentityProvider constructs the provider. tokenTTL bounds access
// token validity.
func NewPGIdentityProvider(pool *pgxpool.Pool, tokenTTL time.Duration) *PGIdentityProvider {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &PGIdentityProvider{pool: pool, tokenTTL: tokenTTL}
}

// SignInWithPassword verifies credentials and issues token material.
func (p *PGIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (session.TokenPayload, error) {
	var (
		userID       string
		passwordHash string
		isActive     bool
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, password_hash, is_active FROM accounts WHERE email = $1`, email).
		Scan(&userID, &passwordHash, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.TokenPayload{}, shared.ErrInvalidCredentials
		}
		return session.TokenPayload{}, fmt.Errorf("auth: lookup account: %w", err)
	}
	if !isActive {
		return session.TokenPayload{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return session.TokenPayload{}, shared.ErrInvalidCredentials
	}
	return p.issue(ctx, userID)
}

// RefreshToken rotates a refresh token for fresh token material.
func (p *PGIdentityProvider) RefreshToken(ctx context.Context, refreshToken string) (session.TokenPayload, error) {
	var (
		userID    string
		expiresAt time.Time
	)
	err := p.pool.QueryRow(ctx,
		`DELETE FROM auth_tokens WHERE refresh_token = $1 RETURNING user_id, refresh_expires_at`, refreshToken).
		Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session.TokenPayload{}, shared.ErrSessionRefreshFailed
		}
		return session.TokenPayload{}, fmt.Errorf("auth: consume refresh token: %w", err)
	}
	if !expiresAt.After(time.Now()) {
		return session.TokenPayload{}, shared.ErrSessionRefreshFailed
	}
	return p.issue(ctx, userID)
}

// SignOut revokes the token pair behind an access token. Unknown tokens
// are a no-op.
func (p *PGIdentityProvider) SignOut(ctx context.Context, accessToken string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE access_token = $1`, accessToken); err != nil {
		return fmt.Errorf("auth: revoke tokens: %w", err)
	}
	return nil
}

func (p *PGIdentityProvider) issue(ctx context.Context, userID string) (session.TokenPayload, error) {
	now := time.Now().UTC()
	payload := session.TokenPayload{
		UserID:       userID,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    now.Add(p.tokenTTL),
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO auth_tokens (refresh_token, access_token, user_id, refresh_expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		payload.RefreshToken, payload.AccessToken, userID, now.Add(30*24*time.Hour), now)
	if err != nil {
		return session.TokenPayload{}, fmt.Errorf("auth: persist tokens: %w", err)
	}
	return payload, nil
}

var _ IdentityProvider = (*PGIdentityProvider)(nil)
