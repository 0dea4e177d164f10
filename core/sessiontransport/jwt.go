package sessiontransport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/sessionhub/pkg/jwt"
)

// Identity is who an access token speaks for.
type Identity struct {
	PrincipalID  string
	SessionToken string
}

// Verifier turns an access token into an Identity. It checks signature and
// expiry only; whether the session still exists is up to the caller.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// JWT issues and verifies access tokens carrying the session token claim.
type JWT struct {
	service   *jwt.Service
	accessTTL time.Duration
	issuer    string
	audience  string
}

// JWTOption configures the JWT transport.
type JWTOption func(*JWT)

// WithJWTIssuer sets the issuer claim for generated tokens.
func WithJWTIssuer(issuer string) JWTOption {
	return func(t *JWT) {
		t.issuer = issuer
	}
}

// WithJWTAudience sets the audience claim for generated tokens.
func WithJWTAudience(audience string) JWTOption {
	return func(t *JWT) {
		t.audience = audience
	}
}

// NewJWT creates a JWT transport signing with signingKey.
func NewJWT(signingKey string, accessTTL time.Duration, opts ...JWTOption) (*JWT, error) {
	t := &JWT{accessTTL: accessTTL}
	for _, opt := range opts {
		opt(t)
	}
	if t.accessTTL <= 0 {
		t.accessTTL = DefaultJWTConfig().AccessTTL
	}

	service, err := jwt.NewFromString(signingKey, jwt.WithIssuer(t.issuer), jwt.WithAudience(t.audience))
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}
	t.service = service
	return t, nil
}

var _ Verifier = (*JWT)(nil)

// Verify parses token and returns the identity it carries.
func (t *JWT) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNoToken
	}

	claims, err := t.service.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return Identity{}, errors.Join(ErrExpiredToken, err)
		}
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}

	return Identity{
		PrincipalID:  claims.Subject,
		SessionToken: claims.SessionToken,
	}, nil
}

// Issue creates an access token for the session and returns it with its expiry.
func (t *JWT) Issue(principalID, sessionToken string) (string, time.Time, error) {
	expiresAt := time.Now().Add(t.accessTTL)
	token, err := t.service.Issue(principalID, sessionToken, t.accessTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// AccessTTL returns the lifetime of issued tokens.
func (t *JWT) AccessTTL() time.Duration {
	return t.accessTTL
}
