package sessiontransport

import "time"

// JWTConfig provides environment-based configuration for access tokens.
type JWTConfig struct {
	// SecretKey is the HMAC signing secret, at least 32 bytes
	SecretKey string `env:"SESSION_JWT_SECRET"`

	// AccessTTL is how long an issued access token stays valid
	AccessTTL time.Duration `env:"SESSION_JWT_ACCESS_TTL" envDefault:"15m"`

	// Issuer is the JWT issuer claim
	Issuer string `env:"SESSION_JWT_ISSUER" envDefault:"sessionhub"`

	// Audience is the JWT audience claim; empty disables the check
	Audience string `env:"SESSION_JWT_AUDIENCE"`
}

// DefaultJWTConfig returns a JWTConfig with sensible defaults.
// Note: SecretKey must be set explicitly - it has no default.
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		AccessTTL: 15 * time.Minute,
		Issuer:    "sessionhub",
	}
}

// NewJWTFromConfig creates a JWT verifier and issuer from configuration.
func NewJWTFromConfig(cfg JWTConfig) (*JWT, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	return NewJWT(cfg.SecretKey, cfg.AccessTTL,
		WithJWTIssuer(cfg.Issuer),
		WithJWTAudience(cfg.Audience),
	)
}
