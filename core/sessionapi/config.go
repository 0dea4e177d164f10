package sessionapi

// Config holds CORS settings for the session endpoints.
type Config struct {
	AllowedOrigins   []string `env:"API_ALLOWED_ORIGINS" envSeparator:","`
	AllowCredentials bool     `env:"API_ALLOW_CREDENTIALS" envDefault:"false"`
	MaxAge           int      `env:"API_CORS_MAX_AGE" envDefault:"300"`
}

// DefaultConfig returns a Config that allows no cross-origin requests.
func DefaultConfig() Config {
	return Config{MaxAge: 300}
}
