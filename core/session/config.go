package session

import (
	"fmt"
	"time"
)

// Config holds session lifetime and cap settings.
type Config struct {
	// Lifetime is the absolute session lifetime counted from creation.
	Lifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"168h"`
	// InactivityTimeout ends a session that saw no activity for this long.
	InactivityTimeout time.Duration `env:"SESSION_INACTIVITY_TIMEOUT" envDefault:"30m"`
	// MaxSessions caps live sessions per principal. The oldest is evicted on overflow.
	MaxSessions int `env:"SESSION_MAX_PER_PRINCIPAL" envDefault:"5"`
	// OperationTimeout bounds every store call made on behalf of a caller.
	OperationTimeout time.Duration `env:"SESSION_OPERATION_TIMEOUT" envDefault:"5s"`
}

// DefaultConfig returns the defaults used when no config is supplied.
func DefaultConfig() Config {
	return Config{
		Lifetime:          7 * 24 * time.Hour,
		InactivityTimeout: 30 * time.Minute,
		MaxSessions:       5,
		OperationTimeout:  5 * time.Second,
	}
}

// Validate checks the timeouts and cap are usable.
func (c Config) Validate() error {
	switch {
	case c.Lifetime <= 0:
		return fmt.Errorf("%w: lifetime must be positive", ErrInvalidConfig)
	case c.InactivityTimeout <= 0:
		return fmt.Errorf("%w: inactivity timeout must be positive", ErrInvalidConfig)
	case c.InactivityTimeout >= c.Lifetime:
		return fmt.Errorf("%w: inactivity timeout must be shorter than lifetime", ErrInvalidConfig)
	case c.MaxSessions < 1:
		return fmt.Errorf("%w: max sessions must be at least 1", ErrInvalidConfig)
	case c.OperationTimeout <= 0:
		return fmt.Errorf("%w: operation timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
