package sweeper

import "time"

// Config holds sweep scheduler settings.
type Config struct {
	// Interval between sweeps. Each sweep may run for at most one interval.
	Interval time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`

	// RunOnStart triggers one sweep as soon as the scheduler starts.
	RunOnStart bool `env:"SWEEP_RUN_ON_START" envDefault:"true"`

	ShutdownTimeout time.Duration `env:"SWEEP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		Interval:        15 * time.Minute,
		RunOnStart:      true,
		ShutdownTimeout: 30 * time.Second,
	}
}
