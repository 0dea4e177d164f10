// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package automatically loads .env files on first use and uses the
// caarlos0/env library for parsing environment variables into struct fields.
//
// Basic usage:
//
//	import "github.com/dmitrymomot/sessionhub/core/config"
//
//	type SweepConfig struct {
//		Interval   time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
//		RunOnStart bool          `env:"SWEEP_RUN_ON_START" envDefault:"true"`
//	}
//
//	func main() {
//		var sweep SweepConfig
//
//		// Load with error handling
//		if err := config.Load(&sweep); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure (useful for startup)
//		config.MustLoad(&sweep)
//	}
//
// # Caching Behavior
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 SweepConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 SweepConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// Different types are cached independently:
//
//	config.MustLoad(&server.Config{})
//	config.MustLoad(&redis.Config{})
package config
