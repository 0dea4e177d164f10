package fabric

import "time"

// Config holds dispatch queue and transport retry settings.
type Config struct {
	Workers         int           `env:"FABRIC_WORKERS" envDefault:"8"`
	QueueSize       int           `env:"FABRIC_QUEUE_SIZE" envDefault:"256"`
	PublishAttempts int           `env:"FABRIC_PUBLISH_ATTEMPTS" envDefault:"3"`
	PublishBackoff  time.Duration `env:"FABRIC_PUBLISH_BACKOFF" envDefault:"50ms"`
	PublishTimeout  time.Duration `env:"FABRIC_PUBLISH_TIMEOUT" envDefault:"2s"`
	ShutdownTimeout time.Duration `env:"FABRIC_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	// Channel is the pub/sub channel name shared by every instance.
	Channel string `env:"FABRIC_CHANNEL" envDefault:"sessionhub:events"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Workers:         8,
		QueueSize:       256,
		PublishAttempts: 3,
		PublishBackoff:  50 * time.Millisecond,
		PublishTimeout:  2 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		Channel:         "sessionhub:events",
	}
}
