package gateway

import (
	"errors"
	"fmt"
	"time"
)

// Config holds connection gateway settings.
type Config struct {
	PingInterval     time.Duration `env:"GATEWAY_PING_INTERVAL" envDefault:"54s"`
	PongWait         time.Duration `env:"GATEWAY_PONG_WAIT" envDefault:"60s"`
	WriteWait        time.Duration `env:"GATEWAY_WRITE_WAIT" envDefault:"10s"`
	MaxMessageSize   int64         `env:"GATEWAY_MAX_MESSAGE_SIZE" envDefault:"4096"`
	SendBufferSize   int           `env:"GATEWAY_SEND_BUFFER" envDefault:"256"`
	OperationTimeout time.Duration `env:"GATEWAY_OPERATION_TIMEOUT" envDefault:"5s"`

	// AllowedOrigins restricts the websocket handshake Origin. Empty allows
	// same-host requests only.
	AllowedOrigins []string `env:"GATEWAY_ALLOWED_ORIGINS" envSeparator:","`

	// Subprotocol is selected on upgrade when a browser client sends its token
	// as a "bearer.<token>" subprotocol.
	Subprotocol string `env:"GATEWAY_SUBPROTOCOL" envDefault:"sessionhub.v1"`
}

// DefaultConfig returns the default gateway configuration.
func DefaultConfig() Config {
	return Config{
		PingInterval:     54 * time.Second,
		PongWait:         60 * time.Second,
		WriteWait:        10 * time.Second,
		MaxMessageSize:   4096,
		SendBufferSize:   256,
		OperationTimeout: 5 * time.Second,
		Subprotocol:      "sessionhub.v1",
	}
}

// Validate checks that the keepalive timings are consistent.
func (c Config) Validate() error {
	switch {
	case c.PingInterval <= 0 || c.PongWait <= 0 || c.WriteWait <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("timings must be positive"))
	case c.PingInterval >= c.PongWait:
		return errors.Join(ErrInvalidConfig, fmt.Errorf("ping interval %s must be shorter than pong wait %s", c.PingInterval, c.PongWait))
	case c.MaxMessageSize <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("max message size must be positive"))
	case c.SendBufferSize <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("send buffer size must be positive"))
	case c.OperationTimeout <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("operation timeout must be positive"))
	}
	return nil
}
