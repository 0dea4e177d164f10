package sessiond

import (
	"github.com/dmitrymomot/sessionhub/core/fabric"
	"github.com/dmitrymomot/sessionhub/core/gateway"
	"github.com/dmitrymomot/sessionhub/core/server"
	"github.com/dmitrymomot/sessionhub/core/session"
	"github.com/dmitrymomot/sessionhub/core/session/sqlitestore"
	"github.com/dmitrymomot/sessionhub/core/sessionapi"
	"github.com/dmitrymomot/sessionhub/core/sessiontransport"
	"github.com/dmitrymomot/sessionhub/core/sweeper"
	"github.com/dmitrymomot/sessionhub/integration/database/redis"
)

// Store drivers accepted by Config.StoreDriver.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config is the full process configuration. PostgreSQL settings are loaded
// separately, only when StoreDriver is "postgres", because PG_CONN_URL is
// required by pg.Config.
type Config struct {
	Server  server.Config
	Session session.Config
	Fabric  fabric.Config
	Gateway gateway.Config
	Sweeper sweeper.Config
	API     sessionapi.Config
	JWT     sessiontransport.JWTConfig
	SQLite  sqlitestore.Config
	Redis   redis.Config

	AppName  string `env:"APP_NAME" envDefault:"sessiond"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`

	// When false, or when Redis is unreachable at startup, every instance only
	// hears its own events.
	BroadcastRedis  bool `env:"BROADCAST_REDIS" envDefault:"true"`
	BroadcastBuffer int  `env:"BROADCAST_BUFFER" envDefault:"256"`
}

// DefaultConfig returns a single-instance configuration backed by SQLite.
// JWT.SecretKey is left empty and must be set.
func DefaultConfig() Config {
	return Config{
		Server:          server.DefaultConfig(),
		Session:         session.DefaultConfig(),
		Fabric:          fabric.DefaultConfig(),
		Gateway:         gateway.DefaultConfig(),
		Sweeper:         sweeper.DefaultConfig(),
		API:             sessionapi.DefaultConfig(),
		JWT:             sessiontransport.DefaultJWTConfig(),
		SQLite:          sqlitestore.DefaultConfig(),
		Redis:           redis.DefaultConfig(),
		AppName:         "sessiond",
		Env:             "development",
		LogLevel:        "info",
		StoreDriver:     StoreSQLite,
		BroadcastRedis:  true,
		BroadcastBuffer: 256,
	}
}
