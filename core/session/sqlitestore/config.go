package sqlitestore

import "time"

// Config holds SQLite connection settings.
type Config struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path            string        `env:"SQLITE_PATH" envDefault:"sessionhub.db"`
	BusyTimeout     time.Duration `env:"SQLITE_BUSY_TIMEOUT" envDefault:"5s"`
	MigrationsTable string        `env:"SQLITE_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
}

// DefaultConfig returns the defaults from the env tags.
func DefaultConfig() Config {
	return Config{
		Path:            "sessionhub.db",
		BusyTimeout:     5 * time.Second,
		MigrationsTable: "schema_migrations",
	}
}
