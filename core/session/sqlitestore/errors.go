package sqlitestore

import "errors"

var (
	ErrEmptyPath               = errors.New("sqlite database path is empty, use SQLITE_PATH env var")
	ErrFailedToOpenDB          = errors.New("failed to open sqlite database")
	ErrFailedToApplyMigrations = errors.New("failed to apply sqlite migrations")
)
