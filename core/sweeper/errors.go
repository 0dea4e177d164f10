package sweeper

import "errors"

var (
	ErrMissingSessions   = errors.New("sweeper: session manager is required")
	ErrInvalidInterval   = errors.New("sweeper: interval must be positive")
	ErrAlreadyRunning    = errors.New("sweeper: already running")
	ErrNotRunning        = errors.New("sweeper: not running")
	ErrSweepInProgress   = errors.New("sweeper: sweep already in progress")
	ErrHealthcheckFailed = errors.New("sweeper: healthcheck failed")
)
