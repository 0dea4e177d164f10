package session

import "errors"

var (
	// ErrNotFound is returned by stores when no session matches. The Manager
	// translates it into an absent result.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable marks failures caused by the backing datastore being
	// unreachable or too slow. Callers decide whether to retry or degrade.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrDuplicateToken is returned when an inserted token already exists.
	ErrDuplicateToken = errors.New("session token already exists")

	ErrMissingStore     = errors.New("session store is required")
	ErrMissingPrincipal = errors.New("principal id is required")
	ErrInvalidReason    = errors.New("invalid logout reason")
	ErrInvalidConfig    = errors.New("invalid session config")
	ErrTokenGeneration  = errors.New("failed to generate token")

	ErrCreateSession = errors.New("failed to create session")
	ErrLoadSession   = errors.New("failed to load session")
	ErrTouchSession  = errors.New("failed to touch session")
	ErrDeleteSession = errors.New("failed to delete session")
	ErrSweepSessions = errors.New("failed to sweep expired sessions")
)
