package gateway

import "errors"

var (
	ErrMissingSessions = errors.New("gateway: session manager is required")
	ErrMissingHub      = errors.New("gateway: hub is required")
	ErrMissingVerifier = errors.New("gateway: token verifier is required")
	ErrInvalidConfig   = errors.New("gateway: invalid configuration")
	ErrHubClosed       = errors.New("gateway: hub is closed")
	ErrConnClosed      = errors.New("gateway: connection closed")
)
