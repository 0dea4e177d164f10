package fabric

import "errors"

var (
	ErrMissingPrincipal  = errors.New("fabric: principal id is required")
	ErrUnknownEvent      = errors.New("fabric: unknown event")
	ErrEncodeEvent       = errors.New("fabric: failed to encode event")
	ErrDecodeEvent       = errors.New("fabric: failed to decode event")
	ErrQueueFull         = errors.New("fabric: dispatch queue is full")
	ErrFabricClosed      = errors.New("fabric: closed")
	ErrAlreadyRunning    = errors.New("fabric: already running")
	ErrNotRunning        = errors.New("fabric: not running")
	ErrHealthcheckFailed = errors.New("fabric: healthcheck failed")
)
