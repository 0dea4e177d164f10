package sessiond

import "errors"

var (
	ErrUnknownStoreDriver = errors.New("unknown session store driver")
	ErrMissingPrincipal   = errors.New("principal id is required")
)
