package useragent

import "errors"

var (
	ErrEmptyUserAgent     = errors.New("empty user agent")
	ErrUnknownDevice      = errors.New("unknown device")
	ErrMalformedUserAgent = errors.New("malformed user agent")
)
