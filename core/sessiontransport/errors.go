package sessiontransport

import "errors"

var (
	// ErrNoToken is returned when no access token is present in the request
	ErrNoToken = errors.New("sessiontransport: no token")

	// ErrInvalidToken is returned when the token format, signature or claims are invalid
	ErrInvalidToken = errors.New("sessiontransport: invalid token")

	// ErrExpiredToken is returned when the access token is past its expiry
	ErrExpiredToken = errors.New("sessiontransport: token expired")

	ErrMissingSecret = errors.New("sessiontransport: JWT secret key is required")
)
