package jwt

import "errors"

var (
	ErrInvalidToken            = errors.New("invalid token")
	ErrExpiredToken            = errors.New("token has expired")
	ErrInvalidSignature        = errors.New("invalid token signature")
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
	ErrMissingSigningKey       = errors.New("signing key is required")
	ErrInvalidSigningKey       = errors.New("signing key must be at least 32 bytes")
	ErrMissingClaims           = errors.New("token is missing required claims")
)
