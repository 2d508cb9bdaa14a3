// Package common defines shared constants and sentinel errors used across
// the service layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential errors. Lookup misses and password mismatches both map
	// here so the caller cannot tell which one happened.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token lifecycle errors. ErrInvalidToken covers malformed or
	// mis-signed tokens; ErrTokenExpired covers well-formed tokens past
	// their expiry. The HTTP boundary collapses both into one response.
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrSessionNotFound = errors.New("session not found")
)
