// Package common defines shared constants and sentinel errors used across
// the GophBank server and admin tooling. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound       = errors.New("not found")
	ErrorConflict       = errors.New("already exists")
	ErrorAccountDeleted = errors.New("account removed")

	// Service-level errors.
	ErrorInternal          = errors.New("internal error")
	ErrorUnauthorized      = errors.New("unauthorized")
	ErrorValidation        = errors.New("validation error")
	ErrorInsufficientFunds = errors.New("insufficient funds")

	// ErrorBadCredentials covers both an unknown username and a wrong password,
	// so callers cannot tell which one happened.
	ErrorBadCredentials = errors.New("username or password is invalid")

	// Token errors (signature, structure or algorithm problems).
	ErrInvalidToken = errors.New("invalid token")

	// Token and session lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrorSessionRevoked    = errors.New("session revoked")
)
