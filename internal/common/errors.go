// Package common defines shared constants and sentinel errors used across
// SecureNotes components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors. A row the caller is not allowed to see is
	// reported as ErrorNotFound as well.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Credential errors.
	ErrWeakPassword      = errors.New("password is too weak")
	ErrInvalidOTP        = errors.New("invalid or expired code")
	ErrTooManyAttempts   = errors.New("too many attempts")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
	ErrUnknownProvider   = errors.New("unknown oauth provider")
	ErrInvalidOAuthState = errors.New("invalid oauth state")
)
