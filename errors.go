package goSession

import "errors"

var (
	// ErrUnauthorized is the only error guards surface to callers.
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenMalformed     = errors.New("access token malformed")
	ErrTokenExpired       = errors.New("access token expired")
	// ErrTokenSuperseded is returned in strict mode for an access token whose
	// epoch is behind the session's.
	ErrTokenSuperseded  = errors.New("access token superseded by refresh")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionRevoked   = errors.New("session revoked")
	ErrSessionExpired   = errors.New("session expired")
	ErrReplayDetected   = errors.New("refresh token replay detected")
	ErrRefreshInvalid   = errors.New("invalid refresh token")
	ErrRefreshConflict  = errors.New("refresh token already rotated")
	ErrStoreUnavailable = errors.New("session store unavailable")
	ErrRateLimited      = errors.New("rate limited")
	ErrAccountExists    = errors.New("account already exists")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrPasswordPolicy   = errors.New("password policy violation")
	ErrPasswordReuse    = errors.New("new password must be different from current password")
	ErrInvalidRouteMode = errors.New("invalid route validation mode")
	ErrEngineNotReady   = errors.New("engine not initialized")
)
