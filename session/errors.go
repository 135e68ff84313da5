package session

import "errors"

var (
	ErrNotFound = errors.New("session: not found")
	ErrRevoked  = errors.New("session: revoked")
	// ErrExpired means the absolute lifetime has passed. The record is marked
	// revoked as part of the same operation.
	ErrExpired = errors.New("session: expired")
	// ErrReplayDetected means a superseded token was presented. The session
	// has already been revoked when this is returned.
	ErrReplayDetected = errors.New("session: refresh token replay detected")
	// ErrStaleToken is returned inside the reuse grace window for the token
	// that was current just before the last rotation.
	ErrStaleToken = errors.New("session: stale refresh token")
	// ErrInvalidToken is returned for tokens that do not decode or that name a
	// different session. The record is not touched.
	ErrInvalidToken = errors.New("session: invalid refresh token")
	// ErrUnavailable wraps backend failures. Callers may retry.
	ErrUnavailable = errors.New("session: store unavailable")
	ErrCorrupt     = errors.New("session: corrupt record")
)
