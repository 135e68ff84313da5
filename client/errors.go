package client

import "errors"

var (
	// ErrNotLoggedIn is returned when no session is stored.
	ErrNotLoggedIn = errors.New("client: not logged in")
	// ErrInvalidCredentials is returned by Login for a 401.
	ErrInvalidCredentials = errors.New("client: invalid credentials")
	// ErrReloginRequired means the refresh token was rejected for good
	// (expired, revoked or replayed). Local state has been cleared.
	ErrReloginRequired = errors.New("client: re-login required")
	// ErrSessionExpired means a request was still unauthorized after a
	// successful refresh. Local state has been cleared.
	ErrSessionExpired = errors.New("client: session expired")
	// ErrNetworkTimeout wraps transport timeouts.
	ErrNetworkTimeout = errors.New("client: network timeout")
	// ErrServerUnavailable is returned when the server kept answering 503.
	ErrServerUnavailable = errors.New("client: server unavailable")
	// ErrUnexpectedResponse covers status codes the protocol does not define.
	ErrUnexpectedResponse = errors.New("client: unexpected response")
)
