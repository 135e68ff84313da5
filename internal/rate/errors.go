package rate

import "errors"

var (
	// ErrRateLimited is returned once a key has exhausted its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps limiter backend failures.
	ErrUnavailable = errors.New("rate limiter unavailable")
)
