package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// AuditErrorCode is the stable, non-sensitive error label carried in
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrReplay             AuditErrorCode = "refresh_replay"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrStaleToken         AuditErrorCode = "stale_token"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrSessionRevoked     AuditErrorCode = "session_revoked"
	auditErrSessionExpired     AuditErrorCode = "session_expired"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRateLimited), errors.Is(err, rate.ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrReplayDetected), errors.Is(err, session.ErrReplayDetected):
		return auditErrReplay
	case errors.Is(err, ErrRefreshInvalid), errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, ErrTokenMalformed), errors.Is(err, jwt.ErrMalformed),
		errors.Is(err, jwt.ErrInvalidClaims):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenExpired), errors.Is(err, jwt.ErrExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrRefreshConflict), errors.Is(err, session.ErrStaleToken),
		errors.Is(err, ErrTokenSuperseded):
		return auditErrStaleToken
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, session.ErrNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionRevoked), errors.Is(err, session.ErrRevoked):
		return auditErrSessionRevoked
	case errors.Is(err, ErrSessionExpired), errors.Is(err, session.ErrExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrAccountExists):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, session.ErrUnavailable),
		errors.Is(err, session.ErrCorrupt), errors.Is(err, rate.ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
