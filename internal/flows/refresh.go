package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureInvalid
	RefreshFailureRateLimited
	RefreshFailureNotFound
	RefreshFailureRevoked
	RefreshFailureExpired
	RefreshFailureReplay
	RefreshFailureStale
	RefreshFailureUnavailable
	// RefreshFailureIssueAccess means signing failed after the store had
	// already rotated. The presented refresh token is spent and the new one
	// is never returned, so the caller has to log in again. Presenting the
	// old token later is treated as replay.
	RefreshFailureIssueAccess
)

// RefreshResult carries either the issued pair or failure metadata.
type RefreshResult struct {
	Failure   RefreshFailureKind
	Err       error
	SessionID string
	Record    *session.Record
	Issued    *Issued
}

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, sessionID string) error
}

type SessionRotator interface {
	Rotate(ctx context.Context, sessionID, token string, now time.Time) (*session.Record, string, error)
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Observer

	Now         func() time.Time
	RateLimiter RefreshRateLimiter
	Sessions    SessionRotator
	Access      AccessIssuer
	// OnReplay runs after the store has revoked a replayed session.
	OnReplay func(ctx context.Context, rec *session.Record)
}

// RunRefresh rotates the session's refresh token and signs a new access
// token carrying the advanced epoch.
func RunRefresh(ctx context.Context, sessionID, refreshToken string, deps RefreshDeps) RefreshResult {
	now := nowFunc(deps.Now)()

	if sessionID == "" || refreshToken == "" {
		return refreshFailed(ctx, deps, RefreshResult{Failure: RefreshFailureInvalid, Err: session.ErrInvalidToken})
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, sessionID); err != nil {
			deps.inc(metrics.MetricRefreshRateLimited)
			deps.emit(ctx, EventRefreshRateLimited, false, "", sessionID, err, nil)
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, SessionID: sessionID}
		}
	}

	rec, next, err := deps.Sessions.Rotate(ctx, sessionID, refreshToken, now)
	if err != nil {
		res := RefreshResult{Err: err, SessionID: sessionID, Record: rec}
		switch {
		case errors.Is(err, session.ErrReplayDetected):
			res.Failure = RefreshFailureReplay
		case errors.Is(err, session.ErrRevoked):
			res.Failure = RefreshFailureRevoked
		case errors.Is(err, session.ErrExpired):
			res.Failure = RefreshFailureExpired
		case errors.Is(err, session.ErrStaleToken):
			res.Failure = RefreshFailureStale
		case errors.Is(err, session.ErrNotFound):
			res.Failure = RefreshFailureNotFound
		case errors.Is(err, session.ErrInvalidToken):
			res.Failure = RefreshFailureInvalid
		default:
			res.Failure = RefreshFailureUnavailable
		}
		return refreshFailed(ctx, deps, res)
	}

	access, expiresAt, err := deps.Access.Issue(rec.SubjectID, rec.SessionID, rec.Epoch(), now)
	if err != nil {
		return refreshFailed(ctx, deps, RefreshResult{
			Failure:   RefreshFailureIssueAccess,
			Err:       err,
			SessionID: sessionID,
			Record:    rec,
		})
	}

	deps.inc(metrics.MetricRefreshSuccess)
	deps.emit(ctx, EventRefreshSuccess, true, rec.SubjectID, rec.SessionID, nil, nil)
	return RefreshResult{
		SessionID: rec.SessionID,
		Record:    rec,
		Issued: &Issued{
			SubjectID:       rec.SubjectID,
			SessionID:       rec.SessionID,
			AccessToken:     access,
			AccessExpiresAt: expiresAt,
			RefreshToken:    next,
			Epoch:           rec.Epoch(),
		},
	}
}

func refreshFailed(ctx context.Context, deps RefreshDeps, res RefreshResult) RefreshResult {
	subjectID := ""
	if res.Record != nil {
		subjectID = res.Record.SubjectID
	}

	switch res.Failure {
	case RefreshFailureReplay:
		deps.inc(metrics.MetricReplayDetected)
		deps.emit(ctx, EventReplayDetected, false, subjectID, res.SessionID, res.Err, map[string]string{
			"action": "session_revoked",
		})
		deps.warn(ctx, "goSession: refresh token replay detected, session revoked",
			"session_id", res.SessionID, "subject_id", subjectID)
		if deps.OnReplay != nil && res.Record != nil {
			deps.OnReplay(ctx, res.Record)
		}
		return res
	case RefreshFailureStale:
		deps.inc(metrics.MetricRefreshStale)
	case RefreshFailureExpired:
		deps.inc(metrics.MetricSessionExpired)
	}

	meta := map[string]string{"reason": res.Failure.String()}
	if res.Failure == RefreshFailureIssueAccess {
		meta["refresh_token_spent"] = "true"
		deps.warn(ctx, "goSession: access token signing failed after rotation, session needs a new login",
			"session_id", res.SessionID, "subject_id", subjectID)
	}
	deps.inc(metrics.MetricRefreshFailure)
	deps.emit(ctx, EventRefreshFailure, false, subjectID, res.SessionID, res.Err, meta)
	return res
}

func (k RefreshFailureKind) String() string {
	switch k {
	case RefreshFailureNone:
		return "none"
	case RefreshFailureInvalid:
		return "invalid"
	case RefreshFailureRateLimited:
		return "rate_limited"
	case RefreshFailureNotFound:
		return "not_found"
	case RefreshFailureRevoked:
		return "revoked"
	case RefreshFailureExpired:
		return "expired"
	case RefreshFailureReplay:
		return "replay"
	case RefreshFailureStale:
		return "stale"
	case RefreshFailureUnavailable:
		return "unavailable"
	case RefreshFailureIssueAccess:
		return "issue_access"
	default:
		return "unknown"
	}
}
