package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/session"
)

type SessionRevoker interface {
	Get(ctx context.Context, sessionID string) (*session.Record, error)
	Revoke(ctx context.Context, sessionID string, reason session.RevokeReason, now time.Time) error
	RevokeAllForSubject(ctx context.Context, subjectID string, reason session.RevokeReason, now time.Time) (int, error)
}

type LogoutErrors struct {
	SessionNotFound  error
	StoreUnavailable error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Observer

	Now      func() time.Time
	Sessions SessionRevoker
	Errors   LogoutErrors
}

// RunLogout revokes one session. Unknown or already revoked sessions are not
// an error.
func RunLogout(ctx context.Context, sessionID string, deps LogoutDeps) error {
	if sessionID == "" {
		return nil
	}
	if err := deps.Sessions.Revoke(ctx, sessionID, session.ReasonLogout, nowFunc(deps.Now)()); err != nil {
		return mapStoreErr(err, deps.Errors.StoreUnavailable)
	}
	deps.inc(metrics.MetricLogout)
	deps.emit(ctx, EventLogout, true, "", sessionID, nil, nil)
	return nil
}

// RunLogoutAll revokes every session of subjectID with reason and returns how
// many were active.
func RunLogoutAll(ctx context.Context, subjectID string, reason session.RevokeReason, deps LogoutDeps) (int, error) {
	n, err := deps.Sessions.RevokeAllForSubject(ctx, subjectID, reason, nowFunc(deps.Now)())
	if err != nil {
		deps.emit(ctx, EventLogoutAll, false, subjectID, "", err, map[string]string{"reason": string(reason)})
		return n, mapStoreErr(err, deps.Errors.StoreUnavailable)
	}
	deps.inc(metrics.MetricLogoutAll)
	deps.emit(ctx, EventLogoutAll, true, subjectID, "", nil, map[string]string{"reason": string(reason)})
	return n, nil
}

// RunLogoutDevice revokes sessionID only if it belongs to subjectID. Sessions
// of other subjects look the same as missing ones.
func RunLogoutDevice(ctx context.Context, subjectID, sessionID string, deps LogoutDeps) error {
	rec, err := deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return deps.Errors.SessionNotFound
		}
		return mapStoreErr(err, deps.Errors.StoreUnavailable)
	}
	if rec.SubjectID != subjectID {
		return deps.Errors.SessionNotFound
	}
	if err := deps.Sessions.Revoke(ctx, sessionID, session.ReasonLogout, nowFunc(deps.Now)()); err != nil {
		return mapStoreErr(err, deps.Errors.StoreUnavailable)
	}
	deps.inc(metrics.MetricLogout)
	deps.emit(ctx, EventLogout, true, subjectID, sessionID, nil, map[string]string{"scope": "device"})
	return nil
}

func mapStoreErr(err, unavailable error) error {
	if unavailable != nil && errors.Is(err, session.ErrUnavailable) {
		return errors.Join(unavailable, err)
	}
	return err
}
