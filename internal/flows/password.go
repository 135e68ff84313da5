package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
)

type ChangePasswordErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	PasswordPolicy     error
	PasswordReuse      error
	StoreUnavailable   error
}

type SubjectRevoker interface {
	RevokeAllForSubject(ctx context.Context, subjectID string, reason session.RevokeReason, now time.Time) (int, error)
}

// ChangePasswordDeps captures password change dependencies.
type ChangePasswordDeps struct {
	Observer

	Now               func() time.Time
	MinPasswordLength int

	FindCredentialByID func(ctx context.Context, subjectID string) (Credential, error)
	VerifyPassword     func(plaintext, hash string) (bool, error)
	HashPassword       func(plaintext string) (string, error)
	UpdatePasswordHash func(ctx context.Context, subjectID, hash string) error

	Sessions SubjectRevoker
	Errors   ChangePasswordErrors
}

// RunChangePassword replaces the subject's password hash and then revokes
// every session of the subject. It returns the number of revoked sessions.
func RunChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string, deps ChangePasswordDeps) (int, error) {
	if deps.FindCredentialByID == nil || deps.VerifyPassword == nil ||
		deps.HashPassword == nil || deps.UpdatePasswordHash == nil || deps.Sessions == nil {
		return 0, deps.Errors.EngineNotReady
	}

	fail := func(reason string, err error) (int, error) {
		deps.emit(ctx, EventPasswordChangeFailure, false, subjectID, "", err, map[string]string{"reason": reason})
		return 0, err
	}

	cred, err := deps.FindCredentialByID(ctx, subjectID)
	if err != nil {
		deps.inc(metrics.MetricPasswordChangeInvalidOld)
		return fail("subject_not_found", deps.Errors.InvalidCredentials)
	}
	ok, err := deps.VerifyPassword(oldPassword, cred.PasswordHash)
	if err != nil || !ok {
		deps.inc(metrics.MetricPasswordChangeInvalidOld)
		return fail("invalid_old_password", deps.Errors.InvalidCredentials)
	}
	if len(newPassword) < deps.MinPasswordLength {
		return fail("password_too_short", deps.Errors.PasswordPolicy)
	}
	if reused, err := deps.VerifyPassword(newPassword, cred.PasswordHash); err == nil && reused {
		deps.inc(metrics.MetricPasswordChangeReuseRejected)
		return fail("password_reuse", deps.Errors.PasswordReuse)
	}

	hash, err := deps.HashPassword(newPassword)
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return fail("password_policy", deps.Errors.PasswordPolicy)
		}
		return fail("hash_failed", err)
	}
	if err := deps.UpdatePasswordHash(ctx, subjectID, hash); err != nil {
		return fail("directory_update_failed", err)
	}

	revoked, err := deps.Sessions.RevokeAllForSubject(ctx, subjectID, session.ReasonPasswordChange, nowFunc(deps.Now)())
	if err != nil {
		// The new hash is stored; the caller must retry revocation.
		deps.warn(ctx, "goSession: password changed but session revocation failed", "subject_id", subjectID, "error", err)
		return fail("revoke_failed", mapStoreErr(err, deps.Errors.StoreUnavailable))
	}

	deps.inc(metrics.MetricPasswordChangeSuccess)
	deps.emit(ctx, EventPasswordChangeSuccess, true, subjectID, "", nil, nil)
	return revoked, nil
}
