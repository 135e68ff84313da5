package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/session"
)

// LoginRateLimiter counts failed logins per identifier and client address.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	RateLimited        error
	StoreUnavailable   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Observer

	UpgradeOnLogin bool
	// DummyHash is verified when the account does not exist so both paths
	// spend comparable time.
	DummyHash string

	FindCredential     func(ctx context.Context, email string) (Credential, error)
	VerifyPassword     func(plaintext, hash string) (bool, error)
	NeedsUpgrade       func(hash string) bool
	HashPassword       func(plaintext string) (string, error)
	UpdatePasswordHash func(ctx context.Context, subjectID, hash string) error

	RateLimiter LoginRateLimiter
	Issue       IssueDeps
	Errors      LoginErrors
}

// RunLogin verifies credentials and issues a new session. Unknown accounts
// and wrong passwords both yield Errors.InvalidCredentials.
func RunLogin(ctx context.Context, email, password, clientLabel string, deps LoginDeps) (*Issued, error) {
	if deps.FindCredential == nil || deps.VerifyPassword == nil ||
		deps.Issue.Sessions == nil || deps.Issue.Access == nil {
		return nil, deps.Errors.EngineNotReady
	}

	identifier, ok := NormalizeEmail(email)
	if !ok {
		identifier = email
	}
	ip := deps.clientIP(ctx)

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, identifier, ip); err != nil {
			return nil, loginRateLimited(ctx, identifier, "", deps)
		}
	}

	fail := func(subjectID, reason string) error {
		if deps.RateLimiter != nil {
			if err := deps.RateLimiter.IncrementLogin(ctx, identifier, ip); err != nil {
				return loginRateLimited(ctx, identifier, subjectID, deps)
			}
		}
		deps.inc(metrics.MetricLoginFailure)
		deps.emit(ctx, EventLoginFailure, false, subjectID, "", deps.Errors.InvalidCredentials, map[string]string{
			"identifier": identifier,
			"reason":     reason,
		})
		return deps.Errors.InvalidCredentials
	}

	if !ok || password == "" {
		return nil, fail("", "malformed_input")
	}

	cred, err := deps.FindCredential(ctx, identifier)
	if err != nil {
		if deps.DummyHash != "" {
			_, _ = deps.VerifyPassword(password, deps.DummyHash)
		}
		return nil, fail("", "subject_not_found")
	}

	match, err := deps.VerifyPassword(password, cred.PasswordHash)
	if err != nil || !match {
		return nil, fail(cred.SubjectID, "password_mismatch")
	}

	if deps.UpgradeOnLogin && deps.NeedsUpgrade != nil && deps.NeedsUpgrade(cred.PasswordHash) &&
		deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		// Rehash is best effort and never blocks a successful login.
		if upgraded, err := deps.HashPassword(password); err != nil {
			deps.warn(ctx, "goSession: password hash upgrade generation failed", "subject_id", cred.SubjectID)
		} else if err := deps.UpdatePasswordHash(ctx, cred.SubjectID, upgraded); err != nil {
			deps.warn(ctx, "goSession: password hash upgrade update failed", "subject_id", cred.SubjectID, "error", err)
		}
	}
	password = ""

	issued, err := RunIssue(ctx, cred.SubjectID, clientLabel, deps.Issue)
	if err != nil {
		deps.inc(metrics.MetricLoginFailure)
		deps.emit(ctx, EventLoginFailure, false, cred.SubjectID, "", err, map[string]string{
			"identifier": identifier,
			"reason":     "issue_failed",
		})
		if errors.Is(err, session.ErrUnavailable) {
			return nil, deps.Errors.StoreUnavailable
		}
		return nil, err
	}

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.ResetLogin(ctx, identifier, ip); err != nil {
			deps.warn(ctx, "goSession: login limiter reset failed", "error", err)
		}
	}

	deps.inc(metrics.MetricSessionCreated)
	deps.inc(metrics.MetricLoginSuccess)
	deps.emit(ctx, EventLoginSuccess, true, cred.SubjectID, issued.SessionID, nil, map[string]string{
		"client_label": clientLabel,
	})
	return issued, nil
}

func loginRateLimited(ctx context.Context, identifier, subjectID string, deps LoginDeps) error {
	deps.inc(metrics.MetricLoginRateLimited)
	deps.emit(ctx, EventLoginRateLimited, false, subjectID, "", deps.Errors.RateLimited, map[string]string{
		"identifier": identifier,
	})
	return deps.Errors.RateLimited
}
