package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
)

// RegisterErrors carries host-level sentinel errors used by registration.
type RegisterErrors struct {
	EngineNotReady   error
	InvalidRequest   error
	PasswordPolicy   error
	AccountExists    error
	StoreUnavailable error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	Observer

	MinPasswordLength int

	HashPassword func(plaintext string) (string, error)
	CreateUser   func(ctx context.Context, email, passwordHash string) (subjectID string, err error)
	IsDuplicate  func(error) bool

	Issue  IssueDeps
	Errors RegisterErrors
}

// RunRegister creates a directory entry and signs the new subject in.
func RunRegister(ctx context.Context, email, plaintext, clientLabel string, deps RegisterDeps) (*Issued, error) {
	if deps.HashPassword == nil || deps.CreateUser == nil ||
		deps.Issue.Sessions == nil || deps.Issue.Access == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(subjectID, reason string, err error) error {
		deps.emit(ctx, EventRegisterFailure, false, subjectID, "", err, map[string]string{"reason": reason})
		return err
	}

	normalized, ok := NormalizeEmail(email)
	if !ok {
		return nil, fail("", "invalid_email", deps.Errors.InvalidRequest)
	}
	if len(plaintext) < deps.MinPasswordLength {
		return nil, fail("", "password_too_short", deps.Errors.PasswordPolicy)
	}

	hash, err := deps.HashPassword(plaintext)
	plaintext = ""
	if err != nil {
		if errors.Is(err, password.ErrPolicy) {
			return nil, fail("", "password_policy", deps.Errors.PasswordPolicy)
		}
		return nil, fail("", "hash_failed", err)
	}

	subjectID, err := deps.CreateUser(ctx, normalized, hash)
	if err != nil {
		if deps.IsDuplicate != nil && deps.IsDuplicate(err) {
			deps.inc(metrics.MetricRegisterDuplicate)
			return nil, fail("", "duplicate", deps.Errors.AccountExists)
		}
		return nil, fail("", "directory_create_failed", err)
	}

	issued, err := RunIssue(ctx, subjectID, clientLabel, deps.Issue)
	if err != nil {
		if errors.Is(err, session.ErrUnavailable) {
			err = deps.Errors.StoreUnavailable
		}
		return nil, fail(subjectID, "issue_failed", err)
	}

	deps.inc(metrics.MetricSessionCreated)
	deps.inc(metrics.MetricRegisterSuccess)
	deps.emit(ctx, EventRegisterSuccess, true, subjectID, issued.SessionID, nil, map[string]string{
		"client_label": clientLabel,
	})
	return issued, nil
}
