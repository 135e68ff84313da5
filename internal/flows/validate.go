package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// ModeResolverConfig lets the host package pass its mode enum values without
// this package importing them.
type ModeResolverConfig struct {
	ModeInherit int
	ModeJWTOnly int
	ModeStrict  int
}

// ResolveRouteMode resolves a route mode override against the engine default.
func ResolveRouteMode(routeMode, engineMode int, cfg ModeResolverConfig) (int, bool) {
	switch routeMode {
	case cfg.ModeInherit:
		switch engineMode {
		case cfg.ModeJWTOnly, cfg.ModeStrict:
			return engineMode, true
		default:
			return 0, false
		}
	case cfg.ModeJWTOnly:
		return cfg.ModeJWTOnly, true
	case cfg.ModeStrict:
		return cfg.ModeStrict, true
	default:
		return 0, false
	}
}

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureExpired
	ValidateFailureInvalidRouteMode
	ValidateFailureSessionNotFound
	ValidateFailureSessionRevoked
	ValidateFailureEpochMismatch
	ValidateFailureUnavailable
)

// ValidateResult returns either verified claims or a classified failure.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *jwt.Claims
	Record  *session.Record
}

type SessionGetter interface {
	Get(ctx context.Context, sessionID string) (*session.Record, error)
}

// ValidateDeps captures jwt-only and strict validation dependencies.
type ValidateDeps struct {
	Observer

	Now              func() time.Time
	Access           AccessParser
	ResolveRouteMode func(int) (int, error)
	ModeStrict       int
	Sessions         SessionGetter
}

// RunValidate verifies an access token and, in strict mode, checks the
// session record. Strict mode fails closed when the store is unreachable.
func RunValidate(ctx context.Context, token string, routeMode int, deps ValidateDeps) ValidateResult {
	now := nowFunc(deps.Now)()

	claims, err := deps.Access.Verify(token, now)
	if err != nil {
		deps.inc(metrics.MetricValidateFailure)
		if errors.Is(err, jwt.ErrExpired) {
			return ValidateResult{Failure: ValidateFailureExpired, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureMalformed, Err: err}
	}

	mode, err := deps.ResolveRouteMode(routeMode)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureInvalidRouteMode, Err: err}
	}
	if mode != deps.ModeStrict {
		deps.inc(metrics.MetricValidateSuccess)
		return ValidateResult{Claims: claims}
	}

	rec, err := deps.Sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return strictRejected(ctx, deps, claims, ValidateResult{Failure: ValidateFailureSessionNotFound, Err: err})
		}
		return strictRejected(ctx, deps, claims, ValidateResult{Failure: ValidateFailureUnavailable, Err: err})
	}
	switch {
	case rec.SubjectID != claims.Subject:
		return strictRejected(ctx, deps, claims, ValidateResult{Failure: ValidateFailureSessionNotFound, Record: rec})
	case !rec.Active(now):
		return strictRejected(ctx, deps, claims, ValidateResult{Failure: ValidateFailureSessionRevoked, Record: rec})
	case rec.Epoch() != claims.Epoch:
		return strictRejected(ctx, deps, claims, ValidateResult{Failure: ValidateFailureEpochMismatch, Record: rec})
	}

	deps.inc(metrics.MetricValidateSuccess)
	return ValidateResult{Claims: claims, Record: rec}
}

func strictRejected(ctx context.Context, deps ValidateDeps, claims *jwt.Claims, res ValidateResult) ValidateResult {
	deps.inc(metrics.MetricValidateFailure)
	deps.inc(metrics.MetricStrictRejected)
	res.Claims = claims
	if res.Failure == ValidateFailureUnavailable {
		deps.warn(ctx, "goSession: strict validation failed closed, session store unavailable", "error", res.Err)
	}
	deps.emit(ctx, EventStrictRejected, false, claims.Subject, claims.SessionID, res.Err, map[string]string{
		"reason": res.Failure.String(),
	})
	return res
}

func (k ValidateFailureKind) String() string {
	switch k {
	case ValidateFailureNone:
		return "none"
	case ValidateFailureMalformed:
		return "malformed"
	case ValidateFailureExpired:
		return "expired"
	case ValidateFailureInvalidRouteMode:
		return "invalid_route_mode"
	case ValidateFailureSessionNotFound:
		return "session_not_found"
	case ValidateFailureSessionRevoked:
		return "session_revoked"
	case ValidateFailureEpochMismatch:
		return "epoch_mismatch"
	case ValidateFailureUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}
