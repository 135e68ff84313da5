package flows

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/metrics"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Audit event names.
const (
	EventLoginSuccess          = "login_success"
	EventLoginFailure          = "login_failure"
	EventLoginRateLimited      = "login_rate_limited"
	EventRegisterSuccess       = "register_success"
	EventRegisterFailure       = "register_failure"
	EventRefreshSuccess        = "refresh_success"
	EventRefreshFailure        = "refresh_failure"
	EventRefreshRateLimited    = "refresh_rate_limited"
	EventReplayDetected        = "refresh_replay_detected"
	EventLogout                = "logout_session"
	EventLogoutAll             = "logout_all"
	EventPasswordChangeSuccess = "password_change_success"
	EventPasswordChangeFailure = "password_change_failure"
	EventStrictRejected        = "strict_validation_rejected"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Login          LoginDeps
	Register       RegisterDeps
	Refresh        RefreshDeps
	Validate       ValidateDeps
	Logout         LogoutDeps
	ChangePassword ChangePasswordDeps
	Sessions       SessionsDeps
}

// Observer carries the side channels every flow reports through. All fields
// are optional.
type Observer struct {
	Metrics   *metrics.Metrics
	Audit     func(context.Context, audit.Event)
	Logger    *slog.Logger
	ClientIP  func(context.Context) string
	ErrorCode func(error) string
}

func (o Observer) inc(id metrics.MetricID) {
	o.Metrics.Inc(id)
}

func (o Observer) emit(ctx context.Context, event string, success bool, subjectID, sessionID string, err error, meta map[string]string) {
	if o.Audit == nil {
		return
	}
	ev := audit.Event{
		EventType: event,
		SubjectID: subjectID,
		SessionID: sessionID,
		Success:   success,
		Metadata:  meta,
	}
	if o.ClientIP != nil {
		ev.IP = o.ClientIP(ctx)
	}
	if err != nil {
		if o.ErrorCode != nil {
			ev.Error = o.ErrorCode(err)
		} else {
			ev.Error = err.Error()
		}
	}
	o.Audit(ctx, ev)
}

func (o Observer) warn(ctx context.Context, msg string, args ...any) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(ctx, msg, args...)
}

func (o Observer) clientIP(ctx context.Context) string {
	if o.ClientIP == nil {
		return ""
	}
	return o.ClientIP(ctx)
}

// SessionCreator persists a new session and returns its first refresh token.
type SessionCreator interface {
	Create(ctx context.Context, subjectID, clientLabel string, now time.Time) (*session.Record, string, error)
}

// AccessIssuer signs access tokens.
type AccessIssuer interface {
	Issue(subjectID, sessionID string, epoch uint64, now time.Time) (string, time.Time, error)
}

// AccessParser verifies access tokens.
type AccessParser interface {
	Verify(token string, now time.Time) (*jwt.Claims, error)
}

// Credential is the directory view the flows need for password checks.
type Credential struct {
	SubjectID    string
	Email        string
	PasswordHash string
}

// Issued is a freshly minted credential pair.
type Issued struct {
	SubjectID       string
	SessionID       string
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	Epoch           uint64
}

// SessionInfo is the caller-facing view of one active session.
type SessionInfo struct {
	SessionID       string
	ClientLabel     string
	IssuedAt        time.Time
	LastRefreshedAt time.Time
	ExpiresAt       time.Time
	Epoch           uint64
}

// NormalizeEmail lower-cases and trims an address and rejects anything that
// is not a single bare address.
func NormalizeEmail(raw string) (string, bool) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > 254 {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", false
	}
	return email, true
}

func nowFunc(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
