package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/directory"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/keys"
	"github.com/MrEthical07/goSession/password"
	"github.com/MrEthical07/goSession/session"
)

type rateLimiter interface {
	flows.LoginRateLimiter
	flows.RefreshRateLimiter
}

// Engine issues, validates, refreshes and revokes sessions. Build one with
// [New] and [Builder.Build].
type Engine struct {
	config    Config
	store     session.Store
	codec     *jwt.Codec
	keySource keys.Source
	hasher    password.Hasher
	directory Directory
	limiter   rateLimiter
	audit     *audit.Dispatcher
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	onReplay  func(ctx context.Context, subjectID, sessionID string)
	dummyHash string
	flows     flows.Service
}

func (e *Engine) newFlowService() flows.Service {
	obs := flows.Observer{
		Metrics: e.metrics,
		Audit:   e.emitAudit,
		Logger:  e.logger,
		ClientIP: func(ctx context.Context) string {
			return clientIPFromContext(ctx)
		},
		ErrorCode: func(err error) string { return string(auditErrorCode(err)) },
	}
	issue := flows.IssueDeps{Now: e.now, Sessions: e.store, Access: e.codec}

	var onReplay func(context.Context, *session.Record)
	if e.onReplay != nil {
		onReplay = func(ctx context.Context, rec *session.Record) {
			e.onReplay(ctx, rec.SubjectID, rec.SessionID)
		}
	}

	return flows.New(flows.Deps{
		Login: flows.LoginDeps{
			Observer:           obs,
			UpgradeOnLogin:     e.config.Password.UpgradeOnLogin,
			DummyHash:          e.dummyHash,
			FindCredential:     e.findCredentialByEmail,
			VerifyPassword:     e.hasher.Verify,
			NeedsUpgrade:       e.needsUpgrade,
			HashPassword:       e.hasher.Hash,
			UpdatePasswordHash: e.directory.UpdatePasswordHash,
			RateLimiter:        e.limiter,
			Issue:              issue,
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				RateLimited:        ErrRateLimited,
				StoreUnavailable:   ErrStoreUnavailable,
			},
		},
		Register: flows.RegisterDeps{
			Observer:          obs,
			MinPasswordLength: e.config.Password.MinLength,
			HashPassword:      e.hasher.Hash,
			CreateUser: func(ctx context.Context, email, hash string) (string, error) {
				rec, err := e.directory.Create(ctx, email, hash)
				if err != nil {
					return "", err
				}
				return rec.SubjectID, nil
			},
			IsDuplicate: func(err error) bool { return errors.Is(err, directory.ErrDuplicate) },
			Issue:       issue,
			Errors: flows.RegisterErrors{
				EngineNotReady:   ErrEngineNotReady,
				InvalidRequest:   ErrInvalidRequest,
				PasswordPolicy:   ErrPasswordPolicy,
				AccountExists:    ErrAccountExists,
				StoreUnavailable: ErrStoreUnavailable,
			},
		},
		Refresh: flows.RefreshDeps{
			Observer:    obs,
			Now:         e.now,
			RateLimiter: e.limiter,
			Sessions:    e.store,
			Access:      e.codec,
			OnReplay:    onReplay,
		},
		Validate: flows.ValidateDeps{
			Observer:         obs,
			Now:              e.now,
			Access:           e.codec,
			ResolveRouteMode: e.resolveRouteMode,
			ModeStrict:       int(ModeStrict),
			Sessions:         e.store,
		},
		Logout: flows.LogoutDeps{
			Observer: obs,
			Now:      e.now,
			Sessions: e.store,
			Errors: flows.LogoutErrors{
				SessionNotFound:  ErrSessionNotFound,
				StoreUnavailable: ErrStoreUnavailable,
			},
		},
		ChangePassword: flows.ChangePasswordDeps{
			Observer:           obs,
			Now:                e.now,
			MinPasswordLength:  e.config.Password.MinLength,
			FindCredentialByID: e.findCredentialByID,
			VerifyPassword:     e.hasher.Verify,
			HashPassword:       e.hasher.Hash,
			UpdatePasswordHash: e.directory.UpdatePasswordHash,
			Sessions:           e.store,
			Errors: flows.ChangePasswordErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				PasswordPolicy:     ErrPasswordPolicy,
				PasswordReuse:      ErrPasswordReuse,
				StoreUnavailable:   ErrStoreUnavailable,
			},
		},
		Sessions: flows.SessionsDeps{
			Now:              e.now,
			Sessions:         e.store,
			StoreUnavailable: ErrStoreUnavailable,
		},
	})
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the session store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Login verifies email and password and starts a new session. Unknown
// accounts and wrong passwords both fail with ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, email, password, clientLabel string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	issued, err := e.flows.Login(ctx, email, password, clientLabel)
	if err != nil {
		return nil, err
	}
	return e.tokenPair(issued), nil
}

// Register creates a directory entry and starts its first session.
func (e *Engine) Register(ctx context.Context, email, password, clientLabel string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	issued, err := e.flows.Register(ctx, email, password, clientLabel)
	if err != nil {
		return nil, err
	}
	return e.tokenPair(issued), nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// spent whatever the outcome; presenting it again is replay.
func (e *Engine) Refresh(ctx context.Context, sessionID, refreshToken string) (*TokenPair, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	res := e.flows.Refresh(ctx, sessionID, refreshToken)
	if res.Failure == flows.RefreshFailureNone {
		return e.tokenPair(res.Issued), nil
	}

	switch res.Failure {
	case flows.RefreshFailureInvalid:
		return nil, ErrRefreshInvalid
	case flows.RefreshFailureRateLimited:
		return nil, ErrRateLimited
	case flows.RefreshFailureNotFound:
		return nil, ErrSessionNotFound
	case flows.RefreshFailureRevoked:
		return nil, ErrSessionRevoked
	case flows.RefreshFailureExpired:
		return nil, ErrSessionExpired
	case flows.RefreshFailureReplay:
		return nil, ErrReplayDetected
	case flows.RefreshFailureStale:
		return nil, ErrRefreshConflict
	case flows.RefreshFailureUnavailable:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		return nil, res.Err
	}
}

// ValidateAccess validates with the configured default mode.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	return e.Validate(ctx, accessToken, ModeInherit)
}

// Validate verifies an access token. routeMode overrides the configured
// mode for one call; pass ModeInherit to use the default.
func (e *Engine) Validate(ctx context.Context, accessToken string, routeMode ValidationMode) (*AuthResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	res := e.flows.Validate(ctx, accessToken, int(routeMode))
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureMalformed:
		return nil, ErrTokenMalformed
	case flows.ValidateFailureExpired:
		return nil, ErrTokenExpired
	case flows.ValidateFailureInvalidRouteMode:
		return nil, ErrInvalidRouteMode
	case flows.ValidateFailureSessionNotFound:
		return nil, ErrSessionNotFound
	case flows.ValidateFailureSessionRevoked:
		return nil, ErrSessionRevoked
	case flows.ValidateFailureEpochMismatch:
		return nil, ErrTokenSuperseded
	case flows.ValidateFailureUnavailable:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, res.Err)
	default:
		return nil, ErrUnauthorized
	}

	claims := res.Claims
	mode := ModeJWTOnly
	if res.Record != nil {
		mode = ModeStrict
	}
	out := &AuthResult{
		SubjectID: claims.Subject,
		SessionID: claims.SessionID,
		Epoch:     claims.Epoch,
		Mode:      mode,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// Logout revokes one session. It succeeds for unknown and already revoked
// sessions.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.Logout(ctx, sessionID)
}

// LogoutAll revokes every session of subjectID.
func (e *Engine) LogoutAll(ctx context.Context, subjectID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	_, err := e.flows.LogoutAll(ctx, subjectID, session.ReasonLogoutAll)
	return err
}

// LogoutDevice revokes sessionID if it belongs to subjectID. Sessions of
// other subjects report ErrSessionNotFound.
func (e *Engine) LogoutDevice(ctx context.Context, subjectID, sessionID string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return e.flows.LogoutDevice(ctx, subjectID, sessionID)
}

// ChangePassword replaces the password of subjectID and revokes all of its
// sessions, including the caller's.
func (e *Engine) ChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string) error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	_, err := e.flows.ChangePassword(ctx, subjectID, oldPassword, newPassword)
	return err
}

// Sessions lists the active sessions of subjectID, most recently refreshed
// first.
func (e *Engine) Sessions(ctx context.Context, subjectID string) ([]SessionInfo, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	list, err := e.flows.Sessions(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	out := make([]SessionInfo, len(list))
	for i, s := range list {
		out[i] = SessionInfo(s)
	}
	return out, nil
}

// Profile returns the public directory view of subjectID.
func (e *Engine) Profile(ctx context.Context, subjectID string) (Profile, error) {
	if e == nil || e.directory == nil {
		return Profile{}, ErrEngineNotReady
	}
	rec, err := e.directory.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Profile{}, ErrInvalidCredentials
		}
		return Profile{}, err
	}
	return rec.Profile(), nil
}

// ReloadKeys loads a fresh key set from the key source. Tokens signed by
// keys that are still listed keep verifying.
func (e *Engine) ReloadKeys(ctx context.Context) error {
	if e == nil || e.codec == nil {
		return ErrEngineNotReady
	}
	if e.keySource == nil {
		return errors.New("no key source configured")
	}
	set, err := e.keySource.Load(ctx)
	if err != nil {
		return fmt.Errorf("reload signing keys: %w", err)
	}
	e.codec.SetKeys(set)
	e.logger.InfoContext(ctx, "goSession: signing keys reloaded", "kids", set.IDs())
	return nil
}

func (e *Engine) tokenPair(issued *flows.Issued) *TokenPair {
	return &TokenPair{
		SubjectID:    issued.SubjectID,
		SessionID:    issued.SessionID,
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		ExpiresIn:    issued.AccessExpiresAt.Sub(e.now()).Round(time.Second),
		Epoch:        issued.Epoch,
	}
}

func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) findCredentialByEmail(ctx context.Context, email string) (flows.Credential, error) {
	rec, err := e.directory.FindByEmail(ctx, email)
	if err != nil {
		return flows.Credential{}, err
	}
	return flows.Credential{SubjectID: rec.SubjectID, Email: rec.Email, PasswordHash: rec.PasswordHash}, nil
}

func (e *Engine) findCredentialByID(ctx context.Context, subjectID string) (flows.Credential, error) {
	rec, err := e.directory.FindByID(ctx, subjectID)
	if err != nil {
		return flows.Credential{}, err
	}
	return flows.Credential{SubjectID: rec.SubjectID, Email: rec.Email, PasswordHash: rec.PasswordHash}, nil
}

func (e *Engine) needsUpgrade(hash string) bool {
	upgrade, err := e.hasher.NeedsUpgrade(hash)
	return err == nil && upgrade
}

func (e *Engine) resolveRouteMode(routeMode int) (int, error) {
	mode, ok := flows.ResolveRouteMode(routeMode, int(e.config.ValidationMode), flows.ModeResolverConfig{
		ModeInherit: int(ModeInherit),
		ModeJWTOnly: int(ModeJWTOnly),
		ModeStrict:  int(ModeStrict),
	})
	if !ok {
		return 0, ErrInvalidRouteMode
	}
	return mode, nil
}
