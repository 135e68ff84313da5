package flows

import (
	"context"

	"github.com/MrEthical07/goSession/session"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Validate.Access != nil && s.deps.Refresh.Sessions != nil
}

func (s Service) Login(ctx context.Context, email, password, clientLabel string) (*Issued, error) {
	return RunLogin(ctx, email, password, clientLabel, s.deps.Login)
}

func (s Service) Register(ctx context.Context, email, password, clientLabel string) (*Issued, error) {
	return RunRegister(ctx, email, password, clientLabel, s.deps.Register)
}

func (s Service) Refresh(ctx context.Context, sessionID, refreshToken string) RefreshResult {
	return RunRefresh(ctx, sessionID, refreshToken, s.deps.Refresh)
}

func (s Service) Validate(ctx context.Context, token string, routeMode int) ValidateResult {
	return RunValidate(ctx, token, routeMode, s.deps.Validate)
}

func (s Service) Logout(ctx context.Context, sessionID string) error {
	return RunLogout(ctx, sessionID, s.deps.Logout)
}

func (s Service) LogoutAll(ctx context.Context, subjectID string, reason session.RevokeReason) (int, error) {
	return RunLogoutAll(ctx, subjectID, reason, s.deps.Logout)
}

func (s Service) LogoutDevice(ctx context.Context, subjectID, sessionID string) error {
	return RunLogoutDevice(ctx, subjectID, sessionID, s.deps.Logout)
}

func (s Service) ChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string) (int, error) {
	return RunChangePassword(ctx, subjectID, oldPassword, newPassword, s.deps.ChangePassword)
}

func (s Service) Sessions(ctx context.Context, subjectID string) ([]SessionInfo, error) {
	return RunListSessions(ctx, subjectID, s.deps.Sessions)
}
