package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Engine is the part of *goSession.Engine the API serves.
type Engine interface {
	middleware.Validator
	Login(ctx context.Context, email, password, clientLabel string) (*goSession.TokenPair, error)
	Register(ctx context.Context, email, password, clientLabel string) (*goSession.TokenPair, error)
	Refresh(ctx context.Context, sessionID, refreshToken string) (*goSession.TokenPair, error)
	Logout(ctx context.Context, sessionID string) error
	LogoutAll(ctx context.Context, subjectID string) error
	LogoutDevice(ctx context.Context, subjectID, sessionID string) error
	ChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string) error
	Sessions(ctx context.Context, subjectID string) ([]goSession.SessionInfo, error)
	Profile(ctx context.Context, subjectID string) (goSession.Profile, error)
}

type Options struct {
	Logger *slog.Logger
	// Timeout bounds every request. Zero disables it.
	Timeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	// GuardMode is the validation mode of guarded routes. The zero value
	// uses the engine's configured mode.
	GuardMode goSession.ValidationMode
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Health backs GET /healthz when set.
	Health func(ctx context.Context) error
}

// NewRouter builds the HTTP handler for engine.
func NewRouter(engine Engine, opts Options) http.Handler {
	h := &handlers{engine: engine}

	r := chi.NewRouter()
	r.Use(
		chimw.Recoverer,
		requestID,
		logging(opts.Logger),
		clientIP(opts.TrustProxy),
	)
	if opts.Timeout > 0 {
		r.Use(chimw.Timeout(opts.Timeout))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(limitBody)
		r.Post("/login", h.login)
		r.Post("/register", h.register)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine, opts.GuardMode))
			r.Post("/logout-all", h.logoutAll)
			r.Post("/password", h.changePassword)
			r.Get("/sessions", h.sessions)
			r.Delete("/sessions/{id}", h.logoutDevice)
			r.Get("/me", h.me)
		})
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Health != nil {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := opts.Health(r.Context()); err != nil {
				LoggerFrom(r.Context()).WarnContext(r.Context(), "goSession: health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: CodeStoreUnavailable})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}

	return r
}

const maxBodyBytes = 64 << 10

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
