package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// Platform selects the default storage of a Manager.
type Platform int

const (
	PlatformWeb Platform = iota
	PlatformMobile
)

// ErrRefreshConflict means another holder of the same session rotated the
// refresh token first. Local state is kept.
var ErrRefreshConflict = errors.New("client: refresh raced with another holder")

// ErrRateLimited is returned when the server answered 429.
var ErrRateLimited = errors.New("client: rate limited")

type Config struct {
	// BaseURL is the server root, for example https://api.example.com.
	BaseURL    string
	Platform   Platform
	HTTPClient *http.Client
	// Storage overrides the platform default.
	Storage Storage
	// StoragePath and StorageKey configure PlatformMobile file storage.
	StoragePath string
	StorageKey  []byte
	// RefreshSkew refreshes this long before the access token expires.
	RefreshSkew time.Duration
	// MaxAttempts bounds login retries and 503 retries of refresh.
	MaxAttempts    uint
	InitialBackoff time.Duration
	// RefreshTimeout bounds one shared refresh, independent of the caller
	// that started it.
	RefreshTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Manager is safe for concurrent use.
type Manager struct {
	base    *url.URL
	http    *http.Client
	storage Storage
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	state  *State
	loaded bool
	// gen changes whenever the stored session is replaced or cleared; an
	// in-flight refresh only writes back if it is unchanged.
	gen uint64

	refreshGroup singleflight.Group
}

func New(cfg Config) (*Manager, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", cfg.BaseURL)
	}

	storage := cfg.Storage
	if storage == nil {
		switch cfg.Platform {
		case PlatformWeb:
			storage = NewMemoryStorage()
		case PlatformMobile:
			storage, err = NewFileStorage(cfg.StoragePath, cfg.StorageKey)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("client: unknown platform %d", cfg.Platform)
		}
	}

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = 30 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		base:    base,
		http:    cfg.HTTPClient,
		storage: storage,
		cfg:     cfg,
		logger:  cfg.Logger,
		now:     cfg.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	SessionID        string `json:"sessionId"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Login exchanges credentials for a session. Transport failures and 503
// answers are retried with exponential backoff.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	if m.cfg.Platform == PlatformMobile {
		body["clientLabel"] = "mobile"
	} else {
		body["clientLabel"] = "web"
	}

	tok, err := backoff.Retry(ctx, func() (tokenResponse, error) {
		status, raw, err := m.post(ctx, "/auth/login", body)
		if err != nil {
			return tokenResponse{}, err
		}
		switch status {
		case http.StatusOK, http.StatusCreated:
			return decodeTokens(raw)
		case http.StatusUnauthorized:
			return tokenResponse{}, backoff.Permanent(ErrInvalidCredentials)
		case http.StatusTooManyRequests:
			return tokenResponse{}, backoff.Permanent(ErrRateLimited)
		case http.StatusServiceUnavailable:
			return tokenResponse{}, ErrServerUnavailable
		default:
			return tokenResponse{}, backoff.Permanent(fmt.Errorf("%w: login status %d", ErrUnexpectedResponse, status))
		}
	}, m.retryOptions()...)
	if err != nil {
		return transportError(err)
	}

	m.setState(ctx, m.stateFrom(tok, ""))
	return nil
}

// EnsureFreshToken returns an access token that is valid for at least
// RefreshSkew, refreshing first if needed.
func (m *Manager) EnsureFreshToken(ctx context.Context) (string, error) {
	st, err := m.current(ctx)
	if err != nil {
		return "", err
	}
	if st == nil {
		return "", ErrNotLoggedIn
	}
	if m.now().Add(m.cfg.RefreshSkew).Before(st.AccessExpiresAt) {
		return st.AccessToken, nil
	}
	return m.refresh(ctx, st.AccessToken)
}

// Do sends req with the current access token. On 401 it refreshes once and
// retries once; the body is buffered so it can be replayed.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	token, err := m.EnsureFreshToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := m.send(req, body, token)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	discard(resp)

	token, err = m.refresh(ctx, token)
	if err != nil {
		return nil, err
	}
	resp, err = m.send(req, body, token)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		m.clear(ctx)
		return nil, ErrSessionExpired
	}
	return resp, nil
}

// Logout tells the server to end the session and clears local state even
// when the server cannot be reached.
func (m *Manager) Logout(ctx context.Context) error {
	st, err := m.current(ctx)
	if err == nil && st != nil {
		rctx, cancel := context.WithTimeout(ctx, m.cfg.RefreshTimeout)
		status, _, err := m.post(rctx, "/auth/logout", map[string]string{"sessionId": st.SessionID})
		cancel()
		if err != nil || status != http.StatusNoContent {
			m.logger.WarnContext(ctx, "goSession: remote logout failed", "status", status, "error", err)
		}
	}
	return m.clear(ctx)
}

// LoggedIn reports whether a session is stored.
func (m *Manager) LoggedIn(ctx context.Context) bool {
	st, err := m.current(ctx)
	return err == nil && st != nil
}

// refresh rotates the pair unless another caller already replaced stale.
// All concurrent callers share one server call.
func (m *Manager) refresh(ctx context.Context, stale string) (string, error) {
	ch := m.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.RefreshTimeout)
		defer cancel()

		st, gen, err := m.snapshot(rctx)
		if err != nil {
			return "", err
		}
		if st == nil {
			return "", ErrNotLoggedIn
		}
		if st.AccessToken != stale {
			return st.AccessToken, nil
		}
		return m.rotate(rctx, *st, gen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// rotate performs the refresh call. Only 503 is retried: after a transport
// error the server may already have spent the token, and presenting it
// again would revoke the session. The result is dropped if the session was
// logged out or replaced while the call was in flight.
func (m *Manager) rotate(ctx context.Context, st State, gen uint64) (string, error) {
	tok, err := backoff.Retry(ctx, func() (tokenResponse, error) {
		status, raw, err := m.post(ctx, "/auth/refresh", map[string]string{
			"sessionId":    st.SessionID,
			"refreshToken": st.RefreshToken,
		})
		if err != nil {
			return tokenResponse{}, backoff.Permanent(err)
		}
		switch status {
		case http.StatusOK:
			return decodeTokens(raw)
		case http.StatusServiceUnavailable:
			return tokenResponse{}, ErrServerUnavailable
		case http.StatusConflict:
			return tokenResponse{}, backoff.Permanent(ErrRefreshConflict)
		case http.StatusTooManyRequests:
			return tokenResponse{}, backoff.Permanent(ErrRateLimited)
		case http.StatusUnauthorized:
			var body errorResponse
			_ = json.Unmarshal(raw, &body)
			return tokenResponse{}, backoff.Permanent(fmt.Errorf("%w: %s", ErrReloginRequired, body.Reason))
		default:
			return tokenResponse{}, backoff.Permanent(fmt.Errorf("%w: refresh status %d", ErrUnexpectedResponse, status))
		}
	}, m.retryOptions()...)
	if err != nil {
		if errors.Is(err, ErrReloginRequired) {
			m.logger.InfoContext(ctx, "goSession: refresh rejected, clearing session", "session_id", st.SessionID, "error", err)
			m.clearIf(ctx, gen)
		}
		return "", transportError(err)
	}

	next := m.stateFrom(tok, st.SessionID)
	if !m.replaceIf(ctx, next, gen) {
		m.logger.InfoContext(ctx, "goSession: session ended during refresh, discarding new pair", "session_id", st.SessionID)
		return "", ErrNotLoggedIn
	}
	return next.AccessToken, nil
}

func (m *Manager) retryOptions() []backoff.RetryOption {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = m.cfg.InitialBackoff
	exp.MaxInterval = 5 * time.Second
	return []backoff.RetryOption{
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(m.cfg.MaxAttempts),
	}
}

func (m *Manager) stateFrom(tok tokenResponse, sessionID string) State {
	if tok.SessionID != "" {
		sessionID = tok.SessionID
	}
	return State{
		SessionID:       sessionID,
		AccessToken:     tok.AccessToken,
		RefreshToken:    tok.RefreshToken,
		AccessExpiresAt: m.now().Add(time.Duration(tok.ExpiresInSeconds) * time.Second),
	}
}

func (m *Manager) current(ctx context.Context) (*State, error) {
	st, _, err := m.snapshot(ctx)
	return st, err
}

// snapshot returns a copy of the session and the generation it belongs to.
func (m *Manager) snapshot(ctx context.Context) (*State, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded {
		st, err := m.storage.Load(ctx)
		if err != nil {
			return nil, 0, err
		}
		m.state = st
		m.loaded = true
	}
	if m.state == nil {
		return nil, m.gen, nil
	}
	st := *m.state
	return &st, m.gen, nil
}

// setState installs a new session unconditionally.
func (m *Manager) setState(ctx context.Context, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.storeLocked(ctx, st)
}

// replaceIf installs a rotated pair only if nothing replaced or cleared the
// session since gen was observed.
func (m *Manager) replaceIf(ctx context.Context, st State, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.storeLocked(ctx, st)
	return true
}

// storeLocked keeps the new pair in memory even if persisting it fails; the
// old refresh token is already spent.
func (m *Manager) storeLocked(ctx context.Context, st State) {
	m.state = &st
	m.loaded = true
	if err := m.storage.Save(ctx, st); err != nil {
		m.logger.WarnContext(ctx, "goSession: persisting session failed", "error", err)
	}
}

func (m *Manager) clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearLocked(ctx)
}

func (m *Manager) clearIf(ctx context.Context, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		_ = m.clearLocked(ctx)
	}
}

func (m *Manager) clearLocked(ctx context.Context) error {
	m.gen++
	m.state = nil
	m.loaded = true
	return m.storage.Clear(ctx)
}

func (m *Manager) post(ctx context.Context, path string, v any) (int, []byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.base.String()+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (m *Manager) send(orig *http.Request, body []byte, token string) (*http.Response, error) {
	req := orig.Clone(orig.Context())
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		req.ContentLength = int64(len(body))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return m.http.Do(req)
}

func decodeTokens(raw []byte) (tokenResponse, error) {
	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil || tok.AccessToken == "" || tok.RefreshToken == "" {
		return tokenResponse{}, backoff.Permanent(fmt.Errorf("%w: malformed token response", ErrUnexpectedResponse))
	}
	return tok, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// transportError tags timeouts with ErrNetworkTimeout.
func transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
	}
	return err
}
