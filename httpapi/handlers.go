package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/go-chi/chi/v5"
)

type handlers struct {
	engine Engine
}

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	ClientLabel string `json:"clientLabel,omitempty"`
}

type refreshRequest struct {
	SessionID    string `json:"sessionId"`
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// TokenResponse is returned by login, register and refresh.
type TokenResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	SessionID        string `json:"sessionId"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type sessionsResponse struct {
	Sessions []goSession.SessionInfo `json:"sessions"`
	Current  string                  `json:"current,omitempty"`
}

func tokenResponse(p *goSession.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		SessionID:        p.SessionID,
		ExpiresInSeconds: int64(p.ExpiresIn / time.Second),
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return goSession.ErrInvalidRequest
	}
	return nil
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := h.engine.Login(r.Context(), in.Email, in.Password, in.ClientLabel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := h.engine.Register(r.Context(), in.Email, in.Password, in.ClientLabel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse(pair))
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decode(r, &in); err != nil {
		writeError(w, r, goSession.ErrRefreshInvalid)
		return
	}
	pair, err := h.engine.Refresh(r.Context(), in.SessionID, in.RefreshToken)
	if err != nil {
		if errors.Is(err, goSession.ErrSessionNotFound) {
			err = goSession.ErrRefreshInvalid
		}
		if errors.Is(err, goSession.ErrReplayDetected) {
			LoggerFrom(r.Context()).WarnContext(r.Context(), "goSession: refresh replay rejected", "session_id", in.SessionID)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(pair))
}

// logout answers 204 whatever happened so clients can always clear local
// state.
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decode(r, &in); err == nil {
		if err := h.engine.Logout(r.Context(), in.SessionID); err != nil {
			LoggerFrom(r.Context()).WarnContext(r.Context(), "goSession: logout failed", "session_id", in.SessionID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) logoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.LogoutAll(r.Context(), middleware.SubjectID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) logoutDevice(w http.ResponseWriter, r *http.Request) {
	err := h.engine.LogoutDevice(r.Context(), middleware.SubjectID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordRequest
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.engine.ChangePassword(r.Context(), middleware.SubjectID(r.Context()), in.OldPassword, in.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) sessions(w http.ResponseWriter, r *http.Request) {
	res, _ := middleware.AuthResultFromContext(r.Context())
	list, err := h.engine.Sessions(r.Context(), res.SubjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: list, Current: res.SessionID})
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	prof, err := h.engine.Profile(r.Context(), middleware.SubjectID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}
