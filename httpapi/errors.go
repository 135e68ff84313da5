package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// Error codes carried in the "error" field.
const (
	CodeInvalidRequest     = "invalid_request"
	CodeInvalidCredentials = "invalid_credentials"
	CodeAccountExists      = "account_exists"
	CodePasswordPolicy     = "password_policy"
	CodePasswordReuse      = "password_reuse"
	CodeRefreshFailed      = "refresh_failed"
	CodeRefreshConflict    = "refresh_conflict"
	CodeSessionNotFound    = "session_not_found"
	CodeRateLimited        = "rate_limited"
	CodeStoreUnavailable   = "store_unavailable"
	CodeInternal           = "internal"
)

// Refresh failure reasons carried in the "reason" field.
const (
	ReasonExpired        = "Expired"
	ReasonRevoked        = "Revoked"
	ReasonReplayDetected = "ReplayDetected"
	ReasonInvalid        = "Invalid"
	ReasonConflict       = "Conflict"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// toHTTP maps engine errors to a status and body. Unknown errors become a
// bare 500 so internal details never reach the client.
func toHTTP(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, goSession.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: CodeStoreUnavailable}
	case errors.Is(err, goSession.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{Error: CodeRateLimited}
	case errors.Is(err, goSession.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeInvalidCredentials}
	case errors.Is(err, goSession.ErrAccountExists):
		return http.StatusConflict, ErrorResponse{Error: CodeAccountExists}
	case errors.Is(err, goSession.ErrPasswordPolicy):
		return http.StatusBadRequest, ErrorResponse{Error: CodePasswordPolicy}
	case errors.Is(err, goSession.ErrPasswordReuse):
		return http.StatusBadRequest, ErrorResponse{Error: CodePasswordReuse}
	case errors.Is(err, goSession.ErrInvalidRequest):
		return http.StatusBadRequest, ErrorResponse{Error: CodeInvalidRequest}
	case errors.Is(err, goSession.ErrRefreshConflict):
		return http.StatusConflict, ErrorResponse{Error: CodeRefreshConflict, Reason: ReasonConflict}
	case errors.Is(err, goSession.ErrSessionExpired):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeRefreshFailed, Reason: ReasonExpired}
	case errors.Is(err, goSession.ErrSessionRevoked):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeRefreshFailed, Reason: ReasonRevoked}
	case errors.Is(err, goSession.ErrReplayDetected):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeRefreshFailed, Reason: ReasonReplayDetected}
	case errors.Is(err, goSession.ErrRefreshInvalid):
		return http.StatusUnauthorized, ErrorResponse{Error: CodeRefreshFailed, Reason: ReasonInvalid}
	case errors.Is(err, goSession.ErrSessionNotFound):
		return http.StatusNotFound, ErrorResponse{Error: CodeSessionNotFound}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: CodeInternal}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := toHTTP(err)
	if status >= http.StatusInternalServerError {
		LoggerFrom(r.Context()).ErrorContext(r.Context(), "goSession: request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
