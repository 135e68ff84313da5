package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireJWTOnly checks signature and expiry only. A revoked session keeps
// passing until its access token expires.
func RequireJWTOnly(v Validator) func(http.Handler) http.Handler {
	return Guard(v, goSession.ModeJWTOnly)
}
