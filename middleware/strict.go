package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireStrict also consults the session store. Revoked, missing and
// superseded sessions are rejected, and so is every request while the store
// is unreachable.
func RequireStrict(v Validator) func(http.Handler) http.Handler {
	return Guard(v, goSession.ModeStrict)
}
