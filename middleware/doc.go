// Package middleware protects net/http handlers with goSession access
// tokens.
//
// [Guard] reads the bearer token, calls Engine.Validate with the route's
// mode and stores the resulting [goSession.AuthResult] in the request
// context. Every failure is answered with the same 401 body, so callers
// cannot tell an expired token from a forged one; the engine still logs and
// audits the difference.
//
// [RequireJWTOnly] and [RequireStrict] pin the mode for a route regardless
// of Config.ValidationMode.
package middleware
