// Package goSession issues, validates, refreshes and revokes session
// credentials: short-lived signed access tokens and long-lived opaque refresh
// tokens that rotate on every use.
//
// [Engine] is the public surface, assembled with [Builder]. Engine methods are
// safe for concurrent use after [Builder.Build].
//
// # Refresh rotation
//
// Every refresh exchanges the presented refresh token for a new one inside a
// single atomic store operation. Presenting a superseded token is treated as
// theft: the whole session is revoked and [ErrReplayDetected] is returned, to
// the attacker and the legitimate holder alike. Sessions carry an absolute
// expiry that rotation never extends.
//
// # Validation modes
//
// [ModeJWTOnly] verifies access tokens without touching the store and accepts
// revoked sessions until the token expires. [ModeStrict] additionally loads
// the session and rejects revoked sessions and tokens whose epoch was
// superseded by a later refresh. Strict validation fails closed when the
// store is unreachable.
//
// # Architecture boundaries
//
// Orchestration lives in internal/flows; storage backends live in session;
// token signing in jwt. This package only wires them together and maps their
// failures onto the error values declared in errors.go.
package goSession
