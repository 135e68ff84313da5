// Package session stores refresh-token session records and performs the
// rotate/revoke state transitions on them.
//
// Every backend ([RedisStore], [PostgresStore], [MemoryStore]) applies the same
// rules atomically per session id:
//
//   - a revoked record never becomes active again
//   - ExpiresAt is fixed at creation and never extended by rotation
//   - presenting a well-formed token whose hash is not the current one revokes
//     the session before the call returns [ErrReplayDetected]
//
// Only sha256 digests of refresh secrets are persisted. The package does not
// interpret access tokens or make authorization decisions.
package session
