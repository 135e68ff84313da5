// Package internal holds helpers private to goSession: session identifiers
// and the opaque refresh-token wire format.
//
// A refresh token is base64url(sessionID[16] || secret[32]). Stores keep
// sha256(secret) only.
//
// # Sub-packages
//
//   - flows: request orchestration for every Engine operation
//   - rate: Redis and in-process rate limiting primitives
//   - migrate: embedded Postgres schema migrations
//   - audit: event dispatcher and sinks
//   - metrics: lock-free counters and the validate latency histogram
//   - security: configuration posture report
package internal
