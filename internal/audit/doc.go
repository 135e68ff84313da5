// Package audit implements async event dispatching for session lifecycle
// events (logins, rotations, replays, revocations).
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, fan-out, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with id, timestamp, type, subject, session, IP, metadata.
//
// This package owns event buffering and sink delivery. It does not decide
// which events to emit; the Engine and flow functions do.
package audit
