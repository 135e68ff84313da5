// Package client keeps a goSession pair on the client side and attaches it
// to outgoing requests.
//
// A [Manager] refreshes the access token shortly before it expires and
// again when the server answers 401. Concurrent callers share one refresh
// call per Manager, so a burst of requests spends the refresh token exactly
// once. A request that still gets 401 after a refresh is not retried again:
// local state is cleared and [ErrSessionExpired] is returned.
//
// Platform presets choose the storage:
//
//   - PlatformWeb keeps tokens in process memory only. Anything that can
//     run code in the same process can read them; a reload loses the session.
//   - PlatformMobile persists tokens in a file sealed with
//     XChaCha20-Poly1305 under a caller-supplied 32-byte key, typically
//     kept in the platform keystore.
package client
