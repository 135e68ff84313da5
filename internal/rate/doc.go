// Package rate provides the attempt limiters used by the session engine for
// login failures and refresh calls.
//
// # Window semantics
//
// [Limiter] uses Redis fixed-window counters: INCR plus EXPIRE on the first
// hit of a window. Key layout under the configured prefix:
//   - <prefix>:rl:l:<email>   login failures per account
//   - <prefix>:rl:li:<ip>     login failures per client address
//   - <prefix>:rl:r:<sid>     refresh calls per session
//
// [Local] is the in-process fallback for deployments without Redis. It keeps
// one token bucket per key, so limits are per instance rather than global.
//
// Policy (what to count, when to reset) belongs to internal/flows.
package rate
