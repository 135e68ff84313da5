package internaldefs

import (
	"github.com/MrEthical07/goSession/internal/metrics"
)

type CounterDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   metrics.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: metrics.MetricLoginSuccess, Name: "gosession_login_success_total", Help: "Successful logins."},
	{ID: metrics.MetricLoginFailure, Name: "gosession_login_failure_total", Help: "Failed logins."},
	{ID: metrics.MetricLoginRateLimited, Name: "gosession_login_rate_limited_total", Help: "Logins rejected by the rate limiter."},
	{ID: metrics.MetricRegisterSuccess, Name: "gosession_register_success_total", Help: "Successful registrations."},
	{ID: metrics.MetricRegisterDuplicate, Name: "gosession_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: metrics.MetricRefreshSuccess, Name: "gosession_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: metrics.MetricRefreshFailure, Name: "gosession_refresh_failure_total", Help: "Failed refresh attempts other than replay."},
	{ID: metrics.MetricRefreshRateLimited, Name: "gosession_refresh_rate_limited_total", Help: "Refreshes rejected by the rate limiter."},
	{ID: metrics.MetricRefreshStale, Name: "gosession_refresh_stale_total", Help: "Refreshes rejected inside the reuse grace window."},
	{ID: metrics.MetricReplayDetected, Name: "gosession_replay_detected_total", Help: "Refresh token replays that revoked a session."},
	{ID: metrics.MetricSessionCreated, Name: "gosession_session_created_total", Help: "Sessions created."},
	{ID: metrics.MetricSessionExpired, Name: "gosession_session_expired_total", Help: "Refreshes refused at the absolute session lifetime."},
	{ID: metrics.MetricLogout, Name: "gosession_logout_total", Help: "Single-session logouts."},
	{ID: metrics.MetricLogoutAll, Name: "gosession_logout_all_total", Help: "Logout-all operations."},
	{ID: metrics.MetricPasswordChangeSuccess, Name: "gosession_password_change_success_total", Help: "Successful password changes."},
	{ID: metrics.MetricPasswordChangeInvalidOld, Name: "gosession_password_change_invalid_old_total", Help: "Password changes with a wrong current password."},
	{ID: metrics.MetricPasswordChangeReuseRejected, Name: "gosession_password_change_reuse_rejected_total", Help: "Password changes rejected for reusing the current password."},
	{ID: metrics.MetricValidateSuccess, Name: "gosession_validate_success_total", Help: "Accepted access tokens."},
	{ID: metrics.MetricValidateFailure, Name: "gosession_validate_failure_total", Help: "Rejected access tokens."},
	{ID: metrics.MetricStrictRejected, Name: "gosession_strict_rejected_total", Help: "Valid tokens rejected by the session store check."},
}

var HistogramDefs = []HistogramDef{
	{ID: metrics.MetricValidateLatency, Name: "gosession_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds of the fixed latency buckets, in
// seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bucket in instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "gosession_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
