package goSession

import internalmetrics "github.com/MrEthical07/goSession/internal/metrics"

// MetricID identifies one engine counter or histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess                = internalmetrics.MetricLoginSuccess
	MetricLoginFailure                = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited            = internalmetrics.MetricLoginRateLimited
	MetricRegisterSuccess             = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate           = internalmetrics.MetricRegisterDuplicate
	MetricRefreshSuccess              = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure              = internalmetrics.MetricRefreshFailure
	MetricRefreshRateLimited          = internalmetrics.MetricRefreshRateLimited
	MetricRefreshStale                = internalmetrics.MetricRefreshStale
	MetricReplayDetected              = internalmetrics.MetricReplayDetected
	MetricSessionCreated              = internalmetrics.MetricSessionCreated
	MetricSessionExpired              = internalmetrics.MetricSessionExpired
	MetricLogout                      = internalmetrics.MetricLogout
	MetricLogoutAll                   = internalmetrics.MetricLogoutAll
	MetricPasswordChangeSuccess       = internalmetrics.MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld    = internalmetrics.MetricPasswordChangeInvalidOld
	MetricPasswordChangeReuseRejected = internalmetrics.MetricPasswordChangeReuseRejected
	MetricValidateSuccess             = internalmetrics.MetricValidateSuccess
	MetricValidateFailure             = internalmetrics.MetricValidateFailure
	MetricStrictRejected              = internalmetrics.MetricStrictRejected
	MetricValidateLatency             = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and the optional validate latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
