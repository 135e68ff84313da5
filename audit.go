package goSession

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
)

// AuditEvent is one security-relevant engine event.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
// Implementations must not block for long; a slow sink drops events when
// Config.Audit.DropIfFull is set.
type AuditSink = internalaudit.Sink

type (
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	SlogSink       = internalaudit.SlogSink
	MultiSink      = internalaudit.MultiSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink logs every event at info level, failures at warn.
func NewSlogSink(logger *slog.Logger) SlogSink {
	return SlogSink{Logger: logger}
}

// Audit event types.
const (
	AuditLoginSuccess          = flows.EventLoginSuccess
	AuditLoginFailure          = flows.EventLoginFailure
	AuditLoginRateLimited      = flows.EventLoginRateLimited
	AuditRegisterSuccess       = flows.EventRegisterSuccess
	AuditRegisterFailure       = flows.EventRegisterFailure
	AuditRefreshSuccess        = flows.EventRefreshSuccess
	AuditRefreshFailure        = flows.EventRefreshFailure
	AuditRefreshRateLimited    = flows.EventRefreshRateLimited
	AuditReplayDetected        = flows.EventReplayDetected
	AuditLogout                = flows.EventLogout
	AuditLogoutAll             = flows.EventLogoutAll
	AuditPasswordChangeSuccess = flows.EventPasswordChangeSuccess
	AuditPasswordChangeFailure = flows.EventPasswordChangeFailure
	AuditStrictRejected        = flows.EventStrictRejected
)
