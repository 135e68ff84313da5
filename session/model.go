package session

import (
	"time"
)

// RevokeReason records why a session left the active state.
type RevokeReason string

const (
	ReasonLogout         RevokeReason = "logout"
	ReasonLogoutAll      RevokeReason = "logout_all"
	ReasonReplay         RevokeReason = "replay"
	ReasonExpired        RevokeReason = "expired"
	ReasonPasswordChange RevokeReason = "password_change"
)

// Record is the server-side state of one refresh-token session.
type Record struct {
	SessionID   string
	SubjectID   string
	ClientLabel string

	CurrentTokenHash  [32]byte
	PreviousTokenHash [32]byte
	RotationCounter   uint64

	IssuedAt        time.Time
	LastRefreshedAt time.Time
	ExpiresAt       time.Time

	Revoked      bool
	RevokedAt    time.Time
	RevokeReason RevokeReason
}

// Active reports whether the record can still be rotated at now.
func (r *Record) Active(now time.Time) bool {
	return r != nil && !r.Revoked && !now.After(r.ExpiresAt)
}

// Epoch is the value embedded in access tokens for this record.
func (r *Record) Epoch() uint64 { return r.RotationCounter }

func (r *Record) clone() *Record {
	c := *r
	return &c
}

// Options configure behavior shared by all backends.
type Options struct {
	// Lifetime is the absolute ceiling from creation. Rotation never extends it.
	Lifetime time.Duration
	// ReuseGrace, when positive, lets the immediately previous token be
	// presented within this window after a rotation without being treated as
	// replay. Such calls fail with ErrStaleToken and leave the session intact.
	ReuseGrace time.Duration
}

// DefaultLifetime is used when Options.Lifetime is zero.
const DefaultLifetime = 30 * 24 * time.Hour

func (o Options) withDefaults() Options {
	if o.Lifetime <= 0 {
		o.Lifetime = DefaultLifetime
	}
	if o.ReuseGrace < 0 {
		o.ReuseGrace = 0
	}
	return o
}
