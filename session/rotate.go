package session

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/MrEthical07/goSession/internal"
)

// presented decodes a wire token and checks that it belongs to sessionID.
func presented(sessionID, token string) (internal.SessionID, internal.TokenHash, error) {
	sid, secret, err := internal.DecodeRefreshToken(token)
	if err != nil {
		return sid, internal.TokenHash{}, ErrInvalidToken
	}
	if sid.String() != sessionID {
		return sid, internal.TokenHash{}, fmt.Errorf("%w: token belongs to another session", ErrInvalidToken)
	}
	return sid, secret.Hash(), nil
}

func hashEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// rotate applies one rotation attempt to r in place. On a nil return the
// caller persists r (now carrying next). On ErrExpired or ErrReplayDetected r
// has been revoked and must be persisted too. Other errors leave r untouched.
func (r *Record) rotate(hash, next internal.TokenHash, now time.Time, grace time.Duration) error {
	if r.Revoked {
		return ErrRevoked
	}
	if now.After(r.ExpiresAt) {
		r.revoke(ReasonExpired, now)
		return ErrExpired
	}
	if hashEqual(r.CurrentTokenHash, hash) {
		r.PreviousTokenHash = r.CurrentTokenHash
		r.CurrentTokenHash = next
		r.RotationCounter++
		r.LastRefreshedAt = now
		return nil
	}
	if grace > 0 && r.RotationCounter > 0 &&
		hashEqual(r.PreviousTokenHash, hash) &&
		now.Sub(r.LastRefreshedAt) <= grace {
		return ErrStaleToken
	}
	r.revoke(ReasonReplay, now)
	return ErrReplayDetected
}

// revoke is a no-op on an already revoked record so the first reason wins.
func (r *Record) revoke(reason RevokeReason, now time.Time) bool {
	if r.Revoked {
		return false
	}
	r.Revoked = true
	r.RevokedAt = now
	r.RevokeReason = reason
	return true
}

// newRecord builds the initial record and its first wire token.
func newRecord(subjectID, clientLabel string, now time.Time, lifetime time.Duration) (*Record, string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, "", err
	}
	token, hash, err := internal.NewRefreshToken(sid)
	if err != nil {
		return nil, "", err
	}
	now = now.Truncate(time.Millisecond)
	return &Record{
		SessionID:        sid.String(),
		SubjectID:        subjectID,
		ClientLabel:      clientLabel,
		CurrentTokenHash: hash,
		IssuedAt:         now,
		LastRefreshedAt:  now,
		ExpiresAt:        now.Add(lifetime),
	}, token, nil
}
