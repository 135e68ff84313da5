package session

import (
	"context"
	"time"
)

// Store is the session persistence contract. All methods are safe for
// concurrent use, and Rotate and Revoke are atomic per session id.
type Store interface {
	// Create starts a session and returns its record with the first refresh
	// token in wire form.
	Create(ctx context.Context, subjectID, clientLabel string, now time.Time) (*Record, string, error)
	// Rotate exchanges the presented token for a new one. See the package
	// documentation for the failure rules. When the session exists the
	// record is returned alongside a failure, reflecting any revocation the
	// attempt caused.
	Rotate(ctx context.Context, sessionID, token string, now time.Time) (*Record, string, error)
	// Revoke marks a session revoked. Unknown or already revoked ids are not
	// an error.
	Revoke(ctx context.Context, sessionID string, reason RevokeReason, now time.Time) error
	// RevokeAllForSubject revokes every session of subjectID and returns how
	// many transitioned from active to revoked.
	RevokeAllForSubject(ctx context.Context, subjectID string, reason RevokeReason, now time.Time) (int, error)
	// Get returns the record, revoked or not, until it is garbage collected.
	Get(ctx context.Context, sessionID string) (*Record, error)
	// ListForSubject returns the subject's sessions that are active at now.
	ListForSubject(ctx context.Context, subjectID string, now time.Time) ([]*Record, error)
	Ping(ctx context.Context) error
}
