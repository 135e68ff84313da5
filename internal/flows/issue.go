package flows

import (
	"context"
	"time"
)

// IssueDeps captures what session issuance needs.
type IssueDeps struct {
	Now      func() time.Time
	Sessions SessionCreator
	Access   AccessIssuer
}

// RunIssue creates a session for subjectID and signs its first access token.
// If signing fails the stored session is left to expire; its refresh token
// never left the process.
func RunIssue(ctx context.Context, subjectID, clientLabel string, deps IssueDeps) (*Issued, error) {
	now := nowFunc(deps.Now)()

	rec, refresh, err := deps.Sessions.Create(ctx, subjectID, clientLabel, now)
	if err != nil {
		return nil, err
	}

	access, expiresAt, err := deps.Access.Issue(subjectID, rec.SessionID, rec.Epoch(), now)
	if err != nil {
		return nil, err
	}

	return &Issued{
		SubjectID:       subjectID,
		SessionID:       rec.SessionID,
		AccessToken:     access,
		AccessExpiresAt: expiresAt,
		RefreshToken:    refresh,
		Epoch:           rec.Epoch(),
	}, nil
}
