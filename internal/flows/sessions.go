package flows

import (
	"context"
	"sort"
	"time"

	"github.com/MrEthical07/goSession/session"
)

type SessionLister interface {
	ListForSubject(ctx context.Context, subjectID string, now time.Time) ([]*session.Record, error)
}

type SessionsDeps struct {
	Now              func() time.Time
	Sessions         SessionLister
	StoreUnavailable error
}

// RunListSessions returns the subject's active sessions, most recently
// refreshed first.
func RunListSessions(ctx context.Context, subjectID string, deps SessionsDeps) ([]SessionInfo, error) {
	recs, err := deps.Sessions.ListForSubject(ctx, subjectID, nowFunc(deps.Now)())
	if err != nil {
		return nil, mapStoreErr(err, deps.StoreUnavailable)
	}

	out := make([]SessionInfo, 0, len(recs))
	for _, r := range recs {
		out = append(out, SessionInfo{
			SessionID:       r.SessionID,
			ClientLabel:     r.ClientLabel,
			IssuedAt:        r.IssuedAt,
			LastRefreshedAt: r.LastRefreshedAt,
			ExpiresAt:       r.ExpiresAt,
			Epoch:           r.Epoch(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastRefreshedAt.Equal(out[j].LastRefreshedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].LastRefreshedAt.After(out[j].LastRefreshedAt)
	})
	return out, nil
}
