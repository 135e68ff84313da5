package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/internal"
)

const memoryShards = 64

// MemoryStore keeps records in process memory. Records are locked by shard,
// so unrelated sessions never contend on one lock. Intended for tests, single
// instance deployments and the load generator.
type MemoryStore struct {
	opts   Options
	shards [memoryShards]memoryShard

	subjectsMu sync.Mutex
	subjects   map[string]map[string]struct{}
}

type memoryShard struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewMemoryStore(opts Options) *MemoryStore {
	s := &MemoryStore{
		opts:     opts.withDefaults(),
		subjects: make(map[string]map[string]struct{}),
	}
	for i := range s.shards {
		s.shards[i].records = make(map[string]*Record)
	}
	return s
}

func (s *MemoryStore) shard(sessionID string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) Create(ctx context.Context, subjectID, clientLabel string, now time.Time) (*Record, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	rec, token, err := newRecord(subjectID, clientLabel, now, s.opts.Lifetime)
	if err != nil {
		return nil, "", err
	}

	sh := s.shard(rec.SessionID)
	sh.mu.Lock()
	sh.records[rec.SessionID] = rec
	sh.mu.Unlock()

	s.subjectsMu.Lock()
	set, ok := s.subjects[subjectID]
	if !ok {
		set = make(map[string]struct{})
		s.subjects[subjectID] = set
	}
	set[rec.SessionID] = struct{}{}
	s.subjectsMu.Unlock()

	return rec.clone(), token, nil
}

func (s *MemoryStore) Rotate(ctx context.Context, sessionID, token string, now time.Time) (*Record, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	sid, hash, err := presented(sessionID, token)
	if err != nil {
		return nil, "", err
	}
	nextToken, nextHash, err := internal.NewRefreshToken(sid)
	if err != nil {
		return nil, "", err
	}

	sh := s.shard(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[sessionID]
	if !ok {
		return nil, "", ErrNotFound
	}
	if err := rec.rotate(hash, nextHash, now, s.opts.ReuseGrace); err != nil {
		return rec.clone(), "", err
	}
	return rec.clone(), nextToken, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, sessionID string, reason RevokeReason, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sh := s.shard(sessionID)
	sh.mu.Lock()
	if rec, ok := sh.records[sessionID]; ok {
		rec.revoke(reason, now)
	}
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) RevokeAllForSubject(ctx context.Context, subjectID string, reason RevokeReason, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	revoked := 0
	for _, id := range s.subjectSessionIDs(subjectID) {
		sh := s.shard(id)
		sh.mu.Lock()
		if rec, ok := sh.records[id]; ok && rec.revoke(reason, now) {
			revoked++
		}
		sh.mu.Unlock()
	}
	return revoked, nil
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sh := s.shard(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.clone(), nil
}

func (s *MemoryStore) ListForSubject(ctx context.Context, subjectID string, now time.Time) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []*Record{}
	for _, id := range s.subjectSessionIDs(subjectID) {
		sh := s.shard(id)
		sh.mu.Lock()
		if rec, ok := sh.records[id]; ok && rec.Active(now) {
			out = append(out, rec.clone())
		}
		sh.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// PurgeExpired drops records whose absolute lifetime ended before now and
// returns how many were removed.
func (s *MemoryStore) PurgeExpired(now time.Time) int {
	removed := 0
	var gone []*Record
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, rec := range sh.records {
			if now.After(rec.ExpiresAt) {
				delete(sh.records, id)
				gone = append(gone, rec)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	s.subjectsMu.Lock()
	for _, rec := range gone {
		if set, ok := s.subjects[rec.SubjectID]; ok {
			delete(set, rec.SessionID)
			if len(set) == 0 {
				delete(s.subjects, rec.SubjectID)
			}
		}
	}
	s.subjectsMu.Unlock()
	return removed
}

func (s *MemoryStore) subjectSessionIDs(subjectID string) []string {
	s.subjectsMu.Lock()
	defer s.subjectsMu.Unlock()
	set := s.subjects[subjectID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

var _ Store = (*MemoryStore)(nil)
