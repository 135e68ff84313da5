package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/google/uuid"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

type storeFactory func(t *testing.T, opts Options) Store

// runStoreSuite checks the behavior every backend must share.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore) })
	t.Run("RotateAdvancesEpoch", func(t *testing.T) { testRotateAdvancesEpoch(t, newStore) })
	t.Run("ReplayRevokesSession", func(t *testing.T) { testReplayRevokesSession(t, newStore) })
	t.Run("ConcurrentRotateSingleWinner", func(t *testing.T) { testConcurrentRotateSingleWinner(t, newStore) })
	t.Run("AbsoluteCeiling", func(t *testing.T) { testAbsoluteCeiling(t, newStore) })
	t.Run("RevokeIdempotent", func(t *testing.T) { testRevokeIdempotent(t, newStore) })
	t.Run("RevokeAllForSubject", func(t *testing.T) { testRevokeAllForSubject(t, newStore) })
	t.Run("InvalidTokenLeavesRecord", func(t *testing.T) { testInvalidTokenLeavesRecord(t, newStore) })
	t.Run("ReuseGrace", func(t *testing.T) { testReuseGrace(t, newStore) })
	t.Run("ListForSubject", func(t *testing.T) { testListForSubject(t, newStore) })
	t.Run("RotateUnknownSession", func(t *testing.T) { testRotateUnknownSession(t, newStore) })
}

func subject() string { return uuid.NewString() }

func mustCreate(t *testing.T, s Store, subjectID string, now time.Time) (*Record, string) {
	t.Helper()
	rec, token, err := s.Create(context.Background(), subjectID, "test-device", now)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return rec, token
}

func mustGet(t *testing.T, s Store, sessionID string) *Record {
	t.Helper()
	rec, err := s.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return rec
}

func testCreateAndGet(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	sub := subject()
	rec, token := mustCreate(t, s, sub, t0)

	if token == "" || rec.SessionID == "" {
		t.Fatal("expected session id and token")
	}
	got := mustGet(t, s, rec.SessionID)
	if got.SubjectID != sub || got.ClientLabel != "test-device" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.RotationCounter != 0 || got.Revoked {
		t.Fatalf("expected fresh active record, got %+v", got)
	}
	if !got.ExpiresAt.Equal(t0.Add(time.Hour)) || !got.IssuedAt.Equal(t0) {
		t.Fatalf("unexpected timestamps issued=%v expires=%v", got.IssuedAt, got.ExpiresAt)
	}
	var zero [32]byte
	if got.CurrentTokenHash == zero {
		t.Fatal("expected stored token hash")
	}
}

func testRotateAdvancesEpoch(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	rec, tokenA := mustCreate(t, s, subject(), t0)
	ctx := context.Background()

	r1, tokenB, err := s.Rotate(ctx, rec.SessionID, tokenA, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if r1.RotationCounter != 1 || tokenB == tokenA {
		t.Fatalf("expected epoch 1 and a new token, got %d", r1.RotationCounter)
	}
	if !r1.LastRefreshedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("LastRefreshedAt = %v", r1.LastRefreshedAt)
	}
	if !r1.ExpiresAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("rotation must not extend ExpiresAt, got %v", r1.ExpiresAt)
	}

	r2, _, err := s.Rotate(ctx, rec.SessionID, tokenB, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("second Rotate: %v", err)
	}
	if r2.RotationCounter != 2 {
		t.Fatalf("expected epoch 2, got %d", r2.RotationCounter)
	}
}

func testReplayRevokesSession(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	rec, tokenA := mustCreate(t, s, subject(), t0)
	ctx := context.Background()

	_, tokenB, err := s.Rotate(ctx, rec.SessionID, tokenA, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	replayed, _, err := s.Rotate(ctx, rec.SessionID, tokenA, t0.Add(2*time.Minute))
	if !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected, got %v", err)
	}
	if replayed == nil || !replayed.Revoked || replayed.RevokeReason != ReasonReplay {
		t.Fatalf("expected revoked record with the failure, got %+v", replayed)
	}

	got := mustGet(t, s, rec.SessionID)
	if !got.Revoked || got.RevokeReason != ReasonReplay || !got.RevokedAt.Equal(t0.Add(2*time.Minute)) {
		t.Fatalf("expected replay revocation persisted, got %+v", got)
	}

	if _, _, err := s.Rotate(ctx, rec.SessionID, tokenB, t0.Add(3*time.Minute)); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected current token to fail with ErrRevoked, got %v", err)
	}
}

func testConcurrentRotateSingleWinner(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	rec, token := mustCreate(t, s, subject(), t0)

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		replays   atomic.Int32
		start     = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := s.Rotate(context.Background(), rec.SessionID, token, t0.Add(time.Minute))
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrReplayDetected), errors.Is(err, ErrRevoked):
				replays.Add(1)
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", successes.Load())
	}
	if replays.Load() != workers-1 {
		t.Fatalf("expected %d rejected callers, got %d", workers-1, replays.Load())
	}
}

func testAbsoluteCeiling(t *testing.T, newStore storeFactory) {
	const lifetime = 30 * 24 * time.Hour
	s := newStore(t, Options{Lifetime: lifetime})
	rec, token := mustCreate(t, s, subject(), t0)
	ctx := context.Background()

	_, token, err := s.Rotate(ctx, rec.SessionID, token, t0.Add(lifetime-time.Hour))
	if err != nil {
		t.Fatalf("Rotate before ceiling: %v", err)
	}

	_, _, err = s.Rotate(ctx, rec.SessionID, token, t0.Add(lifetime+time.Second))
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired past the ceiling, got %v", err)
	}
	got := mustGet(t, s, rec.SessionID)
	if !got.Revoked || got.RevokeReason != ReasonExpired {
		t.Fatalf("expected expired session to be revoked, got %+v", got)
	}
}

func testRevokeIdempotent(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	rec, _ := mustCreate(t, s, subject(), t0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.Revoke(ctx, rec.SessionID, ReasonLogout, t0.Add(time.Duration(i+1)*time.Minute)); err != nil {
			t.Fatalf("Revoke #%d: %v", i+1, err)
		}
	}
	got := mustGet(t, s, rec.SessionID)
	if !got.Revoked || got.RevokeReason != ReasonLogout || !got.RevokedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("expected first revocation to stick, got %+v", got)
	}

	sid, _ := internal.NewSessionID()
	if err := s.Revoke(ctx, sid.String(), ReasonLogout, t0); err != nil {
		t.Fatalf("Revoke of unknown session: %v", err)
	}
}

func testRevokeAllForSubject(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	ctx := context.Background()
	sub, other := subject(), subject()

	type pair struct {
		rec   *Record
		token string
	}
	var sessions []pair
	for i := 0; i < 3; i++ {
		rec, tok := mustCreate(t, s, sub, t0)
		sessions = append(sessions, pair{rec, tok})
	}
	otherRec, otherTok := mustCreate(t, s, other, t0)

	n, err := s.RevokeAllForSubject(ctx, sub, ReasonPasswordChange, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("RevokeAllForSubject: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revocations, got %d", n)
	}

	for _, p := range sessions {
		if _, _, err := s.Rotate(ctx, p.rec.SessionID, p.token, t0.Add(2*time.Minute)); !errors.Is(err, ErrRevoked) {
			t.Fatalf("expected ErrRevoked, got %v", err)
		}
	}
	if _, _, err := s.Rotate(ctx, otherRec.SessionID, otherTok, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("other subject must be unaffected: %v", err)
	}

	again, err := s.RevokeAllForSubject(ctx, sub, ReasonPasswordChange, t0.Add(3*time.Minute))
	if err != nil || again != 0 {
		t.Fatalf("expected no further revocations, got %d err=%v", again, err)
	}
}

func testInvalidTokenLeavesRecord(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	rec, token := mustCreate(t, s, subject(), t0)
	otherRec, otherToken := mustCreate(t, s, subject(), t0)
	ctx := context.Background()

	if _, _, err := s.Rotate(ctx, rec.SessionID, "garbage", t0); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, _, err := s.Rotate(ctx, rec.SessionID, otherToken, t0); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign token, got %v", err)
	}
	if mustGet(t, s, rec.SessionID).Revoked || mustGet(t, s, otherRec.SessionID).Revoked {
		t.Fatal("invalid tokens must not revoke sessions")
	}
	if _, _, err := s.Rotate(ctx, rec.SessionID, token, t0); err != nil {
		t.Fatalf("expected real token to still rotate: %v", err)
	}
}

func testReuseGrace(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour, ReuseGrace: 5 * time.Second})
	rec, tokenA := mustCreate(t, s, subject(), t0)
	ctx := context.Background()
	rotatedAt := t0.Add(time.Minute)

	_, tokenB, err := s.Rotate(ctx, rec.SessionID, tokenA, rotatedAt)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if _, _, err := s.Rotate(ctx, rec.SessionID, tokenA, rotatedAt.Add(2*time.Second)); !errors.Is(err, ErrStaleToken) {
		t.Fatalf("expected ErrStaleToken inside grace, got %v", err)
	}
	if mustGet(t, s, rec.SessionID).Revoked {
		t.Fatal("stale retry inside grace must not revoke")
	}

	if _, _, err := s.Rotate(ctx, rec.SessionID, tokenA, rotatedAt.Add(10*time.Second)); !errors.Is(err, ErrReplayDetected) {
		t.Fatalf("expected ErrReplayDetected after grace, got %v", err)
	}
	if _, _, err := s.Rotate(ctx, rec.SessionID, tokenB, rotatedAt.Add(11*time.Second)); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func testListForSubject(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	ctx := context.Background()
	sub := subject()

	keep, _ := mustCreate(t, s, sub, t0)
	drop, _ := mustCreate(t, s, sub, t0)
	if err := s.Revoke(ctx, drop.SessionID, ReasonLogout, t0); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	list, err := s.ListForSubject(ctx, sub, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("ListForSubject: %v", err)
	}
	if len(list) != 1 || list[0].SessionID != keep.SessionID {
		t.Fatalf("expected only the active session, got %d records", len(list))
	}

	later, err := s.ListForSubject(ctx, sub, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ListForSubject: %v", err)
	}
	if len(later) != 0 {
		t.Fatalf("expected no sessions past expiry, got %d", len(later))
	}
}

func testRotateUnknownSession(t *testing.T, newStore storeFactory) {
	s := newStore(t, Options{Lifetime: time.Hour})
	sid, _ := internal.NewSessionID()
	token, _, _ := internal.NewRefreshToken(sid)

	if _, _, err := s.Rotate(context.Background(), sid.String(), token, t0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Get(context.Background(), sid.String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Get, got %v", err)
	}
}
