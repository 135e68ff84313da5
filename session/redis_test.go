package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T, opts Options) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "gs", opts), mr
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, opts Options) Store {
		s, _ := newRedisStoreTest(t, opts)
		return s
	})
}

func TestRedisStoreKeyTTLMatchesLifetime(t *testing.T) {
	s, mr := newRedisStoreTest(t, Options{Lifetime: time.Hour})
	rec, _ := mustCreate(t, s, "sub", t0)

	ttl := mr.TTL("gs:s:" + rec.SessionID)
	want := time.Hour + expiredRetention
	if ttl <= want-time.Minute || ttl > want {
		t.Fatalf("unexpected session key ttl %v, want about %v", ttl, want)
	}
	if !mr.Exists("gs:u:sub") {
		t.Fatal("expected subject index")
	}
}

func TestRedisStoreRotationKeepsTTL(t *testing.T) {
	s, mr := newRedisStoreTest(t, Options{Lifetime: time.Hour})
	rec, token := mustCreate(t, s, "sub", t0)

	mr.FastForward(10 * time.Minute)
	if _, _, err := s.Rotate(context.Background(), rec.SessionID, token, t0.Add(10*time.Minute)); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	ttl := mr.TTL("gs:s:" + rec.SessionID)
	if ttl > 50*time.Minute+expiredRetention || ttl <= 0 {
		t.Fatalf("rotation must not extend key ttl, got %v", ttl)
	}
}

func TestRedisStoreExpiredRecordReportsExpired(t *testing.T) {
	s, mr := newRedisStoreTest(t, Options{Lifetime: time.Hour})
	rec, token := mustCreate(t, s, "sub", t0)

	mr.FastForward(2 * time.Hour)
	got, _, err := s.Rotate(context.Background(), rec.SessionID, token, t0.Add(2*time.Hour))
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired past the lifetime, got %v", err)
	}
	if got == nil || !got.Revoked || got.RevokeReason != ReasonExpired {
		t.Fatalf("expected record revoked as expired, got %+v", got)
	}
}

func TestRedisStoreGarbageCollectedRecord(t *testing.T) {
	s, mr := newRedisStoreTest(t, Options{Lifetime: time.Hour})
	rec, _ := mustCreate(t, s, "sub", t0)

	mr.FastForward(time.Hour + expiredRetention + time.Minute)
	if _, err := s.Get(context.Background(), rec.SessionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after key expiry, got %v", err)
	}
	if err := s.Revoke(context.Background(), rec.SessionID, ReasonLogout, t0.Add(26*time.Hour)); err != nil {
		t.Fatalf("Revoke after expiry: %v", err)
	}
}

func TestRedisStoreListPrunesIndex(t *testing.T) {
	s, mr := newRedisStoreTest(t, Options{Lifetime: time.Hour})
	rec, _ := mustCreate(t, s, "sub", t0)
	mr.Del("gs:s:" + rec.SessionID)

	list, err := s.ListForSubject(context.Background(), "sub", t0)
	if err != nil {
		t.Fatalf("ListForSubject: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no sessions, got %d", len(list))
	}
	if ok, _ := mr.SIsMember("gs:u:sub", rec.SessionID); ok {
		t.Fatal("expected dangling id to be pruned")
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	s, mr := newRedisStoreTest(t, Options{Lifetime: time.Hour})
	rec, token := mustCreate(t, s, "sub", t0)
	if err := mr.Set("gs:s:"+rec.SessionID, "junk"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if _, _, err := s.Rotate(context.Background(), rec.SessionID, token, t0); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	s, mr := newRedisStoreTest(t, Options{Lifetime: time.Hour})
	mr.Close()

	if _, _, err := s.Create(context.Background(), "sub", "", t0); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Ping, got %v", err)
	}
}
