package session

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// cmdCounter is a go-redis hook counting commands and pipeline round trips.
type cmdCounter struct {
	commands  atomic.Int64
	pipelines atomic.Int64
}

func (h *cmdCounter) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *cmdCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.commands.Add(1)
		return next(ctx, cmd)
	}
}

func (h *cmdCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		h.pipelines.Add(1)
		h.commands.Add(int64(len(cmds)))
		return next(ctx, cmds)
	}
}

func (h *cmdCounter) reset() {
	h.commands.Store(0)
	h.pipelines.Store(0)
}

func newCountedRedisStore(t *testing.T) (*RedisStore, *cmdCounter) {
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

	// Warm the connection so handshake commands are not counted.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("warmup ping: %v", err)
	}
	counter := &cmdCounter{}
	rdb.AddHook(counter)
	return NewRedisStore(rdb, "gs", Options{Lifetime: time.Hour}), counter
}

func TestRedisBudgetCreateIsOneRoundTrip(t *testing.T) {
	s, counter := newCountedRedisStore(t)
	counter.reset()
	mustCreate(t, s, "sub", t0)
	if p := counter.pipelines.Load(); p != 1 {
		t.Fatalf("Create used %d pipelines, want 1", p)
	}
}

// Rotation is one script call. go-redis may fall back from EVALSHA to EVAL
// the first time, so two commands is the ceiling.
func TestRedisBudgetRotate(t *testing.T) {
	s, counter := newCountedRedisStore(t)
	rec, token := mustCreate(t, s, "sub", t0)

	counter.reset()
	_, next, err := s.Rotate(context.Background(), rec.SessionID, token, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if c := counter.commands.Load(); c > 2 {
		t.Fatalf("Rotate used %d commands, budget is 2", c)
	}

	counter.reset()
	if _, _, err := s.Rotate(context.Background(), rec.SessionID, next, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if c := counter.commands.Load(); c > 2 {
		t.Fatalf("second Rotate used %d commands, budget is 2", c)
	}
}

func TestRedisBudgetReplayRevokesInSameCall(t *testing.T) {
	s, counter := newCountedRedisStore(t)
	rec, token := mustCreate(t, s, "sub", t0)
	if _, _, err := s.Rotate(context.Background(), rec.SessionID, token, t0.Add(time.Minute)); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	counter.reset()
	if _, _, err := s.Rotate(context.Background(), rec.SessionID, token, t0.Add(2*time.Minute)); err == nil {
		t.Fatal("expected replay")
	}
	if c := counter.commands.Load(); c > 2 {
		t.Fatalf("replay used %d commands, budget is 2", c)
	}
	if got := mustGet(t, s, rec.SessionID); !got.Revoked {
		t.Fatal("replay must revoke within the script")
	}
}

func TestRedisBudgetGet(t *testing.T) {
	s, counter := newCountedRedisStore(t)
	rec, _ := mustCreate(t, s, "sub", t0)

	counter.reset()
	mustGet(t, s, rec.SessionID)
	if c := counter.commands.Load(); c != 1 {
		t.Fatalf("Get used %d commands, want 1", c)
	}
}
