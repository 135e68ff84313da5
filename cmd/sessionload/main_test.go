package main

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/session"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v, want 5", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v, want 10", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty p50 = %v", got)
	}
}

func TestPhasesAgainstMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(session.Options{Lifetime: time.Hour})

	states, err := seed(ctx, store, 20)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	get := runGetPhase(ctx, store, states, 200, 8)
	if get.ops != 200 || get.failures != 0 {
		t.Fatalf("get phase: ops=%d failures=%d", get.ops, get.failures)
	}

	rot := runRotatePhase(ctx, store, states, 200, 8)
	if rot.ops != 200 || rot.failures != 0 {
		t.Fatalf("rotate phase: ops=%d failures=%d", rot.ops, rot.failures)
	}
}
