package client

import (
	"context"
	"sync"
	"time"
)

// State is what a client remembers about its session.
type State struct {
	SessionID       string    `json:"sessionId"`
	AccessToken     string    `json:"accessToken"`
	RefreshToken    string    `json:"refreshToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
}

// Storage persists the session state. Load returns (nil, nil) when nothing
// is stored.
type Storage interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st State) error
	Clear(ctx context.Context) error
}

// MemoryStorage keeps state in process memory.
type MemoryStorage struct {
	mu    sync.Mutex
	state *State
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Load(context.Context) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	st := *s.state
	return &st, nil
}

func (s *MemoryStorage) Save(_ context.Context, st State) error {
	s.mu.Lock()
	s.state = &st
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Clear(context.Context) error {
	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()
	return nil
}
