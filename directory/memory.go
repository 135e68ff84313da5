package directory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Directory.
type Memory struct {
	now func() time.Time

	mu      sync.RWMutex
	byID    map[string]*Record
	byEmail map[string]string
}

// NewMemory creates an empty directory. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:     now,
		byID:    make(map[string]*Record),
		byEmail: make(map[string]string),
	}
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *m.byID[id], nil
}

func (m *Memory) FindByID(ctx context.Context, subjectID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[subjectID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return *rec, nil
}

func (m *Memory) Create(ctx context.Context, email, passwordHash string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	now := m.now().UTC()
	rec := &Record{
		SubjectID:    uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return Record{}, ErrDuplicate
	}
	m.byID[rec.SubjectID] = rec
	m.byEmail[email] = rec.SubjectID
	return *rec, nil
}

func (m *Memory) UpdatePasswordHash(ctx context.Context, subjectID, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[subjectID]
	if !ok {
		return ErrNotFound
	}
	rec.PasswordHash = passwordHash
	rec.UpdatedAt = m.now().UTC()
	return nil
}

var _ Directory = (*Memory)(nil)
