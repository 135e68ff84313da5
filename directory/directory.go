package directory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("directory: not found")
	ErrDuplicate = errors.New("directory: email already registered")
)

// Record is one user's credential entry. Email is stored normalized.
type Record struct {
	SubjectID    string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the part of a Record that may leave the server.
type Profile struct {
	SubjectID   string    `json:"subjectId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (r Record) Profile() Profile {
	return Profile{
		SubjectID:   r.SubjectID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		CreatedAt:   r.CreatedAt,
	}
}

// Directory is the user store contract. Lookups of unknown users return
// ErrNotFound; Create returns ErrDuplicate when the email is taken.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (Record, error)
	FindByID(ctx context.Context, subjectID string) (Record, error)
	Create(ctx context.Context, email, passwordHash string) (Record, error)
	UpdatePasswordHash(ctx context.Context, subjectID, passwordHash string) error
}
