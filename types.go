package goSession

import (
	"time"

	"github.com/MrEthical07/goSession/directory"
)

// TokenPair is what Login, Register and Refresh hand to the client.
// ExpiresIn is the access token's remaining lifetime at issuance.
type TokenPair struct {
	SubjectID    string
	SessionID    string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Epoch        uint64
}

// AuthResult is returned by [Engine.Validate].
type AuthResult struct {
	SubjectID string
	SessionID string
	Epoch     uint64
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Mode is the validation mode that was actually applied.
	Mode ValidationMode
}

// SessionInfo describes one active session of a subject.
type SessionInfo struct {
	SessionID       string    `json:"sessionId"`
	ClientLabel     string    `json:"clientLabel,omitempty"`
	IssuedAt        time.Time `json:"issuedAt"`
	LastRefreshedAt time.Time `json:"lastRefreshedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	Epoch           uint64    `json:"epoch"`
}

// Directory is the user store the engine authenticates against.
type Directory = directory.Directory

// Profile is the public view of a directory record.
type Profile = directory.Profile
