package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	sessionIDSize    = 16
	refreshSecretLen = 32
	refreshTokenLen  = sessionIDSize + refreshSecretLen
)

// ErrMalformedRefreshToken is returned for tokens that do not decode to a
// session id and secret of the expected size.
var ErrMalformedRefreshToken = errors.New("malformed refresh token")

// SessionID is a random 128-bit session identifier, rendered base64url.
type SessionID [sessionIDSize]byte

// RefreshSecret is the random part of a refresh token. Only its hash is stored.
type RefreshSecret [refreshSecretLen]byte

// TokenHash is the stored digest of a RefreshSecret.
type TokenHash [sha256.Size]byte

func NewSessionID() (SessionID, error) {
	var sid SessionID
	if _, err := rand.Read(sid[:]); err != nil {
		return sid, fmt.Errorf("session id: %w", err)
	}
	return sid, nil
}

func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

func ParseSessionID(v string) (SessionID, error) {
	var sid SessionID
	raw, err := base64.RawURLEncoding.DecodeString(v)
	if err != nil || len(raw) != len(sid) {
		return sid, errors.New("invalid session id")
	}
	copy(sid[:], raw)
	return sid, nil
}

func NewRefreshSecret() (RefreshSecret, error) {
	var secret RefreshSecret
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, fmt.Errorf("refresh secret: %w", err)
	}
	return secret, nil
}

func (s RefreshSecret) Hash() TokenHash {
	return sha256.Sum256(s[:])
}

// Equal compares in constant time.
func (h TokenHash) Equal(other TokenHash) bool {
	return subtle.ConstantTimeCompare(h[:], other[:]) == 1
}

// IsZero reports an unset hash.
func (h TokenHash) IsZero() bool {
	return h == TokenHash{}
}

// EncodeRefreshToken renders base64url(sessionID || secret).
func EncodeRefreshToken(sid SessionID, secret RefreshSecret) string {
	var raw [refreshTokenLen]byte
	copy(raw[:sessionIDSize], sid[:])
	copy(raw[sessionIDSize:], secret[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func DecodeRefreshToken(token string) (SessionID, RefreshSecret, error) {
	var (
		sid    SessionID
		secret RefreshSecret
	)
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenLen {
		return sid, secret, ErrMalformedRefreshToken
	}
	copy(sid[:], raw[:sessionIDSize])
	copy(secret[:], raw[sessionIDSize:])
	return sid, secret, nil
}

// NewRefreshToken draws a fresh secret for sid and returns the wire token
// with the hash to store.
func NewRefreshToken(sid SessionID) (string, TokenHash, error) {
	secret, err := NewRefreshSecret()
	if err != nil {
		return "", TokenHash{}, err
	}
	return EncodeRefreshToken(sid, secret), secret.Hash(), nil
}
