package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// ClaimsVersion is the current access-token claim schema.
const ClaimsVersion = 1

// Claims is the access-token payload. Subject, IssuedAt and ExpiresAt live in
// the embedded registered claims.
type Claims struct {
	Version   int    `json:"v"`
	SessionID string `json:"sid"`
	Epoch     uint64 `json:"ep"`
	jwt.RegisteredClaims
}
