package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Algorithm names a JWS algorithm supported for access tokens.
type Algorithm string

const (
	EdDSA Algorithm = "EdDSA"
	HS256 Algorithm = "HS256"
)

const minHMACSecret = 32

var (
	ErrInvalidKey   = errors.New("keys: invalid key material")
	ErrEmptySet     = errors.New("keys: empty key set")
	ErrDuplicateKID = errors.New("keys: duplicate key id")
	ErrCannotSign   = errors.New("keys: first key has no signing material")
)

// Key is one signing or verification key.
type Key struct {
	ID        string
	Algorithm Algorithm

	sign   any
	verify any
}

// CanSign reports whether the key carries private material.
func (k Key) CanSign() bool { return k.sign != nil }

// SigningMethod returns the golang-jwt method for the key's algorithm.
func (k Key) SigningMethod() jwt.SigningMethod {
	if k.Algorithm == HS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

// SignKey returns the value passed to jwt.Token.SignedString.
func (k Key) SignKey() any { return k.sign }

// VerifyKey returns the value handed back from a jwt.Keyfunc.
func (k Key) VerifyKey() any { return k.verify }

// Ed25519 builds a signing key. An empty id is replaced by the thumbprint of
// the public key.
func Ed25519(id string, priv ed25519.PrivateKey) (Key, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Key{}, fmt.Errorf("%w: ed25519 private key has %d bytes", ErrInvalidKey, len(priv))
	}
	pub := priv.Public().(ed25519.PublicKey)
	if id == "" {
		kid, err := Thumbprint(pub)
		if err != nil {
			return Key{}, err
		}
		id = kid
	}
	return Key{ID: id, Algorithm: EdDSA, sign: priv, verify: pub}, nil
}

// Ed25519Public builds a verify-only key, typically a retired signer.
func Ed25519Public(id string, pub ed25519.PublicKey) (Key, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Key{}, fmt.Errorf("%w: ed25519 public key has %d bytes", ErrInvalidKey, len(pub))
	}
	if id == "" {
		kid, err := Thumbprint(pub)
		if err != nil {
			return Key{}, err
		}
		id = kid
	}
	return Key{ID: id, Algorithm: EdDSA, verify: pub}, nil
}

// HMAC builds a symmetric HS256 key. The secret must be at least 32 bytes.
func HMAC(id string, secret []byte) (Key, error) {
	if id == "" {
		return Key{}, fmt.Errorf("%w: hmac keys need an explicit id", ErrInvalidKey)
	}
	if len(secret) < minHMACSecret {
		return Key{}, fmt.Errorf("%w: hmac secret shorter than %d bytes", ErrInvalidKey, minHMACSecret)
	}
	s := append([]byte(nil), secret...)
	return Key{ID: id, Algorithm: HS256, sign: s, verify: s}, nil
}

// ParsePEM accepts a PKCS#8 Ed25519 private key or a PKIX public key.
func ParsePEM(id string, data []byte) (Key, error) {
	if priv, err := jwt.ParseEdPrivateKeyFromPEM(data); err == nil {
		edPriv, ok := priv.(ed25519.PrivateKey)
		if !ok {
			return Key{}, fmt.Errorf("%w: private key is not ed25519", ErrInvalidKey)
		}
		return Ed25519(id, edPriv)
	}
	pub, err := jwt.ParseEdPublicKeyFromPEM(data)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return Key{}, fmt.Errorf("%w: public key is not ed25519", ErrInvalidKey)
	}
	return Ed25519Public(id, edPub)
}

// Generate returns a fresh Ed25519 signing key with a thumbprint id.
func Generate() (Key, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Key{}, fmt.Errorf("keys: generate: %w", err)
	}
	return Ed25519("", priv)
}

// Thumbprint derives a stable key id from the PKIX encoding of pub.
func Thumbprint(pub ed25519.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("%w: marshal public key: %v", ErrInvalidKey, err)
	}
	sum := sha256.Sum256(der)
	return base64.RawURLEncoding.EncodeToString(sum[:12]), nil
}
