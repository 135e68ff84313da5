package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/keys"
	gjwt "github.com/golang-jwt/jwt/v5"
)

var t0 = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newSigner(t *testing.T, id string) keys.Key {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	k, err := keys.Ed25519(id, priv)
	if err != nil {
		t.Fatalf("keys.Ed25519: %v", err)
	}
	return k
}

func newCodec(t *testing.T, cfg Config, ks ...keys.Key) *Codec {
	t.Helper()
	set, err := keys.NewSet(ks...)
	if err != nil {
		t.Fatalf("keys.NewSet: %v", err)
	}
	c, err := New(cfg, set)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newCodec(t, Config{AccessTTL: 15 * time.Minute, Issuer: "sessiond", Audience: "api"}, newSigner(t, "k1"))

	tok, exp, err := c.Issue("user-1", "sess-1", 3, t0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.Equal(t0.Add(15 * time.Minute)) {
		t.Fatalf("exp = %v", exp)
	}

	claims, err := c.Verify(tok, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.SessionID != "sess-1" || claims.Epoch != 3 || claims.Version != ClaimsVersion {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyExpiryUsesInjectedNow(t *testing.T) {
	c := newCodec(t, Config{AccessTTL: 15 * time.Minute}, newSigner(t, "k1"))
	tok, _, err := c.Issue("u", "s", 0, t0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := c.Verify(tok, t0.Add(15*time.Minute)); err != nil {
		t.Fatalf("expected token valid at exp boundary: %v", err)
	}
	if _, err := c.Verify(tok, t0.Add(15*time.Minute+time.Second)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyLeeway(t *testing.T) {
	c := newCodec(t, Config{AccessTTL: time.Minute, Leeway: 30 * time.Second}, newSigner(t, "k1"))
	tok, _, _ := c.Issue("u", "s", 0, t0)

	if _, err := c.Verify(tok, t0.Add(80*time.Second)); err != nil {
		t.Fatalf("expected leeway to accept: %v", err)
	}
	if _, err := c.Verify(tok, t0.Add(91*time.Second)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired past leeway, got %v", err)
	}
}

func TestVerifySignatureCheckedBeforeExpiry(t *testing.T) {
	c := newCodec(t, Config{AccessTTL: time.Minute}, newSigner(t, "k1"))
	tok, _, _ := c.Issue("u", "s", 0, t0)

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	// Expired and tampered: the signature failure wins.
	if _, err := c.Verify(tampered, t0.Add(time.Hour)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	c := newCodec(t, Config{AccessTTL: time.Minute}, newSigner(t, "k1"))
	for _, in := range []string{"", "abc", "a.b.c", "eyJhbGciOiJub25lIn0.e30."} {
		if _, err := c.Verify(in, t0); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Verify(%q) = %v, want ErrMalformed", in, err)
		}
	}
}

func TestVerifyRejectsAlgorithmKeyMismatch(t *testing.T) {
	hmacKey, err := keys.HMAC("k1", []byte(strings.Repeat("s", 32)))
	if err != nil {
		t.Fatalf("HMAC: %v", err)
	}
	ed := newSigner(t, "k2")
	c := newCodec(t, Config{AccessTTL: time.Minute}, ed, hmacKey)

	// HS256 token claiming the Ed25519 kid.
	claims := Claims{Version: 1, SessionID: "s", RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u",
		IssuedAt:  gjwt.NewNumericDate(t0),
		ExpiresAt: gjwt.NewNumericDate(t0.Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	tok.Header["kid"] = "k2"
	s, err := tok.SignedString([]byte(strings.Repeat("s", 32)))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := c.Verify(s, t0); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestKeyRotationGraceWindow(t *testing.T) {
	oldKey := newSigner(t, "2026-07")
	newKey := newSigner(t, "2026-10")

	c := newCodec(t, Config{AccessTTL: 15 * time.Minute}, oldKey)
	oldTok, _, err := c.Issue("u", "s", 0, t0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rotated, err := keys.NewSet(newKey, oldKey)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	c.SetKeys(rotated)

	if _, err := c.Verify(oldTok, t0.Add(time.Minute)); err != nil {
		t.Fatalf("expected token from retired key to verify in grace window: %v", err)
	}

	newTok, _, _ := c.Issue("u", "s", 1, t0)
	parsed, _, err := gjwt.NewParser().ParseUnverified(newTok, &Claims{})
	if err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if parsed.Header["kid"] != "2026-10" {
		t.Fatalf("expected newest key to sign, got kid %v", parsed.Header["kid"])
	}

	retired, _ := keys.NewSet(newKey)
	c.SetKeys(retired)
	if _, err := c.Verify(oldTok, t0.Add(time.Minute)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected unknown kid after retirement, got %v", err)
	}
}

func TestVerifyStructure(t *testing.T) {
	k := newSigner(t, "k1")
	c := newCodec(t, Config{AccessTTL: time.Minute, Issuer: "sessiond", Audience: "api"}, k)

	sign := func(claims Claims) string {
		tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
		tok.Header["kid"] = "k1"
		s, err := tok.SignedString(k.SignKey())
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	base := func() Claims {
		return Claims{Version: 1, SessionID: "s", RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u",
			Issuer:    "sessiond",
			Audience:  gjwt.ClaimStrings{"api"},
			IssuedAt:  gjwt.NewNumericDate(t0),
			ExpiresAt: gjwt.NewNumericDate(t0.Add(time.Minute)),
		}}
	}

	cases := map[string]func(*Claims){
		"version":  func(c *Claims) { c.Version = 2 },
		"subject":  func(c *Claims) { c.Subject = "" },
		"session":  func(c *Claims) { c.SessionID = "" },
		"exp":      func(c *Claims) { c.ExpiresAt = nil },
		"iat":      func(c *Claims) { c.IssuedAt = nil },
		"future":   func(c *Claims) { c.IssuedAt = gjwt.NewNumericDate(t0.Add(time.Hour)); c.ExpiresAt = gjwt.NewNumericDate(t0.Add(2 * time.Hour)) },
		"issuer":   func(c *Claims) { c.Issuer = "other" },
		"audience": func(c *Claims) { c.Audience = gjwt.ClaimStrings{"other"} },
	}
	for name, mutate := range cases {
		claims := base()
		mutate(&claims)
		if _, err := c.Verify(sign(claims), t0); !errors.Is(err, ErrInvalidClaims) {
			t.Fatalf("%s: expected ErrInvalidClaims, got %v", name, err)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	set, _ := keys.NewSet(newSigner(t, "k1"))
	if _, err := New(Config{}, set); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero ttl, got %v", err)
	}
	if _, err := New(Config{AccessTTL: time.Minute, Leeway: time.Hour}, set); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for leeway, got %v", err)
	}
	if _, err := New(Config{AccessTTL: time.Minute}, nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil keys, got %v", err)
	}
}
