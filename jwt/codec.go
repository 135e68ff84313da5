package jwt

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/keys"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformed covers bad encoding, unknown kid, wrong algorithm and bad
	// signatures.
	ErrMalformed = errors.New("jwt: malformed token")
	// ErrExpired is returned once now passes exp (plus leeway).
	ErrExpired = errors.New("jwt: token expired")
	// ErrInvalidClaims is returned for a correctly signed token whose claims
	// do not match the expected shape.
	ErrInvalidClaims = errors.New("jwt: invalid claims")
	ErrInvalidConfig = errors.New("jwt: invalid config")
)

const (
	maxLeeway           = 2 * time.Minute
	defaultMaxFutureIAT = 10 * time.Minute
)

// Config controls token lifetime and the expected issuer context.
type Config struct {
	AccessTTL    time.Duration
	Issuer       string
	Audience     string
	Leeway       time.Duration
	MaxFutureIAT time.Duration
}

// Codec signs with the newest key of its set and verifies with any of them.
// The set can be swapped at runtime with SetKeys.
type Codec struct {
	cfg  Config
	keys atomic.Pointer[keys.Set]
}

// New validates cfg and binds the initial key set.
func New(cfg Config, set *keys.Set) (*Codec, error) {
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access ttl must be > 0", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, fmt.Errorf("%w: leeway must be within [0, %s]", ErrInvalidConfig, maxLeeway)
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = defaultMaxFutureIAT
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, fmt.Errorf("%w: max future iat out of range", ErrInvalidConfig)
	}
	if set == nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, keys.ErrEmptySet)
	}

	c := &Codec{cfg: cfg}
	c.keys.Store(set)
	return c, nil
}

// SetKeys replaces the key set. In-flight verifications keep the set they
// started with.
func (c *Codec) SetKeys(set *keys.Set) {
	if set != nil {
		c.keys.Store(set)
	}
}

// Keys returns the current key set.
func (c *Codec) Keys() *keys.Set { return c.keys.Load() }

// AccessTTL returns the configured token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// Issue signs a token for subject/session at epoch. It returns the token and
// its expiry as encoded (second precision).
func (c *Codec) Issue(subject, sessionID string, epoch uint64, now time.Time) (string, time.Time, error) {
	if subject == "" || sessionID == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject and session id are required", ErrInvalidClaims)
	}

	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(c.cfg.AccessTTL))

	claims := Claims{
		Version:   ClaimsVersion,
		SessionID: sessionID,
		Epoch:     epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
	}
	if c.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{c.cfg.Audience}
	}

	signer := c.keys.Load().Signer()
	tok := jwt.NewWithClaims(signer.SigningMethod(), claims)
	tok.Header["kid"] = signer.ID

	s, err := tok.SignedString(signer.SignKey())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return s, exp.Time, nil
}

// Verify checks the token at instant now.
func (c *Codec) Verify(token string, now time.Time) (*Claims, error) {
	set := c.keys.Load()

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{string(keys.EdDSA), string(keys.HS256)}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		k, ok := set.Lookup(kid)
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		if t.Method.Alg() != string(k.Algorithm) {
			return nil, fmt.Errorf("algorithm %s does not match key %q", t.Method.Alg(), kid)
		}
		return k.VerifyKey(), nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if claims.ExpiresAt != nil && now.After(claims.ExpiresAt.Time.Add(c.cfg.Leeway)) {
		return nil, ErrExpired
	}

	if err := c.checkStructure(claims, now); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) checkStructure(claims *Claims, now time.Time) error {
	switch {
	case claims.Version != ClaimsVersion:
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidClaims, claims.Version)
	case claims.Subject == "":
		return fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	case claims.SessionID == "":
		return fmt.Errorf("%w: missing sid", ErrInvalidClaims)
	case claims.ExpiresAt == nil:
		return fmt.Errorf("%w: missing exp", ErrInvalidClaims)
	case claims.IssuedAt == nil:
		return fmt.Errorf("%w: missing iat", ErrInvalidClaims)
	case claims.IssuedAt.Time.After(now.Add(c.cfg.MaxFutureIAT)):
		return fmt.Errorf("%w: iat too far in the future", ErrInvalidClaims)
	case claims.ExpiresAt.Time.Before(claims.IssuedAt.Time):
		return fmt.Errorf("%w: exp before iat", ErrInvalidClaims)
	case c.cfg.Issuer != "" && claims.Issuer != c.cfg.Issuer:
		return fmt.Errorf("%w: unexpected issuer", ErrInvalidClaims)
	}

	if c.cfg.Audience != "" {
		found := false
		for _, aud := range claims.Audience {
			if aud == c.cfg.Audience {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unexpected audience", ErrInvalidClaims)
		}
	}
	return nil
}
