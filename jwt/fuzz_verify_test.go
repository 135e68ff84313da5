package jwt

import (
	"testing"
	"time"

	"github.com/MrEthical07/goSession/keys"
)

// FuzzVerify feeds arbitrary strings to Verify. It must never panic and must
// never accept input other than the seeded valid token.
func FuzzVerify(f *testing.F) {
	k, err := keys.Generate()
	if err != nil {
		f.Fatal(err)
	}
	set, err := keys.NewSet(k)
	if err != nil {
		f.Fatal(err)
	}
	c, err := New(Config{AccessTTL: 5 * time.Minute, Issuer: "fuzz"}, set)
	if err != nil {
		f.Fatal(err)
	}

	valid, _, err := c.Issue("uid1", "sid1", 7, t0)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.eyJ2IjoxfQ.")
	f.Add(valid[:len(valid)-2])

	f.Fuzz(func(t *testing.T, token string) {
		claims, err := c.Verify(token, t0)
		if err == nil && token != valid && claims.SessionID != "sid1" {
			t.Fatalf("unexpected acceptance of %q", token)
		}
	})
}
