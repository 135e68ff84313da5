package password

import (
	"errors"
	"testing"
)

func TestMultiVerifiesLegacyBcryptAndFlagsUpgrade(t *testing.T) {
	argon := newTestArgon2(t, fastConfig())
	legacy, err := NewBcrypt(4)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	old, err := legacy.Hash("legacy-password")
	if err != nil {
		t.Fatalf("bcrypt Hash error: %v", err)
	}

	m := NewMulti(argon, legacy)

	ok, err := m.Verify("legacy-password", old)
	if err != nil || !ok {
		t.Fatalf("expected legacy verify to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = m.Verify("not-the-password", old)
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch, ok=%v err=%v", ok, err)
	}

	up, err := m.NeedsUpgrade(old)
	if err != nil || !up {
		t.Fatalf("expected bcrypt hash to need upgrade, up=%v err=%v", up, err)
	}

	fresh, err := m.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Multi Hash error: %v", err)
	}
	if !argon.Handles(fresh) {
		t.Fatalf("expected new hashes from the primary scheme, got %q", fresh)
	}
	up, err = m.NeedsUpgrade(fresh)
	if err != nil || up {
		t.Fatalf("expected primary hash to be current, up=%v err=%v", up, err)
	}
}

func TestMultiUnknownScheme(t *testing.T) {
	m := NewMulti(newTestArgon2(t, fastConfig()))
	if _, err := m.Verify("whatever-123", "$md5$abc"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}

func TestBcryptRejectsBadCost(t *testing.T) {
	if _, err := NewBcrypt(99); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
