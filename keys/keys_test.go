package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

func writePEM(t *testing.T, dir, name, blockType string, der []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func privatePEM(t *testing.T, priv ed25519.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private: %v", err)
	}
	return der
}

func publicPEM(t *testing.T, pub ed25519.PublicKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public: %v", err)
	}
	return der
}

func TestNewSetOrderingAndLookup(t *testing.T) {
	current, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	old, err := HMAC("old", make([]byte, 32))
	if err != nil {
		t.Fatalf("HMAC: %v", err)
	}

	set, err := NewSet(current, old)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if set.Signer().ID != current.ID {
		t.Fatalf("expected newest key to sign, got %q", set.Signer().ID)
	}
	if _, ok := set.Lookup("old"); !ok {
		t.Fatal("expected retired key to remain verifiable")
	}
	if ids := set.IDs(); len(ids) != 2 || ids[1] != "old" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestNewSetRejectsBadInput(t *testing.T) {
	if _, err := NewSet(); !errors.Is(err, ErrEmptySet) {
		t.Fatalf("expected ErrEmptySet, got %v", err)
	}

	pub, _, _ := ed25519.GenerateKey(rand.Reader)
	verifyOnly, err := Ed25519Public("v", pub)
	if err != nil {
		t.Fatalf("Ed25519Public: %v", err)
	}
	if _, err := NewSet(verifyOnly); !errors.Is(err, ErrCannotSign) {
		t.Fatalf("expected ErrCannotSign, got %v", err)
	}

	a, _ := HMAC("dup", make([]byte, 32))
	b, _ := HMAC("dup", make([]byte, 40))
	if _, err := NewSet(a, b); !errors.Is(err, ErrDuplicateKID) {
		t.Fatalf("expected ErrDuplicateKID, got %v", err)
	}

	if _, err := HMAC("short", make([]byte, 8)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey for short secret, got %v", err)
	}
}

func TestThumbprintIsStable(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	k, err := Ed25519("", priv)
	if err != nil {
		t.Fatalf("Ed25519: %v", err)
	}
	want, err := Thumbprint(pub)
	if err != nil {
		t.Fatalf("Thumbprint: %v", err)
	}
	if k.ID != want {
		t.Fatalf("kid = %q, want %q", k.ID, want)
	}
}

func TestFilesSourceLoadsInOrder(t *testing.T) {
	dir := t.TempDir()
	_, newPriv, _ := ed25519.GenerateKey(rand.Reader)
	oldPub, _, _ := ed25519.GenerateKey(rand.Reader)

	src := Files{Paths: []string{
		writePEM(t, dir, "2026-10.pem", "PRIVATE KEY", privatePEM(t, newPriv)),
		writePEM(t, dir, "2026-07.pem", "PUBLIC KEY", publicPEM(t, oldPub)),
	}}

	set, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Signer().ID != "2026-10" || !set.Signer().CanSign() {
		t.Fatalf("unexpected signer %+v", set.Signer().ID)
	}
	old, ok := set.Lookup("2026-07")
	if !ok || old.CanSign() {
		t.Fatal("expected verify-only retired key")
	}
}

func TestFilesSourceMissingFile(t *testing.T) {
	_, err := Files{Paths: []string{filepath.Join(t.TempDir(), "absent.pem")}}.Load(context.Background())
	if err == nil {
		t.Fatal("expected missing file error")
	}
}

type fakeSecrets struct {
	value string
	err   error
	stage string
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if in.VersionStage != nil {
		f.stage = *in.VersionStage
	}
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: &f.value}, nil
}

func TestSecretsManagerSource(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(rand.Reader)
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}

	doc := map[string]any{"keys": []map[string]string{
		{"kid": "k2", "alg": "EdDSA", "pem": string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privatePEM(t, priv)}))},
		{"kid": "k1", "alg": "HS256", "secret": base64.StdEncoding.EncodeToString(secret)},
	}}
	raw, _ := json.Marshal(doc)

	fake := &fakeSecrets{value: string(raw)}
	set, err := (&SecretsManager{Client: fake, SecretID: "session/keys"}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if fake.stage != "AWSCURRENT" {
		t.Fatalf("expected AWSCURRENT stage, got %q", fake.stage)
	}
	if set.Signer().ID != "k2" || set.Signer().Algorithm != EdDSA {
		t.Fatalf("unexpected signer %q", set.Signer().ID)
	}
	if k, ok := set.Lookup("k1"); !ok || k.Algorithm != HS256 {
		t.Fatal("expected hmac verify key")
	}
}

func TestSecretsManagerSourceErrors(t *testing.T) {
	boom := errors.New("access denied")
	if _, err := (&SecretsManager{Client: &fakeSecrets{err: boom}, SecretID: "x"}).Load(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if _, err := (&SecretsManager{Client: &fakeSecrets{value: "not json"}, SecretID: "x"}).Load(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := (&SecretsManager{Client: &fakeSecrets{value: `{"keys":[]}`}, SecretID: "x"}).Load(context.Background()); !errors.Is(err, ErrEmptySet) {
		t.Fatalf("expected ErrEmptySet, got %v", err)
	}
}
