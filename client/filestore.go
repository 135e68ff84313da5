package client

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrStorageCorrupt is returned when the state file cannot be opened with
// the configured key.
var ErrStorageCorrupt = errors.New("client: stored session is corrupt or sealed with another key")

const fileStorageAD = "goSession client state v1"

// FileStorage seals state with XChaCha20-Poly1305 and writes it atomically
// with mode 0600. The file layout is nonce ‖ ciphertext.
type FileStorage struct {
	path string
	mu   sync.Mutex
	aead cipher.AEAD
}

// NewFileStorage returns a storage at path keyed by key, which must be
// chacha20poly1305.KeySize bytes.
func NewFileStorage(path string, key []byte) (*FileStorage, error) {
	if path == "" {
		return nil, errors.New("client: storage path required")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("client: storage key: %w", err)
	}
	return &FileStorage{path: path, aead: aead}, nil
}

func (s *FileStorage) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ns := s.aead.NonceSize()
	if len(raw) < ns {
		return nil, ErrStorageCorrupt
	}
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], []byte(fileStorageAD))
	if err != nil {
		return nil, ErrStorageCorrupt
	}

	var st State
	if err := json.Unmarshal(plain, &st); err != nil {
		return nil, ErrStorageCorrupt
	}
	return &st, nil
}

func (s *FileStorage) Save(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	plain, err := json.Marshal(st)
	if err != nil {
		return err
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+chacha20poly1305.Overhead)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	sealed := s.aead.Seal(nonce, nonce, plain, []byte(fileStorageAD))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".gosession-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStorage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
