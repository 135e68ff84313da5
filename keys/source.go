package keys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source loads a key set. Implementations must be safe to call again to pick
// up rotated material.
type Source interface {
	Load(ctx context.Context) (*Set, error)
}

// Static wraps an already-built set.
type Static struct {
	Set *Set
}

func (s Static) Load(context.Context) (*Set, error) {
	if s.Set == nil {
		return nil, ErrEmptySet
	}
	return s.Set, nil
}

// Files loads PEM keys from disk in the given order. The key id is the file
// name without extension, so "2026-10.pem" becomes kid "2026-10".
type Files struct {
	Paths []string
}

func (f Files) Load(ctx context.Context) (*Set, error) {
	ks := make([]Key, 0, len(f.Paths))
	for _, p := range f.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("keys: read %s: %w", p, err)
		}
		id := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		k, err := ParsePEM(id, data)
		if err != nil {
			return nil, fmt.Errorf("keys: %s: %w", p, err)
		}
		ks = append(ks, k)
	}
	return NewSet(ks...)
}
