package keys

import "fmt"

// Set is an ordered, read-only key list. Index 0 is the active signer.
type Set struct {
	keys []Key
	byID map[string]Key
}

// NewSet validates ordering and uniqueness. The first key must carry private
// material.
func NewSet(keys ...Key) (*Set, error) {
	if len(keys) == 0 {
		return nil, ErrEmptySet
	}
	if !keys[0].CanSign() {
		return nil, fmt.Errorf("%w: %q", ErrCannotSign, keys[0].ID)
	}

	s := &Set{
		keys: append([]Key(nil), keys...),
		byID: make(map[string]Key, len(keys)),
	}
	for _, k := range keys {
		if k.ID == "" {
			return nil, fmt.Errorf("%w: key without id", ErrInvalidKey)
		}
		if _, dup := s.byID[k.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKID, k.ID)
		}
		s.byID[k.ID] = k
	}
	return s, nil
}

// Signer returns the newest key.
func (s *Set) Signer() Key { return s.keys[0] }

// Lookup finds a verification key by kid.
func (s *Set) Lookup(kid string) (Key, bool) {
	k, ok := s.byID[kid]
	return k, ok
}

// IDs lists key ids newest first.
func (s *Set) IDs() []string {
	out := make([]string, len(s.keys))
	for i, k := range s.keys {
		out[i] = k.ID
	}
	return out
}

// Len returns the number of keys.
func (s *Set) Len() int { return len(s.keys) }
