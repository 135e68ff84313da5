package password

// Hasher is the credential hashing contract used by the engine.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hashed string) (bool, error)
	NeedsUpgrade(hashed string) (bool, error)
}

// Scheme is a Hasher that can recognize its own encoding.
type Scheme interface {
	Hasher
	Handles(hashed string) bool
}

// Multi hashes with a primary scheme and verifies with whichever registered
// scheme recognizes the stored encoding.
type Multi struct {
	primary Scheme
	legacy  []Scheme
}

// NewMulti builds a dispatcher. primary is also consulted for verification.
func NewMulti(primary Scheme, legacy ...Scheme) *Multi {
	return &Multi{primary: primary, legacy: legacy}
}

func (m *Multi) Hash(plaintext string) (string, error) {
	return m.primary.Hash(plaintext)
}

func (m *Multi) Verify(plaintext, hashed string) (bool, error) {
	s, err := m.schemeFor(hashed)
	if err != nil {
		return false, err
	}
	return s.Verify(plaintext, hashed)
}

// NeedsUpgrade is true for any hash not produced by the primary scheme.
func (m *Multi) NeedsUpgrade(hashed string) (bool, error) {
	s, err := m.schemeFor(hashed)
	if err != nil {
		return false, err
	}
	if s != m.primary {
		return true, nil
	}
	return s.NeedsUpgrade(hashed)
}

func (m *Multi) schemeFor(hashed string) (Scheme, error) {
	if m.primary.Handles(hashed) {
		return m.primary, nil
	}
	for _, s := range m.legacy {
		if s.Handles(hashed) {
			return s, nil
		}
	}
	return nil, ErrUnsupportedHash
}
