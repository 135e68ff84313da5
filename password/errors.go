package password

import "errors"

// MaxLength bounds the plaintext fed to the KDF, in bytes. Minimum length and
// other policy rules belong to the caller.
const MaxLength = 1024

var (
	// ErrMalformedHash is returned when a stored hash cannot be parsed.
	// Callers must treat it as a failed verification.
	ErrMalformedHash = errors.New("password: malformed hash")
	// ErrUnsupportedHash is returned when no registered scheme recognizes a hash.
	ErrUnsupportedHash = errors.New("password: unsupported hash scheme")
	// ErrPolicy is returned by Hash when the plaintext is rejected by policy.
	ErrPolicy = errors.New("password: does not meet policy")
	// ErrInvalidConfig is returned for cost parameters below the supported floor.
	ErrInvalidConfig = errors.New("password: invalid config")
)

func checkPolicy(plaintext string) error {
	if plaintext == "" || len(plaintext) > MaxLength {
		return ErrPolicy
	}
	return nil
}
