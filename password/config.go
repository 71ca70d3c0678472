package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names the digest family produced by [Hasher.Hash].
type Algorithm string

const (
	// AlgorithmArgon2id produces $argon2id$ PHC strings. It is the default.
	AlgorithmArgon2id Algorithm = "argon2id"
	// AlgorithmBcrypt produces $2a$ modular-crypt strings.
	AlgorithmBcrypt Algorithm = "bcrypt"
)

var (
	// ErrPasswordTooShort is returned by Hash when the plaintext is below MinPasswordBytes.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrPasswordTooLong is returned by Hash when the plaintext exceeds MaxPasswordBytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrUnsupportedDigest is returned when a stored digest names an unknown algorithm.
	ErrUnsupportedDigest = errors.New("unsupported password digest")
)

const (
	defaultMinPasswordBytes = 6
	defaultMaxPasswordBytes = 1024

	// bcrypt ignores input past 72 bytes; longer passwords are refused.
	bcryptMaxPasswordBytes = 72
)

// Config holds hashing parameters. Zero length bounds fall back to package
// defaults; zero cost parameters are rejected by the constructors.
type Config struct {
	Algorithm Algorithm

	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	BcryptCost int

	MinPasswordBytes int
	MaxPasswordBytes int
}

// DefaultConfig returns Argon2id parameters suitable for interactive logins.
func DefaultConfig() Config {
	return Config{
		Algorithm:        AlgorithmArgon2id,
		Memory:           64 * 1024,
		Time:             3,
		Parallelism:      2,
		SaltLength:       16,
		KeyLength:        32,
		BcryptCost:       12,
		MinPasswordBytes: defaultMinPasswordBytes,
		MaxPasswordBytes: defaultMaxPasswordBytes,
	}
}

func (c Config) withDefaults() Config {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmArgon2id
	}
	if c.MinPasswordBytes <= 0 {
		c.MinPasswordBytes = defaultMinPasswordBytes
	}
	if c.MaxPasswordBytes <= 0 {
		c.MaxPasswordBytes = defaultMaxPasswordBytes
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.Algorithm == AlgorithmBcrypt && c.MaxPasswordBytes > bcryptMaxPasswordBytes {
		c.MaxPasswordBytes = bcryptMaxPasswordBytes
	}
	return c
}

func (c Config) validate() error {
	switch c.Algorithm {
	case AlgorithmArgon2id:
		switch {
		case c.Memory < 8*1024:
			return errors.New("password memory must be >= 8192 KB")
		case c.Time < 1:
			return errors.New("password time must be >= 1")
		case c.Parallelism < 1:
			return errors.New("password parallelism must be >= 1")
		case c.SaltLength < 16:
			return errors.New("password salt length must be >= 16")
		case c.KeyLength < 16:
			return errors.New("password key length must be >= 16")
		}
	case AlgorithmBcrypt:
		if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
			return errors.New("password bcrypt cost out of range")
		}
	default:
		return ErrUnsupportedDigest
	}
	if c.MinPasswordBytes > c.MaxPasswordBytes {
		return errors.New("password min length exceeds max length")
	}
	return nil
}

func (c Config) checkLength(password string) error {
	if len(password) < c.MinPasswordBytes {
		return fmt.Errorf("%w: must be at least %d bytes", ErrPasswordTooShort, c.MinPasswordBytes)
	}
	if len(password) > c.MaxPasswordBytes {
		return fmt.Errorf("%w: must be at most %d bytes", ErrPasswordTooLong, c.MaxPasswordBytes)
	}
	return nil
}
