package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hasher produces digests with the configured algorithm and verifies digests
// of either family, picked from the digest itself.
//
// Hasher is safe for concurrent use.
type Hasher struct {
	config Config

	dummyOnce   sync.Once
	dummyDigest string
}

// New validates cfg and builds a Hasher. Only the parameters of the
// configured algorithm are checked; stored digests carry their own.
func New(cfg Config) (*Hasher, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Hasher{config: cfg}, nil
}

// Algorithm returns the family used for new digests.
func (h *Hasher) Algorithm() Algorithm {
	return h.config.Algorithm
}

// Hash returns a self-describing digest of password. Plaintext outside the
// configured byte bounds yields [ErrPasswordTooShort] or [ErrPasswordTooLong].
func (h *Hasher) Hash(password string) (string, error) {
	if err := h.config.checkLength(password); err != nil {
		return "", err
	}

	if h.config.Algorithm == AlgorithmBcrypt {
		out, err := bcrypt.GenerateFromPassword([]byte(password), h.config.BcryptCost)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	salt := make([]byte, h.config.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	d := Digest{
		Algorithm: AlgorithmArgon2id,
		Memory:    h.config.Memory,
		Time:      h.config.Time,
		Threads:   h.config.Parallelism,
		Salt:      salt,
	}
	d.Key = d.derive(password, h.config.KeyLength)
	return d.String(), nil
}

// Verify checks password against encoded. A mismatch is (false, nil);
// an undecodable digest is an error, which callers treat as a mismatch.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	d, err := ParseDigest(encoded)
	if err != nil {
		return false, err
	}
	if len(password) > h.config.MaxPasswordBytes {
		return false, nil
	}

	if d.Algorithm == AlgorithmBcrypt {
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
			return false, nil
		default:
			return false, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
		}
	}
	return subtle.ConstantTimeCompare(d.derive(password, uint32(len(d.Key))), d.Key) == 1, nil
}

// NeedsUpgrade reports whether encoded belongs to another family or was
// made with weaker parameters than the configured ones.
func (h *Hasher) NeedsUpgrade(encoded string) (bool, error) {
	d, err := ParseDigest(encoded)
	if err != nil {
		return false, err
	}
	return d.weakerThan(h.config), nil
}

// VerifyDummy spends the work of a real verification against a digest that
// never matches. Call it when no account exists.
func (h *Hasher) VerifyDummy(password string) {
	h.dummyOnce.Do(func() {
		digest, err := h.Hash("dummy-password-for-timing")
		if err == nil {
			h.dummyDigest = digest
		}
	})
	if h.dummyDigest == "" {
		return
	}
	_, _ = h.Verify(password, h.dummyDigest)
}

// derive runs argon2id with the parameters and salt recorded in d.
func (d Digest) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), d.Salt, d.Time, d.Memory, d.Threads, keyLen)
}
