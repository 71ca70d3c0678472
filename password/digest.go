package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedDigest is returned for digests that name a known family but
// cannot be decoded.
var ErrMalformedDigest = errors.New("malformed password digest")

const (
	minDigestSalt = 8
	minDigestKey  = 16
	// Upper bound on argon2 memory accepted from a stored digest (4 GiB).
	maxDigestMemory = 4 * 1024 * 1024
)

var phcEncoding = base64.RawStdEncoding

// Digest is a decoded password digest. Argon2id digests fill Memory, Time,
// Threads, Salt and Key; bcrypt digests fill Cost and keep the encoded form.
type Digest struct {
	Algorithm Algorithm

	Memory  uint32
	Time    uint32
	Threads uint8
	Salt    []byte
	Key     []byte

	Cost int

	encoded string
}

// ParseDigest decodes any digest this package can verify.
func ParseDigest(encoded string) (Digest, error) {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		return parseArgon2id(encoded)
	case strings.HasPrefix(encoded, "$2a$"),
		strings.HasPrefix(encoded, "$2b$"),
		strings.HasPrefix(encoded, "$2y$"):
		cost, err := bcrypt.Cost([]byte(encoded))
		if err != nil {
			return Digest{}, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
		}
		return Digest{Algorithm: AlgorithmBcrypt, Cost: cost, encoded: encoded}, nil
	default:
		return Digest{}, ErrUnsupportedDigest
	}
}

// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
func parseArgon2id(encoded string) (Digest, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 {
		return Digest{}, fmt.Errorf("%w: want 6 fields, got %d", ErrMalformedDigest, len(fields))
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Digest{}, fmt.Errorf("%w: version %q", ErrMalformedDigest, fields[2])
	}

	d := Digest{Algorithm: AlgorithmArgon2id}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &d.Memory, &d.Time, &d.Threads); err != nil ||
		fields[3] != d.params() {
		return Digest{}, fmt.Errorf("%w: parameters %q", ErrMalformedDigest, fields[3])
	}
	if d.Time < 1 || d.Threads < 1 || d.Memory < 8*uint32(d.Threads) || d.Memory > maxDigestMemory {
		return Digest{}, fmt.Errorf("%w: parameters out of range", ErrMalformedDigest)
	}

	var err error
	if d.Salt, err = decodePHC(fields[4]); err != nil || len(d.Salt) < minDigestSalt {
		return Digest{}, fmt.Errorf("%w: salt", ErrMalformedDigest)
	}
	if d.Key, err = decodePHC(fields[5]); err != nil || len(d.Key) < minDigestKey {
		return Digest{}, fmt.Errorf("%w: key", ErrMalformedDigest)
	}
	return d, nil
}

// decodePHC accepts the unpadded PHC alphabet and tolerates padding.
func decodePHC(s string) ([]byte, error) {
	return phcEncoding.DecodeString(strings.TrimRight(s, "="))
}

func (d Digest) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", d.Memory, d.Time, d.Threads)
}

// String encodes d in its family's canonical form.
func (d Digest) String() string {
	if d.Algorithm == AlgorithmBcrypt {
		return d.encoded
	}
	return fmt.Sprintf("$argon2id$v=%d$%s$%s$%s",
		argon2.Version, d.params(), phcEncoding.EncodeToString(d.Salt), phcEncoding.EncodeToString(d.Key))
}

// weakerThan reports whether d should be replaced by a digest made with cfg.
func (d Digest) weakerThan(cfg Config) bool {
	if d.Algorithm != cfg.Algorithm {
		return true
	}
	if d.Algorithm == AlgorithmBcrypt {
		return d.Cost < cfg.BcryptCost
	}
	return d.Memory < cfg.Memory ||
		d.Time < cfg.Time ||
		d.Threads < cfg.Parallelism ||
		uint32(len(d.Key)) < cfg.KeyLength
}
