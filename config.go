package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/pymesuite/authcore/challenge"
	"github.com/pymesuite/authcore/password"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Password     PasswordConfig
	TOTP         TOTPConfig
	Session      SessionConfig
	SecondFactor SecondFactorConfig
	Bootstrap    BootstrapConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Algorithm      string // "argon2id" (default) or "bcrypt"
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	BcryptCost     int
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig defines a public type used by authcore APIs.
//
// Codes are always 6 digits over HMAC-SHA1.
type TOTPConfig struct {
	Issuer string
	Period uint // seconds
	Skew   uint // steps accepted on each side of the current one
	QRSize int  // PNG edge in pixels
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
SECOND FACTOR CONFIG
====================================
*/

// SecondFactorConfig controls the pending step between a verified password
// and an issued session.
//
// ExemptUsernames skip the second factor entirely. Every bypass is audited.
type SecondFactorConfig struct {
	ExemptUsernames []string
	PendingTTL      time.Duration
	MaxAttempts     int
	SigningMethod   string // "hs256" (default) or "ed25519"
	PrivateKey      []byte
	PublicKey       []byte
	Issuer          string
}

/*
====================================
BOOTSTRAP CONFIG
====================================
*/

// BootstrapConfig describes the account created by Engine.Bootstrap.
//
// PasswordHash, when set, is stored as-is instead of hashing Password.
type BootstrapConfig struct {
	Username     string
	Email        string
	Password     string
	PasswordHash string
}

// DefaultBootstrapPassword is an exported constant or variable used by the authentication engine.
const DefaultBootstrapPassword = "admin123"

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	Synchronous bool
}

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: argon2id hashing, 24h
// sessions, a 5 minute pending second-factor window and an exempt "admin"
// bootstrap account.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		Password: PasswordConfig{
			Algorithm:      string(password.AlgorithmArgon2id),
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			BcryptCost:     pw.BcryptCost,
			MinLength:      pw.MinPasswordBytes,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer: "Sistema PYME",
			Period: 30,
			Skew:   1,
			QRSize: 200,
		},
		Session: SessionConfig{
			TTL:         24 * time.Hour,
			RedisPrefix: "as",
		},
		SecondFactor: SecondFactorConfig{
			ExemptUsernames: []string{"admin"},
			PendingTTL:      5 * time.Minute,
			MaxAttempts:     5,
			SigningMethod:   string(challenge.MethodHS256),
			Issuer:          "authcore",
		},
		Bootstrap: BootstrapConfig{
			Username: "admin",
			Email:    "admin@sistema.pyme",
			Password: DefaultBootstrapPassword,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.SecondFactor.ExemptUsernames = append([]string(nil), cfg.SecondFactor.ExemptUsernames...)
	out.SecondFactor.PrivateKey = cloneBytes(cfg.SecondFactor.PrivateKey)
	out.SecondFactor.PublicKey = cloneBytes(cfg.SecondFactor.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c PasswordConfig) hasherConfig() password.Config {
	return password.Config{
		Algorithm:        password.Algorithm(c.Algorithm),
		Memory:           c.Memory,
		Time:             c.Time,
		Parallelism:      c.Parallelism,
		SaltLength:       c.SaltLength,
		KeyLength:        c.KeyLength,
		BcryptCost:       c.BcryptCost,
		MinPasswordBytes: c.MinLength,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// Password
	switch password.Algorithm(c.Password.Algorithm) {
	case password.AlgorithmArgon2id, password.AlgorithmBcrypt:
	default:
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return errors.New("Password BcryptCost must be in [4,31]")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must not be empty")
	}
	if strings.Contains(c.TOTP.Issuer, ":") {
		return errors.New("TOTP Issuer must not contain ':'")
	}
	if c.TOTP.Period < 15 || c.TOTP.Period > 120 {
		return errors.New("TOTP Period must be in [15,120] seconds")
	}
	if c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be <= 3")
	}
	if c.TOTP.QRSize < 64 || c.TOTP.QRSize > 1024 {
		return errors.New("TOTP QRSize must be in [64,1024]")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " :") {
		return errors.New("Session RedisPrefix must not contain spaces or ':'")
	}

	// Second factor
	if c.SecondFactor.PendingTTL <= 0 {
		return errors.New("SecondFactor PendingTTL must be > 0")
	}
	if c.SecondFactor.PendingTTL > time.Hour {
		return errors.New("SecondFactor PendingTTL must be <= 1h")
	}
	if c.SecondFactor.MaxAttempts < 0 {
		return errors.New("SecondFactor MaxAttempts must be >= 0")
	}
	switch challenge.SigningMethod(c.SecondFactor.SigningMethod) {
	case challenge.MethodHS256, challenge.MethodEd25519:
	default:
		return errors.New("SecondFactor SigningMethod must be 'hs256' or 'ed25519'")
	}
	for _, name := range c.SecondFactor.ExemptUsernames {
		if strings.TrimSpace(name) == "" {
			return errors.New("SecondFactor ExemptUsernames must not contain empty names")
		}
	}

	// Bootstrap
	if strings.TrimSpace(c.Bootstrap.Username) == "" {
		return errors.New("Bootstrap Username must not be empty")
	}
	if !strings.Contains(c.Bootstrap.Email, "@") {
		return errors.New("Bootstrap Email must be an address")
	}
	if c.Bootstrap.Password == "" && c.Bootstrap.PasswordHash == "" {
		return errors.New("Bootstrap requires Password or PasswordHash")
	}

	// Audit
	if c.Audit.Enabled && !c.Audit.Synchronous && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when asynchronous")
	}

	return nil
}

// isExempt reports whether username skips the second factor.
func (c *Config) isExempt(username string) bool {
	for _, name := range c.SecondFactor.ExemptUsernames {
		if name == username {
			return true
		}
	}
	return false
}
