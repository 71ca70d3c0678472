package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pymesuite/authcore"
)

// duration decodes "24h"-style strings.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// fileConfig is the on-disk TOML layout. Zero values keep the defaults of
// authcore.DefaultConfig.
type fileConfig struct {
	DSN string `toml:"dsn"`

	Redis struct {
		Addr     string `toml:"addr"` // "memory" runs an in-process server
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Log struct {
		Level string `toml:"level"`
		Dev   bool   `toml:"dev"`
	} `toml:"log"`

	Password struct {
		Algorithm   string `toml:"algorithm"`
		MemoryKiB   uint32 `toml:"memory_kib"`
		Time        uint32 `toml:"time"`
		Parallelism uint8  `toml:"parallelism"`
		BcryptCost  int    `toml:"bcrypt_cost"`
		MinLength   int    `toml:"min_length"`
	} `toml:"password"`

	TOTP struct {
		Issuer string `toml:"issuer"`
		Period uint   `toml:"period"`
		Skew   *uint  `toml:"skew"`
		QRSize int    `toml:"qr_size"`
	} `toml:"totp"`

	Session struct {
		TTL         duration `toml:"ttl"`
		Backend     string   `toml:"backend"` // "sql" (default) or "redis"
		RedisPrefix string   `toml:"redis_prefix"`
	} `toml:"session"`

	SecondFactor struct {
		Exempt        *[]string `toml:"exempt"`
		PendingTTL    duration  `toml:"pending_ttl"`
		MaxAttempts   *int      `toml:"max_attempts"`
		SigningMethod string    `toml:"signing_method"`
		SigningKey    string    `toml:"signing_key"` // base64
		VerifyKey     string    `toml:"verify_key"`  // base64, ed25519 only
	} `toml:"second_factor"`

	Bootstrap struct {
		Username     string `toml:"username"`
		Email        string `toml:"email"`
		Password     string `toml:"password"`
		PasswordHash string `toml:"password_hash"`
	} `toml:"bootstrap"`

	Audit struct {
		Enabled *bool  `toml:"enabled"`
		File    string `toml:"file"` // JSON lines; empty logs through zap only
	} `toml:"audit"`
}

func defaultFileConfig() fileConfig {
	var fc fileConfig
	fc.DSN = "sqlite:sistema_pyme.db"
	fc.Log.Level = "info"
	fc.Session.Backend = "sql"
	return fc
}

// loadFileConfig reads path when it exists and applies environment
// overrides on top.
func loadFileConfig(path string) (fileConfig, error) {
	fc := defaultFileConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			md, err := toml.DecodeFile(path, &fc)
			if err != nil {
				return fc, fmt.Errorf("parse %s: %w", path, err)
			}
			if undecoded := md.Undecoded(); len(undecoded) > 0 {
				return fc, fmt.Errorf("parse %s: unknown keys %v", path, undecoded)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return fc, err
		}
	}

	applyEnv(&fc)
	return fc, nil
}

func applyEnv(fc *fileConfig) {
	if v := os.Getenv("AUTHCORE_DSN"); v != "" {
		fc.DSN = v
	}
	if v := os.Getenv("AUTHCORE_REDIS_ADDR"); v != "" {
		fc.Redis.Addr = v
	}
	if v := os.Getenv("AUTHCORE_REDIS_PASSWORD"); v != "" {
		fc.Redis.Password = v
	}
	if v := os.Getenv("AUTHCORE_SESSION_BACKEND"); v != "" {
		fc.Session.Backend = v
	}
	if v := os.Getenv("AUTHCORE_BOOTSTRAP_PASSWORD"); v != "" {
		fc.Bootstrap.Password = v
	}
	if v := os.Getenv("AUTHCORE_BOOTSTRAP_PASSWORD_HASH"); v != "" {
		fc.Bootstrap.PasswordHash = v
	}
	if v := os.Getenv("AUTHCORE_PENDING_KEY"); v != "" {
		fc.SecondFactor.SigningKey = v
	}
	if v := os.Getenv("AUTHCORE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			fc.SecondFactor.MaxAttempts = &n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		fc.Log.Level = v
	}
	if os.Getenv("LOG_DEV") == "1" {
		fc.Log.Dev = true
	}
}

// engineConfig maps the file layout onto authcore.Config.
func (fc fileConfig) engineConfig() (authcore.Config, error) {
	cfg := authcore.DefaultConfig()

	p := fc.Password
	if p.Algorithm != "" {
		cfg.Password.Algorithm = p.Algorithm
	}
	if p.MemoryKiB != 0 {
		cfg.Password.Memory = p.MemoryKiB
	}
	if p.Time != 0 {
		cfg.Password.Time = p.Time
	}
	if p.Parallelism != 0 {
		cfg.Password.Parallelism = p.Parallelism
	}
	if p.BcryptCost != 0 {
		cfg.Password.BcryptCost = p.BcryptCost
	}
	if p.MinLength != 0 {
		cfg.Password.MinLength = p.MinLength
	}

	if fc.TOTP.Issuer != "" {
		cfg.TOTP.Issuer = fc.TOTP.Issuer
	}
	if fc.TOTP.Period != 0 {
		cfg.TOTP.Period = fc.TOTP.Period
	}
	if fc.TOTP.Skew != nil {
		cfg.TOTP.Skew = *fc.TOTP.Skew
	}
	if fc.TOTP.QRSize != 0 {
		cfg.TOTP.QRSize = fc.TOTP.QRSize
	}

	if fc.Session.TTL.Duration != 0 {
		cfg.Session.TTL = fc.Session.TTL.Duration
	}
	if fc.Session.RedisPrefix != "" {
		cfg.Session.RedisPrefix = fc.Session.RedisPrefix
	}

	sf := fc.SecondFactor
	if sf.Exempt != nil {
		cfg.SecondFactor.ExemptUsernames = *sf.Exempt
	}
	if sf.PendingTTL.Duration != 0 {
		cfg.SecondFactor.PendingTTL = sf.PendingTTL.Duration
	}
	if sf.MaxAttempts != nil {
		cfg.SecondFactor.MaxAttempts = *sf.MaxAttempts
	}
	if sf.SigningMethod != "" {
		cfg.SecondFactor.SigningMethod = strings.ToLower(sf.SigningMethod)
	}
	if sf.SigningKey != "" {
		key, err := base64.StdEncoding.DecodeString(sf.SigningKey)
		if err != nil {
			return cfg, fmt.Errorf("second_factor.signing_key: %w", err)
		}
		cfg.SecondFactor.PrivateKey = key
	}
	if sf.VerifyKey != "" {
		key, err := base64.StdEncoding.DecodeString(sf.VerifyKey)
		if err != nil {
			return cfg, fmt.Errorf("second_factor.verify_key: %w", err)
		}
		cfg.SecondFactor.PublicKey = key
	}

	b := fc.Bootstrap
	if b.Username != "" {
		cfg.Bootstrap.Username = b.Username
	}
	if b.Email != "" {
		cfg.Bootstrap.Email = b.Email
	}
	if b.Password != "" {
		cfg.Bootstrap.Password = b.Password
	}
	if b.PasswordHash != "" {
		cfg.Bootstrap.PasswordHash = b.PasswordHash
	}

	if fc.Audit.Enabled != nil {
		cfg.Audit.Enabled = *fc.Audit.Enabled
	}
	// A CLI process exits right after the command; deliver events inline.
	cfg.Audit.Synchronous = true

	switch fc.Session.Backend {
	case "sql", "redis":
	default:
		return cfg, fmt.Errorf("session.backend must be 'sql' or 'redis', got %q", fc.Session.Backend)
	}
	if fc.Session.Backend == "redis" && fc.Redis.Addr == "" {
		return cfg, errors.New("session.backend 'redis' requires redis.addr")
	}

	return cfg, cfg.Validate()
}
