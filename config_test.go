package authcore

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("expected 24h sessions, got %v", cfg.Session.TTL)
	}
	if !cfg.isExempt("admin") || cfg.isExempt("alice") {
		t.Fatal("only admin should be exempt by default")
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown algorithm", func(c *Config) { c.Password.Algorithm = "md5" }},
		{"low memory", func(c *Config) { c.Password.Memory = 1024 }},
		{"zero time", func(c *Config) { c.Password.Time = 0 }},
		{"zero parallelism", func(c *Config) { c.Password.Parallelism = 0 }},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }},
		{"short key", func(c *Config) { c.Password.KeyLength = 8 }},
		{"bcrypt cost low", func(c *Config) { c.Password.BcryptCost = 3 }},
		{"bcrypt cost high", func(c *Config) { c.Password.BcryptCost = 32 }},
		{"min length zero", func(c *Config) { c.Password.MinLength = 0 }},
		{"empty issuer", func(c *Config) { c.TOTP.Issuer = " " }},
		{"issuer with colon", func(c *Config) { c.TOTP.Issuer = "a:b" }},
		{"short period", func(c *Config) { c.TOTP.Period = 10 }},
		{"wide skew", func(c *Config) { c.TOTP.Skew = 4 }},
		{"tiny qr", func(c *Config) { c.TOTP.QRSize = 32 }},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }},
		{"prefix with colon", func(c *Config) { c.Session.RedisPrefix = "a:b" }},
		{"zero pending ttl", func(c *Config) { c.SecondFactor.PendingTTL = 0 }},
		{"long pending ttl", func(c *Config) { c.SecondFactor.PendingTTL = 2 * time.Hour }},
		{"negative attempts", func(c *Config) { c.SecondFactor.MaxAttempts = -1 }},
		{"unknown signing method", func(c *Config) { c.SecondFactor.SigningMethod = "rs256" }},
		{"empty exempt name", func(c *Config) { c.SecondFactor.ExemptUsernames = []string{""} }},
		{"empty bootstrap user", func(c *Config) { c.Bootstrap.Username = "" }},
		{"bootstrap email", func(c *Config) { c.Bootstrap.Email = "admin" }},
		{"bootstrap secret missing", func(c *Config) { c.Bootstrap.Password = "" }},
		{"async audit without buffer", func(c *Config) { c.Audit.BufferSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildWrapsConfigErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = 0
	_, err := New().WithConfig(cfg).WithUserStore(newMemStore()).WithSessionStore(newMemStore()).Build()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	store := newMemStore()
	b := New().WithConfig(testConfig()).WithUserStore(store).WithSessionStore(store)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("second Build must fail")
	}
}

func TestConfigIsCopiedOnBuild(t *testing.T) {
	cfg := testConfig()
	store := newMemStore()
	engine, err := New().WithConfig(cfg).WithUserStore(store).WithSessionStore(store).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	cfg.SecondFactor.ExemptUsernames[0] = "alice"
	if !engine.config.isExempt("admin") {
		t.Fatal("engine config must not alias caller slices")
	}
}
