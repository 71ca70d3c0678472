package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pymesuite/authcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AUTHCORE_DSN", "AUTHCORE_REDIS_ADDR", "AUTHCORE_REDIS_PASSWORD",
		"AUTHCORE_SESSION_BACKEND", "AUTHCORE_BOOTSTRAP_PASSWORD",
		"AUTHCORE_BOOTSTRAP_PASSWORD_HASH", "AUTHCORE_PENDING_KEY",
		"AUTHCORE_MAX_ATTEMPTS", "LOG_LEVEL", "LOG_DEV",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authcore.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileConfigMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	fc, err := loadFileConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite:sistema_pyme.db", fc.DSN)
	assert.Equal(t, "sql", fc.Session.Backend)

	cfg, err := fc.engineConfig()
	require.NoError(t, err)
	assert.Equal(t, authcore.DefaultConfig().Session.TTL, cfg.Session.TTL)
	assert.True(t, cfg.Audit.Synchronous)
}

func TestLoadFileConfigDecodesTOML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
dsn = "postgres://auth@localhost/auth"

[session]
ttl = "12h"

[totp]
issuer = "Acme"
skew = 0

[second_factor]
exempt = []
pending_ttl = "2m"
max_attempts = 3
signing_key = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
`)
	fc, err := loadFileConfig(path)
	require.NoError(t, err)

	cfg, err := fc.engineConfig()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "Acme", cfg.TOTP.Issuer)
	assert.Equal(t, uint(0), cfg.TOTP.Skew)
	assert.Empty(t, cfg.SecondFactor.ExemptUsernames)
	assert.Equal(t, 2*time.Minute, cfg.SecondFactor.PendingTTL)
	assert.Equal(t, 3, cfg.SecondFactor.MaxAttempts)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), cfg.SecondFactor.PrivateKey)
}

func TestLoadFileConfigRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "dsn = \"sqlite::memory:\"\nsesion_ttl = \"1h\"\n")
	_, err := loadFileConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "dsn = \"sqlite:file.db\"\n")
	t.Setenv("AUTHCORE_DSN", "sqlite::memory:")
	t.Setenv("AUTHCORE_MAX_ATTEMPTS", "4")
	t.Setenv("LOG_DEV", "1")

	fc, err := loadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite::memory:", fc.DSN)
	require.NotNil(t, fc.SecondFactor.MaxAttempts)
	assert.Equal(t, 4, *fc.SecondFactor.MaxAttempts)
	assert.True(t, fc.Log.Dev)
}

func TestEngineConfigRejects(t *testing.T) {
	clearEnv(t)

	fc := defaultFileConfig()
	fc.Session.Backend = "memcached"
	_, err := fc.engineConfig()
	assert.Error(t, err)

	fc = defaultFileConfig()
	fc.Session.Backend = "redis"
	_, err = fc.engineConfig()
	assert.Error(t, err, "redis backend without address")

	fc = defaultFileConfig()
	fc.SecondFactor.SigningKey = "not base64!"
	_, err = fc.engineConfig()
	assert.Error(t, err)

	fc = defaultFileConfig()
	fc.Password.MemoryKiB = 1024
	_, err = fc.engineConfig()
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, "debug", levelFromString("debug").String())
	assert.Equal(t, "warn", levelFromString("warning").String())
	assert.Equal(t, "info", levelFromString("loud").String())
}
