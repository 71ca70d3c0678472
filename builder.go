package authcore

import (
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/pymesuite/authcore/challenge"
	internalaudit "github.com/pymesuite/authcore/internal/audit"
	internalmetrics "github.com/pymesuite/authcore/internal/metrics"
	"github.com/pymesuite/authcore/internal/rate"
	"github.com/pymesuite/authcore/password"
	"github.com/pymesuite/authcore/permission"
	"github.com/pymesuite/authcore/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users       UserStore
	sessions    SessionStore
	permissions PermissionStore

	auditSink AuditSink
	logger    *zap.Logger
	clock     clockwork.Clock

	built bool
}

// New describes the new operation and its observable behavior.
//
// New starts from [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the credential store. It is required.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithSessionStore sets the session store. When omitted, Build falls back to
// a [session.RedisStore] on the client given to WithRedis.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessions = store
	return b
}

// WithPermissionStore sets where the permission table is seeded and loaded.
// Without one, the built-in grants are used.
func (b *Builder) WithPermissionStore(store PermissionStore) *Builder {
	b.permissions = store
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// The client backs the second-factor attempt limiter and, if no session
// store is set, the session store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock injects the time source used for sessions, pending tokens and
// TOTP checks.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation or dependency checks fail.
// A Builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}

	sessions := b.sessions
	if sessions == nil {
		if b.redis == nil {
			return nil, errors.New("session store or redis client required")
		}
		sessions = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	engine := &Engine{
		config:      cfg,
		users:       b.users,
		sessions:    sessions,
		permissions: b.permissions,
		logger:      logger.Named("authcore"),
		clock:       clock,
	}

	// -------- PASSWORD HASHER --------
	hasher, err := password.New(cfg.Password.hasherConfig())
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// -------- PERMISSION MATRIX --------
	// Replaced by the persisted table on Bootstrap.
	matrix, err := permission.Compile(permission.DefaultGrants())
	if err != nil {
		return nil, err
	}
	engine.matrix.Store(matrix)

	// -------- SECOND FACTOR --------
	engine.totp = NewTOTP(cfg.TOTP)

	key := cloneBytes(cfg.SecondFactor.PrivateKey)
	if challenge.SigningMethod(cfg.SecondFactor.SigningMethod) == challenge.MethodHS256 && len(key) == 0 {
		key, err = challenge.GenerateKey()
		if err != nil {
			return nil, err
		}
		engine.logger.Info("generated ephemeral pending-login key; pending logins will not survive a restart")
	}
	cm, err := challenge.NewManager(challenge.Config{
		TTL:           cfg.SecondFactor.PendingTTL,
		SigningMethod: challenge.SigningMethod(cfg.SecondFactor.SigningMethod),
		PrivateKey:    key,
		PublicKey:     cloneBytes(cfg.SecondFactor.PublicKey),
		Issuer:        cfg.SecondFactor.Issuer,
	}, clock)
	if err != nil {
		return nil, err
	}
	engine.challenges = cm

	if b.redis != nil && cfg.SecondFactor.MaxAttempts > 0 {
		engine.limiter = rate.New(b.redis, rate.Config{
			MaxSecondFactorAttempts: cfg.SecondFactor.MaxAttempts,
			SecondFactorWindow:      cfg.SecondFactor.PendingTTL,
		})
	}

	// -------- AUDIT / METRICS --------
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		Synchronous: cfg.Audit.Synchronous,
	}, b.auditSink)
	engine.metrics = internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})

	b.built = true

	return engine, nil
}
