package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alicebob/miniredis/v2"
	"github.com/pymesuite/authcore"
	"github.com/pymesuite/authcore/sqlstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// runtime bundles the engine with the resources it was built on.
type runtime struct {
	engine *authcore.Engine
	store  *sqlstore.Store
	redis  redis.UniversalClient
	logger *zap.Logger

	closers []func()
}

func (rt *runtime) Close() {
	if rt.engine != nil {
		rt.engine.Close()
		if n := rt.engine.AuditDropped(); n > 0 {
			rt.logger.Warn("audit events dropped", zap.Uint64("count", n))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// openStore opens and migrates the database named by fc.DSN.
func openStore(ctx context.Context, fc fileConfig, logger *zap.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, fc.DSN, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// openRedis connects to fc.Redis.Addr. "memory" starts an in-process server
// that lives as long as the command.
func openRedis(ctx context.Context, fc fileConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := fc.Redis.Addr
	if addr == "" {
		return nil, func() {}, nil
	}

	var mr *miniredis.Miniredis
	if addr == "memory" {
		var err error
		mr, err = miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start in-memory redis: %w", err)
		}
		addr = mr.Addr()
		logger.Info("using in-memory redis", zap.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: fc.Redis.Password,
		DB:       fc.Redis.DB,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return client, cleanup, nil
}

// auditSink logs every event and, when configured, appends JSON lines to a
// file. Bypasses of the second factor are additionally raised to Warn.
func auditSink(fc fileConfig, logger *zap.Logger) (authcore.AuditSink, func(), error) {
	registry := authcore.NewAuditRegistry(func(kind string, recovered any) {
		logger.Error("audit handler panicked", zap.String("kind", kind), zap.Any("recovered", recovered))
	})
	registry.Subscribe(authcore.AuditSecondFactorBypassed, func(_ context.Context, ev authcore.AuditEvent) {
		logger.Warn("second factor bypassed", zap.String("username", ev.Username), zap.Int64("user_id", ev.UserID))
	})

	sinks := authcore.MultiAuditSink{authcore.NewZapAuditSink(logger.Named("audit")), registry}
	if fc.Audit.File == "" {
		return sinks, func() {}, nil
	}

	f, err := os.OpenFile(fc.Audit.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	sinks = append(sinks, authcore.NewJSONAuditSink(f))
	return sinks, func() { _ = f.Close() }, nil
}

// openRuntime builds the engine for fc. Accounts and permissions always live
// in SQL; sessions live in SQL or Redis depending on session.backend.
func openRuntime(ctx context.Context, fc fileConfig, logger *zap.Logger) (*runtime, error) {
	cfg, err := fc.engineConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authcore.ErrConfigInvalid, err)
	}

	rt := &runtime{logger: logger}

	store, err := openStore(ctx, fc, logger)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, func() { _ = store.Close() })

	client, closeRedis, err := openRedis(ctx, fc, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.redis = client
	rt.closers = append(rt.closers, closeRedis)

	sink, closeSink, err := auditSink(fc, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeSink)

	b := authcore.New().
		WithConfig(cfg).
		WithUserStore(store).
		WithPermissionStore(store).
		WithAuditSink(sink).
		WithLogger(logger)
	if client != nil {
		b.WithRedis(client)
	}
	if fc.Session.Backend != "redis" {
		b.WithSessionStore(store)
	}

	engine, err := b.Build()
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.engine = engine

	// Schema seed and bootstrap account, as on every start.
	if err := engine.Bootstrap(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
