package authcore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pymesuite/authcore/challenge"
	internalaudit "github.com/pymesuite/authcore/internal/audit"
	internalmetrics "github.com/pymesuite/authcore/internal/metrics"
	"github.com/pymesuite/authcore/internal/rate"
	"github.com/pymesuite/authcore/password"
	"github.com/pymesuite/authcore/permission"
	"go.uber.org/zap"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	users       UserStore
	sessions    SessionStore
	permissions PermissionStore
	matrix      atomic.Pointer[permission.Matrix]
	hasher      *password.Hasher
	totp        *TOTP
	challenges  *challenge.Manager
	limiter     *rate.Limiter
	audit       *internalaudit.Dispatcher
	metrics     *internalmetrics.Metrics
	logger      *zap.Logger
	clock       clockwork.Clock
}

// Close describes the close operation and its observable behavior.
//
// Close flushes buffered audit events. It does not close the stores.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	_ = e.logger.Sync()
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// TOTP returns the engine's TOTP generator, configured from Config.TOTP.
func (e *Engine) TOTP() *TOTP {
	return e.totp
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Matrix returns the permission matrix currently in force.
func (e *Engine) Matrix() *permission.Matrix {
	return e.matrix.Load()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.users == nil || e.sessions == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

// storeErr keeps known sentinels and folds every other backend failure into
// ErrStoreUnavailable.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrDuplicateIdentity),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
