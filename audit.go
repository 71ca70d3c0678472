package authcore

import (
	"io"

	internalaudit "github.com/pymesuite/authcore/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is the record handed to an [AuditSink].
type AuditEvent = internalaudit.Event

// AuditSink receives audit events. Emit must not block for long; the
// asynchronous dispatcher drops events when its buffer is full and
// Config.Audit.DropIfFull is set.
type AuditSink = internalaudit.Sink

// AuditHandler is a callback registered on an [AuditRegistry].
type AuditHandler = internalaudit.Handler

// AuditRegistry routes events to handlers by event kind, in subscription
// order. It satisfies [AuditSink].
type AuditRegistry = internalaudit.Registry

// NoOpAuditSink drops every event.
type NoOpAuditSink = internalaudit.NoOpSink

// MultiAuditSink fans an event out to several sinks in order.
type MultiAuditSink = internalaudit.MultiSink

// Event kinds emitted by the Engine.
const (
	AuditLoginSuccess                 = "login_success"
	AuditLoginFailure                 = "login_failure"
	AuditSecondFactorRequired         = "second_factor_required"
	AuditSecondFactorSuccess          = "second_factor_success"
	AuditSecondFactorFailure          = "second_factor_failure"
	AuditSecondFactorBypassed         = "second_factor_bypassed"
	AuditSecondFactorAttemptsExceeded = "second_factor_attempts_exceeded"
	AuditSessionCreated               = "session_created"
	AuditLogout                       = "logout"
	AuditRegistration                 = "registration"
	AuditRoleChanged                  = "role_changed"
	AuditAccountDeactivated           = "account_deactivated"
	AuditAccountActivated             = "account_activated"
	AuditBootstrap                    = "bootstrap"
	AuditAdminReset                   = "admin_reset"
)

// NewAuditRegistry returns an empty registry. onFailure, if set, is called
// with the event kind and recovered value whenever a handler panics.
func NewAuditRegistry(onFailure func(kind string, recovered any)) *AuditRegistry {
	return internalaudit.NewRegistry(onFailure)
}

// NewZapAuditSink writes events through logger under the "audit" name.
func NewZapAuditSink(logger *zap.Logger) AuditSink {
	return internalaudit.NewZapSink(logger)
}

// NewJSONAuditSink writes one JSON document per line to w.
func NewJSONAuditSink(w io.Writer) AuditSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewChannelAuditSink buffers events on a channel, mostly for tests.
func NewChannelAuditSink(buffer int) *internalaudit.ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}
