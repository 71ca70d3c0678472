package authcore

import (
	"context"
	"errors"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrSecondFactorInvalid AuditErrorCode = "second_factor_invalid"
	auditErrSecondFactorMissing AuditErrorCode = "second_factor_not_configured"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrPendingExpired      AuditErrorCode = "pending_expired"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrInvalidRole         AuditErrorCode = "invalid_role"
	auditErrInvalidInput        AuditErrorCode = "invalid_input"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

type auditEntry struct {
	kind      string
	success   bool
	userID    int64
	username  string
	sessionID int64
	err       error
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, entry auditEntry) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.clock.Now().UTC(),
		EventType: entry.kind,
		UserID:    entry.userID,
		Username:  entry.username,
		SessionID: entry.sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   entry.success,
		Metadata:  entry.metadata,
	}
	if code := auditErrorCode(entry.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidSecondFactor):
		return auditErrSecondFactorInvalid
	case errors.Is(err, ErrTOTPNotConfigured):
		return auditErrSecondFactorMissing
	case errors.Is(err, ErrSecondFactorAttemptsExceeded):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrPendingExpired):
		return auditErrPendingExpired
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionExpiredOrUnknown):
		return auditErrSessionNotFound
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidRole):
		return auditErrInvalidRole
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrDuplicateIdentity):
		return auditErrDuplicate
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
