package authcore

import (
	"context"
	"errors"

	"github.com/pymesuite/authcore/permission"
	"github.com/pymesuite/authcore/session"
	"go.uber.org/zap"
)

// CreateSession describes the createsession operation and its observable behavior.
//
// CreateSession issues a fresh opaque token for userID valid for
// Config.Session.TTL. Only the token's SHA-256 is stored.
func (e *Engine) CreateSession(ctx context.Context, userID int64) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if userID <= 0 {
		return "", ErrInvalidInput
	}
	token, _, err := e.createSession(ctx, userID)
	return token, err
}

func (e *Engine) createSession(ctx context.Context, userID int64) (string, *session.Session, error) {
	token, hash, err := session.NewToken()
	if err != nil {
		return "", nil, err
	}

	now := e.clock.Now().UTC()
	sess := &session.Session{
		UserID:    userID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.Session.TTL),
	}
	if err := e.sessions.CreateSession(ctx, sess); err != nil {
		return "", nil, storeErr(err)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEntry{kind: AuditSessionCreated, success: true, userID: userID, sessionID: sess.ID})
	return token, sess, nil
}

// ValidateSession describes the validatesession operation and its observable behavior.
//
// ValidateSession returns the owner of token when a session exists, has not
// expired and has not been revoked. Every other case, including malformed
// tokens and store failures, yields (0, false).
//
// ValidateSession performs no writes.
func (e *Engine) ValidateSession(ctx context.Context, token string) (int64, bool) {
	if e.ready() != nil {
		return 0, false
	}

	if e.metrics.LatencyEnabled() {
		start := e.clock.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, e.clock.Since(start))
		}()
	}

	sess, err := e.lookupSession(ctx, token)
	if err != nil {
		e.metricInc(MetricSessionRejected)
		return 0, false
	}

	e.metricInc(MetricSessionValidated)
	return sess.UserID, true
}

// Authorize resolves token to its owner and checks the owner's role against
// the permission matrix. It returns [ErrSessionExpiredOrUnknown] when the
// session is not valid; a denied permission is (userID, false, nil).
func (e *Engine) Authorize(ctx context.Context, token, module, action string) (int64, bool, error) {
	userID, ok := e.ValidateSession(ctx, token)
	if !ok {
		return 0, false, ErrSessionExpiredOrUnknown
	}
	role := e.RoleOf(ctx, userID)
	return userID, e.HasPermission(string(role), module, action), nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout revokes the session behind token. Revoking an already revoked or
// expired session succeeds; an unknown token yields
// [ErrSessionExpiredOrUnknown].
func (e *Engine) Logout(ctx context.Context, token string) error {
	if err := e.ready(); err != nil {
		return err
	}

	hash, ok := session.ParseToken(token)
	if !ok {
		return ErrSessionExpiredOrUnknown
	}

	sess, err := e.sessions.FindSession(ctx, hash)
	if err != nil {
		if isSessionNotFound(err) {
			return ErrSessionExpiredOrUnknown
		}
		return storeErr(err)
	}

	if err := e.sessions.RevokeSession(ctx, hash, e.clock.Now().UTC()); err != nil {
		if isSessionNotFound(err) {
			return ErrSessionExpiredOrUnknown
		}
		return storeErr(err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEntry{kind: AuditLogout, success: true, userID: sess.UserID, sessionID: sess.ID})
	return nil
}

// RevokeUserSessions revokes every session of userID and returns how many
// were live.
func (e *Engine) RevokeUserSessions(ctx context.Context, userID int64) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	n, err := e.sessions.RevokeUserSessions(ctx, userID, e.clock.Now().UTC())
	if err != nil {
		return 0, storeErr(err)
	}
	for i := 0; i < n; i++ {
		e.metricInc(MetricSessionRevoked)
	}
	if n > 0 {
		e.logger.Info("user sessions revoked", zap.Int64("user_id", userID), zap.Int("count", n))
	}
	return n, nil
}

func (e *Engine) lookupSession(ctx context.Context, token string) (*session.Session, error) {
	hash, ok := session.ParseToken(token)
	if !ok {
		return nil, ErrSessionExpiredOrUnknown
	}

	sess, err := e.sessions.FindSession(ctx, hash)
	if err != nil {
		if !isSessionNotFound(err) {
			e.logger.Warn("session lookup failed", zap.Error(err))
		}
		return nil, ErrSessionExpiredOrUnknown
	}

	if !sess.Valid(e.clock.Now()) {
		return nil, ErrSessionExpiredOrUnknown
	}
	return sess, nil
}

func isSessionNotFound(err error) bool {
	return errors.Is(err, session.ErrNotFound) || errors.Is(err, ErrSessionNotFound)
}

// HasPermission describes the haspermission operation and its observable behavior.
//
// HasPermission reports whether role may perform action on module. Unknown
// roles, modules or actions are denied. It never errors.
func (e *Engine) HasPermission(role, module, action string) bool {
	if e == nil {
		return false
	}
	m := e.matrix.Load()
	if m == nil {
		return false
	}

	mod, ok := permission.ParseModule(module)
	if !ok {
		e.metricInc(MetricPermissionDenied)
		return false
	}
	act, ok := permission.ParseAction(action)
	if !ok {
		e.metricInc(MetricPermissionDenied)
		return false
	}

	allowed := m.HasPermission(permission.ParseRole(role), mod, act)
	if !allowed {
		e.metricInc(MetricPermissionDenied)
	}
	return allowed
}
