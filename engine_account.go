package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pymesuite/authcore/password"
	"github.com/pymesuite/authcore/permission"
	"go.uber.org/zap"
)

// Register describes the register operation and its observable behavior.
//
// Register creates an active account with a fresh TOTP secret and returns its
// id. An empty role selects the least privileged one. Usernames and emails
// already taken yield [ErrDuplicateIdentity]; exempt usernames are reserved
// for Bootstrap.
func (e *Engine) Register(ctx context.Context, username, email, plaintext, role string) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}

	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if err := validateIdentity(username, email); err != nil {
		return 0, e.failRegistration(ctx, username, err)
	}
	if e.config.isExempt(username) {
		return 0, e.failRegistration(ctx, username, fmt.Errorf("%w: username %q is reserved", ErrInvalidInput, username))
	}

	r := permission.RoleUser
	if role != "" {
		r = permission.ParseRole(role)
		if r == permission.RoleUnknown {
			return 0, e.failRegistration(ctx, username, ErrInvalidRole)
		}
	}

	digest, err := e.hashPassword(plaintext)
	if err != nil {
		return 0, e.failRegistration(ctx, username, err)
	}

	secret, err := e.totp.GenerateSecret(username)
	if err != nil {
		return 0, e.failRegistration(ctx, username, err)
	}

	rec, err := e.users.CreateUser(ctx, CreateUserInput{
		Username:        username,
		Email:           email,
		PasswordHash:    digest,
		Role:            string(r),
		TwoFactorSecret: secret,
		CreatedAt:       e.clock.Now().UTC(),
	})
	if err != nil {
		err = storeErr(err)
		if errors.Is(err, ErrDuplicateIdentity) {
			e.metricInc(MetricRegistrationDuplicate)
		}
		return 0, e.failRegistration(ctx, username, err)
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEntry{
		kind:     AuditRegistration,
		success:  true,
		userID:   rec.ID,
		username: rec.Username,
		metadata: map[string]string{"role": string(r)},
	})
	return rec.ID, nil
}

// RoleOf describes the roleof operation and its observable behavior.
//
// RoleOf returns the role of userID, or the least privileged role when the
// account cannot be read or holds a role outside the enumeration.
func (e *Engine) RoleOf(ctx context.Context, userID int64) permission.Role {
	if e == nil || e.users == nil {
		return permission.RoleUser
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("role lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return permission.RoleUser
	}
	return roleOrLowest(user.Role)
}

// SetRole changes the role of userID. The change applies to the next
// permission check; live sessions are kept.
func (e *Engine) SetRole(ctx context.Context, userID int64, role string) error {
	if err := e.ready(); err != nil {
		return err
	}
	r := permission.ParseRole(role)
	if r == permission.RoleUnknown {
		return ErrInvalidRole
	}
	if err := e.users.UpdateRole(ctx, userID, string(r)); err != nil {
		return storeErr(err)
	}
	e.emitAudit(ctx, auditEntry{
		kind:     AuditRoleChanged,
		success:  true,
		userID:   userID,
		metadata: map[string]string{"role": string(r)},
	})
	return nil
}

// Deactivate describes the deactivate operation and its observable behavior.
//
// Deactivate blocks future logins of userID. Sessions already issued stay
// valid unless revokeSessions is set.
func (e *Engine) Deactivate(ctx context.Context, userID int64, revokeSessions bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.users.SetActive(ctx, userID, false); err != nil {
		return storeErr(err)
	}

	revoked := 0
	if revokeSessions {
		n, err := e.RevokeUserSessions(ctx, userID)
		if err != nil {
			return err
		}
		revoked = n
	}

	e.metricInc(MetricAccountDeactivated)
	e.emitAudit(ctx, auditEntry{
		kind:    AuditAccountDeactivated,
		success: true,
		userID:  userID,
		metadata: map[string]string{
			"sessions_revoked": fmt.Sprint(revoked),
		},
	})
	return nil
}

// Activate re-enables logins for userID.
func (e *Engine) Activate(ctx context.Context, userID int64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.users.SetActive(ctx, userID, true); err != nil {
		return storeErr(err)
	}
	e.emitAudit(ctx, auditEntry{kind: AuditAccountActivated, success: true, userID: userID})
	return nil
}

func (e *Engine) failRegistration(ctx context.Context, username string, err error) error {
	e.emitAudit(ctx, auditEntry{kind: AuditRegistration, username: username, err: err})
	return err
}

// hashPassword applies the length policy and hashes plaintext.
func (e *Engine) hashPassword(plaintext string) (string, error) {
	if len(plaintext) < e.config.Password.MinLength {
		return "", fmt.Errorf("%w: must be at least %d bytes", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	digest, err := e.hasher.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooShort) || errors.Is(err, password.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return "", err
	}
	return digest, nil
}

func validateIdentity(username, email string) error {
	if username == "" || len(username) > 64 {
		return fmt.Errorf("%w: username must be 1-64 bytes", ErrInvalidInput)
	}
	if strings.ContainsAny(username, " \t\r\n:") {
		return fmt.Errorf("%w: username must not contain spaces or ':'", ErrInvalidInput)
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || len(email) > 254 {
		return fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return nil
}
