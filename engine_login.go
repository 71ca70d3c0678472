package authcore

import (
	"context"
	"errors"

	"github.com/pymesuite/authcore/challenge"
	"github.com/pymesuite/authcore/internal/rate"
	"github.com/pymesuite/authcore/permission"
	"go.uber.org/zap"
)

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate checks username and password. Exempt accounts receive a
// session immediately; every other account receives a [Pending] second-factor
// step. Absent, inactive and wrong-password accounts all yield
// [ErrInvalidCredentials] with StatusRejected.
//
// Authenticate can be used concurrently.
func (e *Engine) Authenticate(ctx context.Context, username, password string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	// AwaitingCredentials
	user, err := e.verifyCredentials(ctx, username, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEntry{kind: AuditLoginFailure, username: username, err: err})
		return rejected(), err
	}

	// CredentialsVerified
	e.touchLastLogin(ctx, user.ID)
	e.upgradeDigest(ctx, user, password)

	if e.config.isExempt(user.Username) {
		return e.bypassSecondFactor(ctx, user)
	}

	if user.TwoFactorSecret == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEntry{kind: AuditLoginFailure, userID: user.ID, username: user.Username, err: ErrTOTPNotConfigured})
		return rejected(), ErrTOTPNotConfigured
	}

	pending, err := e.issuePending(user)
	if err != nil {
		return rejected(), err
	}

	e.metricInc(MetricSecondFactorRequired)
	e.emitAudit(ctx, auditEntry{kind: AuditSecondFactorRequired, success: true, userID: user.ID, username: user.Username})

	return &AuthResult{
		Status:  StatusNeedsSecondFactor,
		State:   StateAwaitingSecondFactor,
		UserID:  user.ID,
		Pending: pending,
	}, nil
}

// VerifySecondFactor describes the verifysecondfactor operation and its observable behavior.
//
// VerifySecondFactor redeems a pending login with a TOTP code. A wrong code
// keeps the login pending and returns [ErrInvalidSecondFactor]; the caller
// may retry with the same Pending until it expires or, with an attempt
// limiter configured, until attempts run out.
func (e *Engine) VerifySecondFactor(ctx context.Context, pending Pending, code string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.challenges.Parse(pending.Token)
	if err != nil {
		mapped := ErrInvalidCredentials
		if errors.Is(err, challenge.ErrExpired) {
			mapped = ErrPendingExpired
		}
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEntry{kind: AuditSecondFactorFailure, err: mapped})
		return rejected(), mapped
	}

	// The attempt is spent before the code is looked at.
	attempt, err := e.limiter.ReserveSecondFactor(ctx, claims.ID)
	if err != nil {
		return e.failSecondFactor(ctx, claims, limiterErr(err))
	}

	user, err := e.users.GetUserByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return e.failSecondFactor(ctx, claims, ErrInvalidCredentials)
		}
		return e.failSecondFactor(ctx, claims, storeErr(err))
	}
	if !user.IsActive || user.Username != claims.Username {
		return e.failSecondFactor(ctx, claims, ErrInvalidCredentials)
	}
	if user.TwoFactorSecret == "" {
		return e.failSecondFactor(ctx, claims, ErrTOTPNotConfigured)
	}

	if !e.totp.Verify(user.TwoFactorSecret, code, e.clock.Now()) {
		if attempt.Last() {
			return e.failSecondFactor(ctx, claims, ErrSecondFactorAttemptsExceeded)
		}
		e.metricInc(MetricSecondFactorFailure)
		e.emitAudit(ctx, auditEntry{kind: AuditSecondFactorFailure, userID: user.ID, username: user.Username, err: ErrInvalidSecondFactor})
		retry := pending
		return &AuthResult{
			Status:  StatusNeedsSecondFactor,
			State:   StateAwaitingSecondFactor,
			UserID:  user.ID,
			Pending: &retry,
		}, ErrInvalidSecondFactor
	}

	e.metricInc(MetricSecondFactorSuccess)
	e.emitAudit(ctx, auditEntry{kind: AuditSecondFactorSuccess, success: true, userID: user.ID, username: user.Username})

	return e.completeLogin(ctx, user)
}

// verifyCredentials runs the password step. Unknown usernames are checked
// against a dummy digest so both failure paths cost the same.
func (e *Engine) verifyCredentials(ctx context.Context, username, password string) (UserRecord, error) {
	if username == "" || password == "" {
		e.hasher.VerifyDummy(password)
		return UserRecord{}, ErrInvalidCredentials
	}

	user, err := e.users.FindActiveUserByUsername(ctx, username)
	if err != nil {
		e.hasher.VerifyDummy(password)
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrInvalidCredentials
		}
		return UserRecord{}, storeErr(err)
	}
	if !user.IsActive {
		e.hasher.VerifyDummy(password)
		return UserRecord{}, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		e.logger.Warn("stored password digest unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
		return UserRecord{}, ErrInvalidCredentials
	}
	if !ok {
		return UserRecord{}, ErrInvalidCredentials
	}
	return user, nil
}

func (e *Engine) bypassSecondFactor(ctx context.Context, user UserRecord) (*AuthResult, error) {
	e.logger.Warn("second factor bypassed for exempt account",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	e.metricInc(MetricSecondFactorBypassed)
	e.emitAudit(ctx, auditEntry{
		kind:     AuditSecondFactorBypassed,
		success:  true,
		userID:   user.ID,
		username: user.Username,
		metadata: map[string]string{"reason": "exempt_account"},
	})

	return e.completeLogin(ctx, user)
}

// completeLogin issues the session that ends every successful path.
func (e *Engine) completeLogin(ctx context.Context, user UserRecord) (*AuthResult, error) {
	token, sess, err := e.createSession(ctx, user.ID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEntry{kind: AuditLoginFailure, userID: user.ID, username: user.Username, err: err})
		return rejected(), err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEntry{
		kind:      AuditLoginSuccess,
		success:   true,
		userID:    user.ID,
		username:  user.Username,
		sessionID: sess.ID,
	})

	return &AuthResult{
		Status:       StatusAuthenticated,
		State:        StateAuthenticated,
		UserID:       user.ID,
		SessionToken: token,
		Role:         roleOrLowest(user.Role),
	}, nil
}

func (e *Engine) failSecondFactor(ctx context.Context, claims *challenge.Claims, err error) (*AuthResult, error) {
	kind := AuditSecondFactorFailure
	if errors.Is(err, ErrSecondFactorAttemptsExceeded) {
		kind = AuditSecondFactorAttemptsExceeded
		e.metricInc(MetricSecondFactorAttemptsExceeded)
	}
	e.metricInc(MetricSecondFactorFailure)
	e.emitAudit(ctx, auditEntry{
		kind:     kind,
		userID:   claims.UID,
		username: claims.Username,
		err:      err,
	})
	return rejected(), err
}

func (e *Engine) issuePending(user UserRecord) (*Pending, error) {
	token, claims, err := e.challenges.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	p := &Pending{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		Secret:    user.TwoFactorSecret,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	uri, err := e.totp.ProvisioningURI(user.TwoFactorSecret, user.Username, "")
	if err != nil {
		e.logger.Warn("provisioning uri unavailable", zap.Int64("user_id", user.ID), zap.Error(err))
		return p, nil
	}
	p.ProvisioningURI = uri

	qr, err := e.totp.QRCode(uri, 0)
	if err != nil {
		e.logger.Warn("qr rendering failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return p, nil
	}
	p.QRCode = qr
	return p, nil
}

func (e *Engine) touchLastLogin(ctx context.Context, userID int64) {
	if err := e.users.UpdateLastLogin(ctx, userID, e.clock.Now().UTC()); err != nil {
		e.logger.Warn("last login update failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (e *Engine) upgradeDigest(ctx context.Context, user UserRecord, password string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	digest, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.Warn("password rehash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		e.logger.Warn("password rehash not stored", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	e.metricInc(MetricPasswordRehashed)
	e.logger.Debug("password digest upgraded",
		zap.Int64("user_id", user.ID),
		zap.String("algorithm", string(e.hasher.Algorithm())),
	)
}

func limiterErr(err error) error {
	if errors.Is(err, rate.ErrRateLimited) {
		return ErrSecondFactorAttemptsExceeded
	}
	return storeErr(err)
}

func rejected() *AuthResult {
	return &AuthResult{Status: StatusRejected, State: StateRejected}
}

// roleOrLowest maps a stored role onto the enumeration, falling back to the
// least privileged role.
func roleOrLowest(name string) permission.Role {
	if r := permission.ParseRole(name); r != permission.RoleUnknown {
		return r
	}
	return permission.RoleUser
}
