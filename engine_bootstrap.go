package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/pymesuite/authcore/permission"
	"go.uber.org/zap"
)

// Bootstrap describes the bootstrap operation and its observable behavior.
//
// Bootstrap seeds the permission table, loads it into the engine and creates
// the bootstrap account when it does not exist. Existing rows are left
// untouched, so Bootstrap can run on every start.
func (e *Engine) Bootstrap(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}

	if e.permissions != nil {
		if err := e.permissions.SeedPermissions(ctx, permission.DefaultGrants()); err != nil {
			return storeErr(err)
		}
	}
	if err := e.ReloadPermissions(ctx); err != nil {
		return err
	}

	digest, err := e.bootstrapDigest()
	if err != nil {
		return err
	}

	cfg := e.config.Bootstrap
	rec, err := e.users.CreateUser(ctx, CreateUserInput{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: digest,
		Role:         string(permission.RoleAdmin),
		CreatedAt:    e.clock.Now().UTC(),
	})
	switch {
	case err == nil:
		e.logger.Info("bootstrap account created", zap.Int64("user_id", rec.ID), zap.String("username", rec.Username))
		e.emitAudit(ctx, auditEntry{kind: AuditBootstrap, success: true, userID: rec.ID, username: rec.Username})
	case errors.Is(err, ErrDuplicateIdentity):
		// The collision may be on the email alone.
		if _, findErr := e.users.FindUserByUsername(ctx, cfg.Username); findErr != nil {
			if errors.Is(findErr, ErrUserNotFound) {
				e.logger.Error("bootstrap email taken by another account", zap.String("email", cfg.Email))
				return fmt.Errorf("%w: bootstrap email %q belongs to another account", ErrDuplicateIdentity, cfg.Email)
			}
			return storeErr(findErr)
		}
		e.logger.Debug("bootstrap account already present", zap.String("username", cfg.Username))
	default:
		return storeErr(err)
	}
	return nil
}

// ResetAdmin describes the resetadmin operation and its observable behavior.
//
// ResetAdmin restores the bootstrap account: new password digest, no second
// factor, admin role, active. The account is created if missing and the admin
// rows of the permission table are rewritten with full access. An empty
// password selects Config.Bootstrap.Password.
func (e *Engine) ResetAdmin(ctx context.Context, plaintext string) error {
	if err := e.ready(); err != nil {
		return err
	}

	var digest string
	var err error
	if plaintext == "" {
		digest, err = e.bootstrapDigest()
	} else {
		digest, err = e.hashPassword(plaintext)
	}
	if err != nil {
		return err
	}

	cfg := e.config.Bootstrap
	user, err := e.users.FindUserByUsername(ctx, cfg.Username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		created, cerr := e.users.CreateUser(ctx, CreateUserInput{
			Username:     cfg.Username,
			Email:        cfg.Email,
			PasswordHash: digest,
			Role:         string(permission.RoleAdmin),
			CreatedAt:    e.clock.Now().UTC(),
		})
		if cerr != nil {
			return storeErr(cerr)
		}
		user = created
	case err != nil:
		return storeErr(err)
	default:
		steps := []func() error{
			func() error { return e.users.UpdatePasswordHash(ctx, user.ID, digest) },
			func() error { return e.users.SetTwoFactorSecret(ctx, user.ID, "") },
			func() error { return e.users.UpdateRole(ctx, user.ID, string(permission.RoleAdmin)) },
			func() error { return e.users.SetActive(ctx, user.ID, true) },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return storeErr(err)
			}
		}
	}

	if e.permissions != nil {
		if err := e.permissions.UpsertPermissions(ctx, permission.AdminGrants()); err != nil {
			return storeErr(err)
		}
	}
	if err := e.ReloadPermissions(ctx); err != nil {
		return err
	}

	e.logger.Warn("bootstrap account reset", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	e.emitAudit(ctx, auditEntry{kind: AuditAdminReset, success: true, userID: user.ID, username: user.Username})
	return nil
}

// ReloadPermissions replaces the in-memory matrix with the persisted table.
// Without a permission store the built-in grants are used.
func (e *Engine) ReloadPermissions(ctx context.Context) error {
	grants := permission.DefaultGrants()
	if e.permissions != nil {
		loaded, err := e.permissions.LoadPermissions(ctx)
		if err != nil {
			return storeErr(err)
		}
		grants = grants[:0]
		for _, g := range loaded {
			if !g.Role.Valid() {
				e.logger.Warn("ignoring permission row with unknown role", zap.String("role", string(g.Role)))
				continue
			}
			if _, ok := permission.ParseModule(string(g.Module)); !ok {
				e.logger.Warn("ignoring permission row with unknown module", zap.String("module", string(g.Module)))
				continue
			}
			grants = append(grants, g)
		}
	}

	m, err := permission.Compile(grants)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	e.matrix.Store(m)
	return nil
}

func (e *Engine) bootstrapDigest() (string, error) {
	cfg := e.config.Bootstrap
	if cfg.PasswordHash != "" {
		if _, err := e.hasher.NeedsUpgrade(cfg.PasswordHash); err != nil {
			return "", fmt.Errorf("%w: bootstrap password hash: %v", ErrInvalidInput, err)
		}
		return cfg.PasswordHash, nil
	}
	if cfg.Password == DefaultBootstrapPassword {
		e.logger.Warn("bootstrap account uses the default password; change it after first login",
			zap.String("username", cfg.Username))
	}
	return e.hasher.Hash(cfg.Password)
}
