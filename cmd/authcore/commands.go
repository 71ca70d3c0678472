package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pymesuite/authcore"
	"github.com/pymesuite/authcore/permission"
	"go.uber.org/zap"
)

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func runMigrate(ctx context.Context, env *cliEnv, args []string) error {
	if err := newFlags("migrate").Parse(args); err != nil {
		return err
	}
	store, err := openStore(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Fprintf(env.stdout, "schema up to date (%s)\n", store.Dialect())
	return nil
}

func runBootstrap(ctx context.Context, env *cliEnv, args []string) error {
	if err := newFlags("bootstrap").Parse(args); err != nil {
		return err
	}
	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	fmt.Fprintln(env.stdout, "bootstrap complete")
	return nil
}

func runResetAdmin(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("reset-admin")
	password := fs.String("password", "", "new password (default: bootstrap password)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.ResetAdmin(ctx, *password); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "bootstrap account reset; second factor disabled")
	return nil
}

func runRegister(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("register")
	username := fs.String("username", "", "account name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password (prompted when empty)")
	role := fs.String("role", "user", "admin, manager, analyst or user")
	qrPath := fs.String("qr", "", "write the enrollment QR code PNG here")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := valueOrPrompt(env, *password, "password: ")
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	id, err := rt.engine.Register(ctx, *username, *email, pw, *role)
	if err != nil {
		return err
	}
	user, err := rt.store.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	tp := rt.engine.TOTP()
	uri, err := tp.ProvisioningURI(user.TwoFactorSecret, user.Username, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "user %d created\nenroll: %s\n", id, uri)

	if *qrPath != "" {
		png, err := tp.QRCode(uri, 0)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*qrPath, png, 0o600); err != nil {
			return err
		}
		fmt.Fprintf(env.stdout, "qr code written to %s\n", *qrPath)
	}
	return nil
}

func runLogin(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("login")
	username := fs.String("username", "", "account name")
	password := fs.String("password", "", "password (prompted when empty)")
	code := fs.String("code", "", "TOTP code (prompted when needed)")
	ip := fs.String("ip", "", "client address recorded in the audit trail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := valueOrPrompt(env, *password, "password: ")
	if err != nil {
		return err
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if *ip != "" {
		ctx = authcore.WithClientIP(ctx, *ip)
	}

	res, err := rt.engine.Authenticate(ctx, *username, pw)
	for err == nil && res.Status == authcore.StatusNeedsSecondFactor {
		c, perr := valueOrPrompt(env, *code, "code: ")
		if perr != nil {
			return perr
		}
		*code = ""
		res, err = rt.engine.VerifySecondFactor(ctx, *res.Pending, c)
		if errors.Is(err, authcore.ErrInvalidSecondFactor) {
			fmt.Fprintln(env.stdout, "invalid code, try again")
			err = nil
		}
	}
	if err != nil {
		return err
	}

	env.logger.Debug("login complete", zap.Int64("user_id", res.UserID))
	fmt.Fprintf(env.stdout, "user=%d role=%s\ntoken=%s\n", res.UserID, res.Role, res.SessionToken)
	return nil
}

func runCheck(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("check")
	token := fs.String("token", "", "session token")
	module := fs.String("module", "", "module to check (optional)")
	action := fs.String("action", "view", "view, edit or delete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if *module == "" {
		uid, ok := rt.engine.ValidateSession(ctx, *token)
		if !ok {
			return authcore.ErrSessionExpiredOrUnknown
		}
		fmt.Fprintf(env.stdout, "valid user=%d role=%s\n", uid, rt.engine.RoleOf(ctx, uid))
		return nil
	}

	uid, allowed, err := rt.engine.Authorize(ctx, *token, *module, *action)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "valid user=%d %s:%s allowed=%t\n", uid, *module, *action, allowed)
	if !allowed {
		return errors.New("permission denied")
	}
	return nil
}

func runLogout(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("logout")
	token := fs.String("token", "", "session token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.engine.Logout(ctx, *token); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "session revoked")
	return nil
}

func runDeactivate(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("deactivate")
	username := fs.String("username", "", "account name")
	revoke := fs.Bool("revoke", false, "also revoke live sessions")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	user, err := rt.store.FindUserByUsername(ctx, *username)
	if err != nil {
		return err
	}
	if err := rt.engine.Deactivate(ctx, user.ID, *revoke); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "user %d deactivated\n", user.ID)
	return nil
}

func runPermissions(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("permissions")
	role := fs.String("role", "", "limit output to one role")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	roles := permission.Roles()
	if *role != "" {
		r := permission.ParseRole(*role)
		if r == permission.RoleUnknown {
			return fmt.Errorf("%w: %q", authcore.ErrInvalidRole, *role)
		}
		roles = []permission.Role{r}
	}

	matrix := rt.engine.Matrix()
	for _, r := range roles {
		fmt.Fprintf(env.stdout, "%s: %s\n", r, strings.Join(matrix.Permissions(r), " "))
	}
	return nil
}

// valueOrPrompt returns v, or reads one line from stdin after printing prompt.
func valueOrPrompt(env *cliEnv, v, prompt string) (string, error) {
	if v != "" {
		return v, nil
	}
	fmt.Fprint(env.stdout, prompt)
	line, err := env.stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", errors.New("no input")
	}
	return line, nil
}
