// Command authcore administers the identity store: schema migrations, the
// bootstrap account, account registration and session checks.
//
//	authcore [-config authcore.toml] <command> [flags]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, env *cliEnv, args []string) error
}

// cliEnv is what every command receives.
type cliEnv struct {
	fc     fileConfig
	logger *zap.Logger
	stdout io.Writer
	stdin  *bufio.Reader
}

var commands = []command{
	{"migrate", "apply schema migrations", runMigrate},
	{"bootstrap", "seed permissions and create the bootstrap account", runBootstrap},
	{"reset-admin", "restore the bootstrap account without second factor", runResetAdmin},
	{"register", "create an account and print its enrollment URI", runRegister},
	{"login", "run the login flow and print the session token", runLogin},
	{"check", "validate a session token and optionally a permission", runCheck},
	{"logout", "revoke a session token", runLogout},
	{"deactivate", "deactivate an account", runDeactivate},
	{"permissions", "print the permission matrix in force", runPermissions},
	{"bench", "seed sessions and measure validation latency", runBench},
}

func main() {
	// best-effort: a missing .env is fine
	_ = godotenv.Load()

	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("authcore", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", envOr("AUTHCORE_CONFIG", "authcore.toml"), "path to TOML config")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: authcore [-config path] <command> [flags]")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-12s %s\n", c.name, c.usage)
		}
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	name := global.Arg(0)
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		global.Usage()
		return 2
	}

	fc, err := loadFileConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	logger, err := newLogger(fc.Log.Level, fc.Log.Dev)
	if err != nil {
		fmt.Fprintf(stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := &cliEnv{fc: fc, logger: logger, stdout: stdout, stdin: bufio.NewReader(stdin)}
	if err := cmd.run(ctx, env, global.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		logger.Error("command failed", zap.String("command", name), zap.Error(err))
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
