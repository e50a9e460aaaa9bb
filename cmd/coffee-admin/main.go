package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/target/coffee-ui/config"
	"github.com/target/coffee-ui/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader

	// connectRedis is swapped in tests.
	connectRedis func(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error)
}

func main() {
	logger := bootstrap.InitLogger(slog.LevelWarn)
	os.Exit(runMain(os.Args[1:], logger)) //nolint:forbidigo // CLI exit status reaches shell scripts
}

// runMain dispatches one command and returns the process exit code.
func runMain(args []string, logger *slog.Logger) int {
	if len(args) < 1 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		return 2
	}

	cmdName := args[0]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		return 2
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}

	cmdCtx := &commandContext{
		Ctx:          context.Background(),
		Logger:       logger,
		Config:       cfg,
		Out:          os.Stdout,
		In:           os.Stdin,
		connectRedis: bootstrap.ConnectRedis,
	}
	if runErr := cmd.run(cmdCtx, args[1:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		return 1
	}
	return 0
}

func commands() map[string]command {
	return map[string]command{
		"sessions-list": {
			name:        "sessions-list",
			description: "List stored session ids and their remaining TTL",
			run:         runSessionsList,
		},
		"sessions-revoke": {
			name:        "sessions-revoke",
			description: "Delete the stored token of one session (--id)",
			run:         runSessionsRevoke,
		},
		"sessions-purge": {
			name:        "sessions-purge",
			description: "Delete every stored session token",
			run:         runSessionsPurge,
		},
		"whoami": {
			name:        "whoami",
			description: "Sign in against the backend and print the profile",
			run:         runWhoami,
		},
		"help": {
			name:        "help",
			description: "Show this help",
			run: func(ctx *commandContext, _ []string) error {
				return printUsage(ctx.Out)
			},
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: coffee-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-18s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
