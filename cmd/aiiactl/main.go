// Command aiiactl is the operator CLI: schema migrations and account
// bootstrap without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"

	"github.com/aiiabox/aiiabox/internal/cache"
	"github.com/aiiabox/aiiabox/internal/migrate"
	"github.com/aiiabox/aiiabox/internal/model"
	"github.com/aiiabox/aiiabox/internal/repository"
	"github.com/aiiabox/aiiabox/internal/service"
)

// cliConfig is the subset of server configuration the CLI needs. Redis is
// optional; without it revoked tokens stay cached until their TTL expires.
type cliConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"warn"`
}

// migrator is the schema operations used by the migrate commands.
type migrator interface {
	Up() error
	Down(steps int) error
	Force(version int) error
	Version() (uint, bool, error)
	Close() error
}

// accounts is the account operations used by the user and token commands.
type accounts interface {
	CreateUser(ctx context.Context, input service.CreateUserInput) (*model.User, *service.IssuedToken, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	RotateToken(ctx context.Context, userID string) (*service.IssuedToken, error)
	RevokeToken(ctx context.Context, userID string) error
}

// app holds the backends a command run needs; tests swap the openers.
type app struct {
	out          io.Writer
	openMigrator func() (migrator, error)
	openAccounts func(ctx context.Context) (accounts, func(), error)
}

func main() {
	a := &app{out: os.Stdout}
	a.openMigrator = a.defaultMigrator
	a.openAccounts = a.defaultAccounts

	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "aiiactl",
		Short:         "Operate an aiiabox deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.out)

	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newUserCmd(a))
	root.AddCommand(newTokenCmd(a))
	return root
}

func loadConfig() (*cliConfig, error) {
	cfg := &cliConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func (a *app) defaultMigrator() (migrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return migrate.New(cfg.DatabaseURL, newLogger(cfg.LogLevel))
}

func (a *app) defaultAccounts(ctx context.Context) (accounts, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.LogLevel)

	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.WithMaxConns(2), repository.WithMinConns(0))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	closers := []func(){repo.Close}

	var invalidator service.TokenInvalidator
	if cfg.RedisURL != "" {
		c, err := cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, cached tokens expire on their own", "error", err)
		} else {
			invalidator = c
			closers = append(closers, func() { _ = c.Close() })
		}
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return service.NewAccountService(repo, invalidator, logger), closeAll, nil
}
