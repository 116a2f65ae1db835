// Package main is the entrypoint for the aiiabox API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/aiiabox/aiiabox/internal/cache"
	"github.com/aiiabox/aiiabox/internal/completion"
	"github.com/aiiabox/aiiabox/internal/config"
	"github.com/aiiabox/aiiabox/internal/handler"
	"github.com/aiiabox/aiiabox/internal/llm"
	"github.com/aiiabox/aiiabox/internal/metrics"
	"github.com/aiiabox/aiiabox/internal/migrate"
	"github.com/aiiabox/aiiabox/internal/repository"
	"github.com/aiiabox/aiiabox/internal/server"
	"github.com/aiiabox/aiiabox/internal/service"
	"github.com/aiiabox/aiiabox/internal/storage"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if cfg.MigrateOnStart {
		if err := runMigrations(cfg, logger); err != nil {
			logger.Error("failed to migrate database", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL,
		repository.WithMaxConns(cfg.DBMaxConns),
		repository.WithMinConns(cfg.DBMinConns),
	)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL,
		cache.WithAuthTTL(cfg.AuthCacheTTL),
		cache.WithPoolSize(cfg.RedisPool),
	)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	var (
		recorder     metrics.Recorder = metrics.NewNoop()
		promRecorder *metrics.PrometheusRecorder
	)
	if cfg.MetricsEnabled {
		promRecorder = metrics.NewPrometheus()
		recorder = promRecorder
	}

	healthHandler := handler.NewHealthHandler(repo, cacheClient)

	// Interfaces stay nil when a backend is disabled.
	var avatars service.AvatarStore
	if cfg.Storage.Enabled {
		store, err := storage.New(storage.Config{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
			URLExpiry: cfg.Storage.URLExpiry,
		}, logger)
		if err != nil {
			logger.Error("failed to configure object storage", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Error("failed to prepare avatar bucket", "error", err, "bucket", cfg.Storage.Bucket)
			os.Exit(1)
		}
		avatars = store
		healthHandler = healthHandler.WithStorage(store)
		logger.Info("object storage enabled", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
	}

	var (
		publisher service.JobPublisher
		worker    *completion.Worker
	)
	if cfg.LLM.Enabled {
		publisher = completion.NewPublisher(cacheClient.Client(), logger)

		if cfg.Completion.WorkerEnabled {
			client := llm.NewClient(llm.Config{
				APIKey:  cfg.LLM.APIKey,
				BaseURL: cfg.LLM.BaseURL,
				Timeout: cfg.LLM.RequestTimeout,
			})
			runner := completion.NewRunner(repo, client, logger, completion.RunnerConfig{
				ContextMessages: cfg.LLM.ContextMessages,
				ContextTokens:   cfg.LLM.ContextTokens,
			})
			worker = completion.NewWorker(cacheClient.Client(), runner, logger, recorder, completion.WorkerConfig{
				BatchSize:    cfg.Completion.BatchSize,
				BlockTimeout: cfg.Completion.BlockTimeout,
				MaxRetries:   cfg.Completion.MaxRetries,
				RetryBackoff: cfg.Completion.RetryBackoff,
				ClaimIdle:    cfg.Completion.ClaimIdle,
			})
		}
		logger.Info("llm completions enabled", "worker", worker != nil)
	}

	accountService := service.NewAccountService(repo, cacheClient, logger)
	chatService := service.NewChatService(repo, recorder)
	messageService := service.NewMessageService(repo, recorder)
	completionService := service.NewCompletionService(repo, publisher, recorder, logger)
	profileService := service.NewProfileService(repo, avatars, cfg.MaxAvatarSize, logger)
	settingsService := service.NewSettingsService(repo)
	projectService := service.NewProjectService(repo)
	promptService := service.NewPromptService(repo)

	handlers := routeHandlers{
		root:        handler.New(cfg.BaseURL),
		health:      healthHandler,
		tokens:      handler.NewTokenHandler(accountService, logger),
		admin:       handler.NewAdminHandler(accountService, cfg.BaseURL, logger),
		chats:       handler.NewChatHandler(chatService, cfg.BaseURL, logger),
		messages:    handler.NewMessageHandler(messageService, cfg.BaseURL, logger),
		completions: handler.NewCompletionHandler(completionService, logger),
		profile:     handler.NewProfileHandler(profileService, settingsService, logger),
		projects:    handler.NewProjectHandler(projectService, cfg.BaseURL, logger),
		prompts:     handler.NewPromptHandler(promptService, cfg.BaseURL, logger),
	}
	if promRecorder != nil {
		handlers.metrics = promRecorder.Handler()
	}

	r := setupRouter(handlers, repo, cacheClient, recorder, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if worker != nil {
		srv.Background("completion-worker", worker.Run)
		srv.OnShutdown("completion-worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"metrics", cfg.MetricsEnabled,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	m, err := migrate.New(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

// initLogger builds the process logger. Production always logs JSON.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" || cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "aiiabox")
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces secrets in err's message with their redacted form.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
