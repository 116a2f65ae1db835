package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/aiiabox/aiiabox/internal/config"
	"github.com/aiiabox/aiiabox/internal/handler"
	"github.com/aiiabox/aiiabox/internal/metrics"
	"github.com/aiiabox/aiiabox/internal/middleware"
)

// avatarFormOverhead matches the multipart framing the profile handler
// allows on top of the avatar itself.
const avatarFormOverhead = 64 << 10

type routeHandlers struct {
	root        *handler.Handler
	health      *handler.HealthHandler
	tokens      *handler.TokenHandler
	admin       *handler.AdminHandler
	chats       *handler.ChatHandler
	messages    *handler.MessageHandler
	completions *handler.CompletionHandler
	profile     *handler.ProfileHandler
	projects    *handler.ProjectHandler
	prompts     *handler.PromptHandler
	// metrics is nil when METRICS_ENABLED is false.
	metrics http.Handler
}

// authBackend is what the auth and rate limit middleware need from Redis.
type authBackend interface {
	middleware.AuthCache
	middleware.RateLimiter
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routeHandlers,
	tokens middleware.TokenStore,
	backend authBackend,
	recorder metrics.Recorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics(recorder))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))

	r.Get("/healthz", h.health.Healthz)
	r.Get("/readyz", h.health.Readyz)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	authCfg := middleware.AuthConfig{
		Logger:  logger,
		Tokens:  tokens,
		Cache:   backend,
		Metrics: recorder,
	}
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       logger,
		Limiter:      backend,
		APIEnabled:   cfg.RateLimitAPIEnabled,
		LoginEnabled: cfg.RateLimitLoginEnabled,
		LoginRPS:     float64(cfg.RateLimitLoginRPS),
		LoginBurst:   cfg.RateLimitLoginBurst,
	}
	jsonBody := middleware.MaxBodySize(cfg.MaxRequestBodySize)

	r.Route("/api", func(r chi.Router) {
		r.Get("/", h.root.Root)

		// Credential exchange is the only unauthenticated API call.
		r.With(middleware.RateLimitLogin(rateLimitCfg), jsonBody).Post("/auth/token/", h.tokens.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.AuthProbe)
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			// Avatar uploads carry their own, larger body limit.
			r.With(middleware.MaxBodySize(cfg.MaxAvatarSize+avatarFormOverhead)).
				Put("/profile/avatar/", h.profile.UploadAvatar)

			r.Group(func(r chi.Router) {
				r.Use(jsonBody)

				r.Get("/auth/token/", h.tokens.Get)
				r.Delete("/auth/token/", h.tokens.Revoke)
				r.Post("/auth/token/rotate/", h.tokens.Rotate)

				r.Route("/chats", func(r chi.Router) {
					r.Get("/", h.chats.List)
					r.Post("/", h.chats.Create)
					r.Get("/{chatID}/", h.chats.Get)
					r.Patch("/{chatID}/", h.chats.Update)
					r.Delete("/{chatID}/", h.chats.Delete)

					r.Route("/{chatID}/messages", func(r chi.Router) {
						r.Get("/", h.messages.List)
						r.Post("/", h.messages.Create)
						r.Get("/{messageID}/", h.messages.Get)
						r.Patch("/{messageID}/", h.messages.Update)
						r.Delete("/{messageID}/", h.messages.Delete)
					})

					r.Post("/{chatID}/completions/", h.completions.Create)
					r.Get("/{chatID}/completions/{jobID}/", h.completions.Get)
				})

				r.Get("/profile/", h.profile.GetProfile)
				r.Patch("/profile/", h.profile.UpdateProfile)
				r.Delete("/profile/avatar/", h.profile.DeleteAvatar)
				r.Get("/settings/", h.profile.GetSettings)
				r.Patch("/settings/", h.profile.UpdateSettings)

				r.Route("/projects", func(r chi.Router) {
					r.Get("/", h.projects.List)
					r.Post("/", h.projects.Create)
					r.Get("/{projectID}/", h.projects.Get)
					r.Patch("/{projectID}/", h.projects.Update)
					r.Delete("/{projectID}/", h.projects.Delete)
				})

				r.Route("/prompts", func(r chi.Router) {
					r.Get("/", h.prompts.List)
					r.Post("/", h.prompts.Create)
					r.Get("/{promptID}/", h.prompts.Get)
					r.Patch("/{promptID}/", h.prompts.Update)
					r.Delete("/{promptID}/", h.prompts.Delete)
					r.Post("/{promptID}/render/", h.prompts.Render)
				})

				r.Route("/admin", func(r chi.Router) {
					r.Use(middleware.RequireStaff)
					r.Get("/tokens/", h.admin.ListTokens)
					r.Delete("/tokens/{userID}/", h.admin.RevokeToken)
					r.Post("/users/", h.admin.CreateUser)
				})
			})
		})
	})

	r.NotFound(h.root.NotFound)
	r.MethodNotAllowed(h.root.MethodNotAllowed)

	return r
}
