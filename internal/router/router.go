package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"byd90-backend/internal/config"
	"byd90-backend/internal/handler"
	"byd90-backend/internal/middleware"
	"byd90-backend/internal/model"
)

type Handlers struct {
	Auth   *handler.AuthHandler
	User   *handler.UserHandler
	System *handler.SystemHandler
	Docs   *handler.DocsHandler
}

// Metrics is optional; a nil value disables request metrics and the /metrics route.
type Metrics interface {
	ObserveRequest(method, route string, status int, seconds float64)
	Handler() http.Handler
}

func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers, metrics Metrics) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.ProcessTime)
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/", h.System.Root)
	r.Get("/health", h.System.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	if h.Docs != nil {
		r.Get("/openapi.yaml", h.Docs.OpenAPI)
		r.Get("/docs", h.Docs.SwaggerUI)
	}

	requireActive := chi.Chain(authMiddleware.RequireAuth, authMiddleware.RequireActiveUser)
	requireAdmin := chi.Chain(authMiddleware.RequireAuth, authMiddleware.RequireActiveUser, authMiddleware.RequireUserTypes(model.UserTypeAdmin))

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/register", h.Auth.Register)
			auth.Post("/login", h.Auth.Login)
			auth.Post("/login/email", h.Auth.LoginEmail)
			auth.Post("/refresh", h.Auth.Refresh)
			auth.Post("/password-reset", h.Auth.RequestPasswordReset)
			auth.Post("/password-reset/confirm", h.Auth.ConfirmPasswordReset)
			auth.Post("/verify-email", h.Auth.VerifyEmail)
			auth.With(authMiddleware.RequireAuth).Post("/logout", h.Auth.Logout)
			auth.With(authMiddleware.RequireAuth).Post("/resend-verification", h.Auth.ResendVerification)
			auth.With(requireActive...).Get("/me", h.Auth.Me)
		})

		api.Route("/users", func(users chi.Router) {
			users.Get("/", handler.Placeholder("Users"))
			users.With(requireActive...).Patch("/me", h.User.UpdateMe)
			users.With(requireAdmin...).Get("/{id}", h.User.Get)
			users.With(requireAdmin...).Patch("/{id}/status", h.User.SetStatus)
		})

		api.Get("/athletes", handler.Placeholder("Athletes"))
		api.Get("/coaches", handler.Placeholder("Coaches"))
		api.Get("/recommendations", handler.Placeholder("Recommendations"))
		api.Get("/communities", handler.Placeholder("Communities"))
	})

	return r
}
