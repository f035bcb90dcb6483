package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"welcome-backend/internal/handlers"
	"welcome-backend/internal/middleware"
)

func New(
	welcomeHandler *handlers.WelcomeHandler,
	limiter *middleware.RateLimiter,
	corsOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger, welcomeHandler.ServerErrorMessage()))
	r.Use(middleware.CORS(corsOrigins))

	r.Route("/api", func(r chi.Router) {
		// The welcome route is limited inside the agent, after validation.
		r.Post("/welcome", welcomeHandler.Chat)

		r.With(limiter.Middleware).Post("/reset", welcomeHandler.Reset)

		r.Get("/health", welcomeHandler.Health)
		r.Get("/stats", welcomeHandler.Stats)
	})

	return r
}
