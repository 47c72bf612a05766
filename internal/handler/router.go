package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/travel-concierge/internal/middleware"
	"github.com/capitalize-ai/travel-concierge/internal/service"
	"github.com/capitalize-ai/travel-concierge/internal/web"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
)

// RouterConfig holds what the HTTP surface needs.
type RouterConfig struct {
	Chat              *service.ChatService
	Events            ReadinessChecker
	Logger            *logger.Logger
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// NewRouter builds the API and UI routes.
func NewRouter(cfg RouterConfig) http.Handler {
	healthHandler := NewHealthHandler(cfg.Events)
	sessionHandler := NewSessionHandler(cfg.Chat.Store(), cfg.Logger)
	chatHandler := NewChatHandler(cfg.Chat, cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/languages", sessionHandler.Languages)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/", sessionHandler.List)

			r.Get("/active", sessionHandler.GetActive)
			r.Put("/active", sessionHandler.SetActive)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Post("/messages", chatHandler.Send)
				r.Post("/stream", chatHandler.Stream)
			})
		})
	})

	r.Handle("/*", web.Handler())

	return r
}
