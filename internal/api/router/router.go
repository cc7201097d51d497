// Package router assembles the management API's route tree.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/valarieck/waconcierge/internal/http/handlers"
	httpmiddleware "github.com/valarieck/waconcierge/internal/http/middleware"
)

// Config holds router configuration.
type Config struct {
	Gateway         *handlers.GatewayHandler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates a chi router with all routes configured. Read-only endpoints
// are public; everything that mutates state or pushes messages sits behind
// the admin JWT.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Group(func(public chi.Router) {
		public.Get("/health", cfg.Gateway.HealthCheck)
		public.Get("/status", cfg.Gateway.Status)
		public.Get("/ai/health", cfg.Gateway.AIHealth)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

		admin.Post("/messages/handle", cfg.Gateway.HandleMessage)
		admin.Get("/messages", cfg.Gateway.ListMessages)
		admin.Delete("/messages", cfg.Gateway.ClearMessages)
		admin.Post("/send", cfg.Gateway.SendMessage)
		admin.Post("/menu/start", cfg.Gateway.StartMenu)
		admin.Route("/sessions/{userID}", func(r chi.Router) {
			r.Get("/", cfg.Gateway.GetSession)
			r.Delete("/", cfg.Gateway.ClearSession)
		})
	})

	return r
}
