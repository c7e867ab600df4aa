package server

import (
	"net/http"

	"github.com/cloo-solutions/ragdocs/internal/api/handlers"
	"github.com/cloo-solutions/ragdocs/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes int64 = 50 << 20

type RouterConfig struct {
	Logger       zerolog.Logger
	MaxBodyBytes int64

	HealthHandler       *handlers.HealthHandler
	DocumentHandler     *handlers.DocumentHandler
	SearchHandler       *handlers.SearchHandler
	ConversationHandler *handlers.ConversationHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/upload", cfg.DocumentHandler.Upload)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Put("/{id}", cfg.DocumentHandler.Update)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
		r.Get("/{id}/chunks", cfg.DocumentHandler.ListChunks)
		r.Get("/{id}/download", cfg.DocumentHandler.Download)
	})

	r.Delete("/chunks/{id}", cfg.DocumentHandler.DeleteChunk)
	r.Get("/jobs/{jobID}", cfg.DocumentHandler.GetJob)

	r.Post("/search", cfg.SearchHandler.Search)

	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", cfg.ConversationHandler.Create)
		r.Get("/{sessionID}", cfg.ConversationHandler.Get)
		r.Delete("/{sessionID}", cfg.ConversationHandler.Delete)
		r.Get("/{sessionID}/messages", cfg.ConversationHandler.History)
		r.Post("/{sessionID}/messages", cfg.ConversationHandler.AddMessage)
	})

	return r
}
