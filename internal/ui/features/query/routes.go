package query

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pkshell/internal/ui/session"
)

// SetupRoutes registers the query feature routes.
func SetupRoutes(router chi.Router, sessions *session.Manager, logger *slog.Logger) error {
	handlers := NewHandlers(sessions, logger)

	router.Route("/api/query", func(r chi.Router) {
		r.Post("/execute", handlers.ExecuteSSE)
	})

	return nil
}
