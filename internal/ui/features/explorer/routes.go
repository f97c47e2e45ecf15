package explorer

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pkshell/internal/ui/session"
)

// SetupRoutes registers the explorer feature routes.
func SetupRoutes(router chi.Router, sessions *session.Manager, stylesheet string, logger *slog.Logger) error {
	handlers := NewHandlers(sessions, stylesheet, logger)

	router.Get("/", handlers.Page)
	router.Get("/updates", handlers.Updates)

	router.Route("/api/database", func(r chi.Router) {
		r.Get("/databases", handlers.ReloadSSE)                // Reload the database list
		r.Get("/databases/{name}", handlers.SelectDatabaseSSE) // Select a database
		r.Get("/schemas/{name}", handlers.ToggleSchemaSSE)     // Expand or collapse a schema
		r.Get("/tables/{name}", handlers.FocusTableSSE)        // Table columns and indexes
	})

	return nil
}
