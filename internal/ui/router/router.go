// Package router sets up HTTP routes for the UI server.
package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	explorerFeature "github.com/leapstack-labs/pkshell/internal/ui/features/explorer"
	queryFeature "github.com/leapstack-labs/pkshell/internal/ui/features/query"
	"github.com/leapstack-labs/pkshell/internal/ui/resources"
	"github.com/leapstack-labs/pkshell/internal/ui/session"
)

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(
	router chi.Router,
	sessions *session.Manager,
	assets *resources.Assets,
	logger *slog.Logger,
) error {
	// Static assets
	router.Handle("/static/*", assets.Handler())

	// Feature routes
	if err := explorerFeature.SetupRoutes(router, sessions, assets.StylesheetURL(), logger); err != nil {
		return err
	}

	if err := queryFeature.SetupRoutes(router, sessions, logger); err != nil {
		return err
	}

	return nil
}
