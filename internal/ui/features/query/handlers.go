// Package query provides the query pane handlers for the UI.
package query

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/querypane"
	"github.com/leapstack-labs/pkshell/internal/ui/components"
	"github.com/leapstack-labs/pkshell/internal/ui/session"
	"github.com/starfederation/datastar-go/datastar"
)

// Signals represents the signals sent from the frontend.
type Signals struct {
	SQL string `json:"sql"`
}

// Handlers provides HTTP handlers for the query feature.
type Handlers struct {
	sessions *session.Manager
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sessions *session.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{sessions: sessions, logger: logger}
}

// ExecuteSSE runs the editor text through the session's query pane and
// patches the results.
func (h *Handlers) ExecuteSSE(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tr := h.sessions.Translator()

	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals Signals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Debug("read signals", "error", err)
		sse := datastar.NewSSE(w, r)
		_ = sse.PatchElementTempl(components.Results(tr, s.Pane.State(), tr.T(locale.BadRequest)))
		return
	}

	sse := datastar.NewSSE(w, r)

	text := strings.TrimSuffix(strings.TrimSpace(signals.SQL), ";")
	var notice string
	switch err := s.Pane.Run(r.Context(), text); {
	case errors.Is(err, querypane.ErrEmpty):
		notice = tr.T(locale.QueryEmpty)
	case errors.Is(err, querypane.ErrBusy):
		notice = tr.T(locale.QueryBusy)
	}

	if err := sse.PatchElementTempl(components.Results(tr, s.Pane.State(), notice)); err != nil {
		_ = sse.ConsoleError(err)
	}
}
