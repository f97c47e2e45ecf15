// Package explorer provides the catalog browser: the page shell, the live
// update stream and the database > schema > table drill-down.
package explorer

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pkshell/internal/fetch"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/ui/components"
	"github.com/leapstack-labs/pkshell/internal/ui/session"
	"github.com/starfederation/datastar-go/datastar"
)

// Handlers provides HTTP handlers for the explorer feature.
type Handlers struct {
	sessions   *session.Manager
	stylesheet string
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sessions *session.Manager, stylesheet string, logger *slog.Logger) *Handlers {
	return &Handlers{
		sessions:   sessions,
		stylesheet: stylesheet,
		logger:     logger,
	}
}

// Page renders the full shell. The database list is loaded before the first
// render so the page never flashes a loading state.
func (h *Handlers) Page(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if st := s.Nav.Databases(); st.Status != fetch.Success {
		if err := s.Nav.Run(r.Context(), s.Nav.Start()); err != nil {
			return
		}
	}

	page := components.Page(h.sessions.Translator(), s.Nav.View(), s.Pane.State(), h.stylesheet)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(r.Context(), w); err != nil {
		h.logger.Error("render page", "error", err)
	}
}

// Updates is the long-lived SSE endpoint of the page. It patches the
// sidebar and the table detail whenever the session's selection changes.
// Nothing is sent up front; Page already rendered the current state.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	release := s.Attach()
	defer release()

	sse := datastar.NewSSE(w, r)

	updates := s.Store.Subscribe()
	defer s.Store.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := sendView(sse, s.Nav); err != nil {
				_ = sse.ConsoleError(err)
				// Keep streaming; the next change may render fine.
			}
		}
	}
}

// ReloadSSE reloads the database list.
func (h *Handlers) ReloadSSE(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)
	h.run(sse, r, s.Nav, s.Nav.Start())
}

// SelectDatabaseSSE selects a database and streams the sidebar while its
// schemas load.
func (h *Handlers) SelectDatabaseSSE(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	name := pathParam(r, "name")
	sse := datastar.NewSSE(w, r)
	h.run(sse, r, s.Nav, s.Nav.SelectDatabase(name))
}

// ToggleSchemaSSE expands a schema, or collapses it when it is already
// expanded, and streams the sidebar while its tables load.
func (h *Handlers) ToggleSchemaSSE(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	name := pathParam(r, "name")
	sse := datastar.NewSSE(w, r)

	job, err := s.Nav.ToggleSchema(name)
	if err != nil {
		h.logger.Debug("toggle schema", "schema", name, "error", err)
		_ = sendView(sse, s.Nav)
		return
	}
	h.run(sse, r, s.Nav, job)
}

// FocusTableSSE shows the columns and indexes of a table of the expanded
// schema.
func (h *Handlers) FocusTableSSE(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sse := datastar.NewSSE(w, r)
	s.Nav.FocusTable(pathParam(r, "name"))
	if err := sendView(sse, s.Nav); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// run patches the loading state, runs job and patches the outcome.
func (h *Handlers) run(sse *datastar.ServerSentEventGenerator, r *http.Request, nav *navigator.Navigator, job navigator.Job) {
	if err := sendView(sse, nav); err != nil {
		_ = sse.ConsoleError(err)
		return
	}
	if job == nil {
		return
	}
	if err := nav.Run(r.Context(), job); err != nil {
		// Only a closed connection gets here; failures live in the view.
		h.logger.Debug("load cancelled", "resource", job.Resource(), "error", err)
		return
	}
	if err := sendView(sse, nav); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// sendView patches the sidebar and the table detail.
func sendView(sse *datastar.ServerSentEventGenerator, nav *navigator.Navigator) error {
	view := nav.View()
	if err := sse.PatchElementTempl(components.Sidebar(view)); err != nil {
		return err
	}
	return sse.PatchElementTempl(components.Detail(view.Detail))
}

// pathParam returns the unescaped URL parameter key.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
