// Package ui provides the web front end of pkshell.
//
// It serves the same sidebar and query pane as the terminal shell, rendered
// with templ and kept live over datastar SSE. Each browser session owns its
// own selection.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/querypane"
	"github.com/leapstack-labs/pkshell/internal/ui/resources"
	"github.com/leapstack-labs/pkshell/internal/ui/router"
	"github.com/leapstack-labs/pkshell/internal/ui/session"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the UI server.
type Config struct {
	Catalog         navigator.Catalog
	Executor        querypane.Executor
	Translator      *locale.Translator
	Addr            string
	SessionSecret   string
	SessionIdle     time.Duration
	AttachSelection bool
	Logger          *slog.Logger
}

// Server is the web front end server.
type Server struct {
	addr     string
	idle     time.Duration
	sessions *session.Manager
	assets   *resources.Assets
	logger   *slog.Logger
}

// NewServer creates a new UI server instance. It fails when the stylesheet
// does not build.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	assets, err := resources.Build(true)
	if err != nil {
		return nil, fmt.Errorf("failed to build assets: %w", err)
	}

	sessions := session.NewManager(session.Options{
		Catalog:         cfg.Catalog,
		Executor:        cfg.Executor,
		Translator:      cfg.Translator,
		Logger:          logger,
		AttachSelection: cfg.AttachSelection,
		Secret:          []byte(cfg.SessionSecret),
		Idle:            cfg.SessionIdle,
	})

	return &Server{
		addr:     cfg.Addr,
		idle:     cfg.SessionIdle,
		sessions: sessions,
		assets:   assets,
		logger:   logger,
	}, nil
}

// Sessions returns the server's session manager.
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// Handler returns the HTTP routes.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	if err := router.SetupRoutes(r, s.sessions, s.assets, s.logger); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	handler, err := s.Handler()
	if err != nil {
		_ = ln.Close()
		return err
	}
	s.logger.Info("starting UI server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.idle > 0 {
		eg.Go(func() error {
			s.sweepSessions(egctx)
			return nil
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// sweepSessions drops idle sessions until ctx is done.
func (s *Server) sweepSessions(ctx context.Context) {
	ticker := time.NewTicker(s.idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sessions.Sweep()
		}
	}
}
