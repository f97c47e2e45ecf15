package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// maxBodyBytes bounds the size of an /execute request.
const maxBodyBytes = 1 << 20

// Config holds configuration for the reference backend.
type Config struct {
	Driver         Driver
	Addr           string
	MaxConns       int
	Watch          bool
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server serves a Driver over HTTP.
type Server struct {
	driver         Driver
	addr           string
	maxConns       int
	watch          bool
	allowedOrigins []string
	logger         *slog.Logger
}

// NewServer creates a new backend server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		driver:         cfg.Driver,
		addr:           cfg.Addr,
		maxConns:       cfg.MaxConns,
		watch:          cfg.Watch,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
		s.cors,
	)

	r.Get("/databases", s.handleDatabases)
	r.Post("/execute", s.handleExecute)
	r.Get("/{database}/schemas", s.handleSchemas)
	r.Get("/{database}/{schema}/tables", s.handleTables)
	return r
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
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}
	s.logger.Info("starting backend", "addr", "http://"+ln.Addr().String(), "driver", s.driver.Name())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if rs, ok := s.driver.(Rescanner); ok && s.watch {
		if dr, ok := s.driver.(interface{ Dir() string }); ok {
			eg.Go(func() error {
				return watchDataDir(egctx, dr.Dir(), rs, s.logger)
			})
		}
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down backend...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	dbs, err := s.driver.Databases(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": dbs})
}

func (s *Server) handleSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.driver.Schemas(r.Context(), chi.URLParam(r, "database"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.driver.Tables(r.Context(), chi.URLParam(r, "database"), chi.URLParam(r, "schema"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if tables == nil {
		tables = []TableInfo{}
	}
	writeJSON(w, http.StatusOK, tables)
}

type executeBody struct {
	Query    string `json:"query"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var body executeBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(body.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "query is required"})
		return
	}

	res, err := s.driver.Execute(r.Context(), body.Database, body.Schema, body.Query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var qe *QueryError
	switch {
	case errors.Is(err, ErrDatabaseNotFound), errors.Is(err, ErrSchemaNotFound):
		status = http.StatusNotFound
	case errors.As(err, &qe):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs one line per request and echoes the request id.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", id,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// cors allows browser clients from the configured origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || !s.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin)
}
