// Package features provides shared test utilities for UI feature tests.
package features

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pkshell/internal/api"
	"github.com/leapstack-labs/pkshell/internal/devserver"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/testutil"
	"github.com/leapstack-labs/pkshell/internal/ui/session"
)

// TestFixture holds all dependencies needed for UI handler tests.
type TestFixture struct {
	Sessions *session.Manager
	Client   *api.Client
}

// SetupTestFixture serves a data directory holding shop.db (users and events
// in schema main) and builds a session manager against it.
func SetupTestFixture(t *testing.T) *TestFixture {
	t.Helper()

	dir := t.TempDir()
	seedShop(t, filepath.Join(dir, "shop.db"))

	driver, err := devserver.NewSQLiteDriver(dir, 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })

	srv := httptest.NewServer(devserver.NewServer(devserver.Config{Driver: driver}).Handler())
	t.Cleanup(srv.Close)

	client, err := api.New(api.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	return &TestFixture{
		Sessions: session.NewManager(session.Options{
			Catalog:         client,
			Executor:        client,
			Translator:      locale.Default(),
			Logger:          testutil.NewTestLogger(t),
			AttachSelection: true,
			Secret:          []byte("test-secret-key-32-bytes-long!!!"),
		}),
		Client: client,
	}
}

// NewSession starts a browser session and returns it with its cookies.
func (f *TestFixture) NewSession(t *testing.T) (*session.Session, []*http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	s, err := f.Sessions.Get(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return s, rec.Result().Cookies()
}

// WithCookies adds cookies to r.
func WithCookies(r *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

// RequestWithPathParam wraps a request with chi URL params.
func RequestWithPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func seedShop(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(context.Background(), `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email VARCHAR(80)
		);
		CREATE UNIQUE INDEX users_email_idx ON users (email);
		CREATE TABLE events (
			id INTEGER PRIMARY KEY,
			user_id INTEGER NOT NULL
		);
		INSERT INTO users (id, name, email) VALUES
			(1, 'ada', 'ada@example.com'),
			(2, 'grace', 'grace@example.com');
	`)
	require.NoError(t, err)
}
