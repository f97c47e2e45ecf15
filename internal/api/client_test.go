package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pkshell/internal/testutil"
	"github.com/leapstack-labs/pkshell/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, r http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")

	c, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
}

func TestClient_Catalog(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/databases", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"data":["db1","db 2"]}`)
	})
	r.Get("/{db}/schemas", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "db 2", chi.URLParam(r, "db"))
		_, _ = io.WriteString(w, `[{"sch_id":1,"sch_name":"public","sch_db_id":2}]`)
	})
	r.Get("/{db}/{schema}/tables", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "db1", chi.URLParam(r, "db"))
		assert.Equal(t, "public", chi.URLParam(r, "schema"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		_, _ = io.WriteString(w, `[{"tab_id":1,"tab_name":"users","tab_columns":[],"tab_indexes":[]}]`)
	})
	c := newTestClient(t, r)
	ctx := context.Background()

	dbs, err := c.Databases(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"db1", "db 2"}, catalog.DatabaseNames(dbs))

	schemas, err := c.Schemas(ctx, "db 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"public"}, catalog.SchemaNames(schemas))

	tables, err := c.Tables(ctx, "db1", "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, catalog.TableNames(tables))
}

func TestClient_HTTPError(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/{db}/schemas", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"detail":"database not found"}`)
	})
	c := newTestClient(t, r)

	_, err := c.Schemas(context.Background(), "missing")
	require.Error(t, err)

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusNotFound, he.StatusCode)
	assert.Equal(t, "database not found", he.Detail)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Databases(context.Background())
	require.Error(t, err)
	var ne *NetworkError
	assert.True(t, errors.As(err, &ne))
}

func TestClient_DecodeError(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/databases", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"db_id": 1}]`)
	})
	c := newTestClient(t, r)

	_, err := c.Databases(context.Background())
	var de *catalog.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "databases", de.Resource)
}

func TestClient_Execute(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantCols []string
		wantRows int
	}{
		{
			name:     "tabular object",
			response: `{"columns":["n"],"rows":[[1],[2]],"duration_ms":3}`,
			wantCols: []string{"n"},
			wantRows: 2,
		},
		{
			name:     "array of objects",
			response: `[{"b":1,"a":"x"},{"a":"y"}]`,
			wantCols: []string{"a", "b"},
			wantRows: 2,
		},
		{
			name:     "opaque object",
			response: `{"status":"ok"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Post("/execute", func(w http.ResponseWriter, r *http.Request) {
				var req ExecuteRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "SELECT 1", req.Query)
				assert.Equal(t, "db1", req.Database)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				_, _ = io.WriteString(w, tt.response)
			})
			c := newTestClient(t, r)

			res, err := c.Execute(context.Background(), ExecuteRequest{Query: "SELECT 1", Database: "db1"})
			require.NoError(t, err)
			assert.NotEmpty(t, res.RequestID)
			assert.JSONEq(t, tt.response, string(res.Raw))
			assert.Equal(t, tt.wantCols, res.Columns)
			assert.Len(t, res.Rows, tt.wantRows)
			assert.Equal(t, tt.wantCols != nil, res.Tabular())
		})
	}
}

func TestClient_ExecuteServerError(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/execute", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	})
	c := newTestClient(t, r)

	_, err := c.Execute(context.Background(), ExecuteRequest{Query: "SELECT 1"})
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, 500, he.StatusCode)
	assert.Equal(t, "boom", he.Detail)
}

func TestResult_Records(t *testing.T) {
	res := &Result{Columns: []string{"a", "b"}, Rows: [][]any{{1, "x"}, {2}}}
	recs := res.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]any{"a": 1, "b": "x"}, recs[0])
	assert.Equal(t, map[string]any{"a": 2, "b": nil}, recs[1])

	assert.Nil(t, (&Result{}).Records())
}
