package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

// get runs Manager.Get for a request carrying cookies and returns the
// session with the cookies the response set.
func get(t *testing.T, m *Manager, cookies ...*http.Cookie) (*Session, []*http.Cookie) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s, err := m.Get(rec, req)
	require.NoError(t, err)
	return s, rec.Result().Cookies()
}

func TestManager_Get(t *testing.T) {
	m := NewManager(Options{Secret: testSecret})

	first, cookies := get(t, m)
	require.Len(t, cookies, 1)
	assert.Equal(t, cookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	again, set := get(t, m, cookies...)
	assert.Same(t, first, again)
	assert.Empty(t, set, "a known session does not rewrite its cookie")

	other, _ := get(t, m)
	assert.NotSame(t, first, other)
	assert.NotSame(t, first.Store, other.Store)
	assert.Equal(t, 2, m.Len())
}

func TestManager_Get_ForeignCookie(t *testing.T) {
	m := NewManager(Options{Secret: testSecret})
	_, cookies := get(t, m)

	// A cookie signed with another key starts a new session.
	other := NewManager(Options{})
	s, set := get(t, other, cookies...)
	assert.NotNil(t, s)
	assert.Len(t, set, 1)
}

func TestManager_SelectionIsPerSession(t *testing.T) {
	m := NewManager(Options{Secret: testSecret, AttachSelection: true})
	a, _ := get(t, m)
	b, _ := get(t, m)

	a.Store.SelectDatabase("shop")
	assert.Equal(t, "shop", a.Store.Current().Database)
	assert.Empty(t, b.Store.Current().Database)
}

func TestManager_Sweep(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(Options{Secret: testSecret, Idle: time.Minute})
	m.now = func() time.Time { return now }

	idle, _ := get(t, m)
	held, _ := get(t, m)
	release := held.Attach()

	now = now.Add(2 * time.Minute)
	fresh, _ := get(t, m)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 2, m.Len())

	m.mu.Lock()
	_, idleLive := m.byID[idle.ID]
	_, heldLive := m.byID[held.ID]
	_, freshLive := m.byID[fresh.ID]
	m.mu.Unlock()
	assert.False(t, idleLive)
	assert.True(t, heldLive)
	assert.True(t, freshLive)

	release()
}

func TestManager_SweepDisabled(t *testing.T) {
	m := NewManager(Options{Secret: testSecret})
	m.now = func() time.Time { return time.Unix(0, 0) }
	get(t, m)
	m.now = time.Now
	assert.Zero(t, m.Sweep())
	assert.Equal(t, 1, m.Len())
}
