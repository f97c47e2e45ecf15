// Package session keys shell state to browser sessions.
//
// Every browser gets its own selection store, navigator and query pane, so
// two tabs in different browsers never see each other's selection. The
// cookie only carries an opaque id; the state itself lives in memory.
package session

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/pkshell/internal/locale"
	"github.com/leapstack-labs/pkshell/internal/navigator"
	"github.com/leapstack-labs/pkshell/internal/querypane"
	"github.com/leapstack-labs/pkshell/internal/selection"
)

const (
	cookieName = "pkshell"
	idKey      = "sid"
)

// Session is the shell state of one browser.
type Session struct {
	ID    string
	Store *selection.Store
	Nav   *navigator.Navigator
	Pane  *querypane.Pane

	mu      sync.Mutex
	seen    time.Time
	streams int
}

// Attach marks the session as held by an open update stream. Held sessions
// are never swept. Call the returned func when the stream ends.
func (s *Session) Attach() (release func()) {
	s.mu.Lock()
	s.streams++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.streams--
		s.seen = time.Now()
		s.mu.Unlock()
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.seen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streams > 0 {
		return 0
	}
	return now.Sub(s.seen)
}

// Options configures a Manager.
type Options struct {
	Catalog    navigator.Catalog
	Executor   querypane.Executor
	Translator *locale.Translator
	Logger     *slog.Logger
	// AttachSelection sends the session's database and schema with every
	// query.
	AttachSelection bool
	// Secret signs the cookie. Empty generates a random key.
	Secret []byte
	// Idle is how long an unused session is kept. Zero keeps sessions
	// forever.
	Idle time.Duration
}

// Manager hands out sessions by cookie.
type Manager struct {
	opts    Options
	cookies *sessions.CookieStore
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	byID map[string]*Session
}

// NewManager creates a Manager with no sessions.
func NewManager(opts Options) *Manager {
	secret := opts.Secret
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	cookies := sessions.NewCookieStore(secret)
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode
	if opts.Idle > 0 {
		cookies.MaxAge(int(opts.Idle.Seconds()))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Translator == nil {
		opts.Translator = locale.Default()
	}

	return &Manager{
		opts:    opts,
		cookies: cookies,
		logger:  logger,
		now:     time.Now,
		byID:    make(map[string]*Session),
	}
}

// Get returns the session of r, starting a new one when the browser has none
// or its session was swept. A new session sets its cookie on w, so Get must
// run before anything is written.
func (m *Manager) Get(w http.ResponseWriter, r *http.Request) (*Session, error) {
	// A cookie that fails to decode yields a fresh session, which is what we
	// want after a key rotation.
	cs, _ := m.cookies.Get(r, cookieName)
	id, _ := cs.Values[idKey].(string)
	now := m.now()

	m.mu.Lock()
	if s, ok := m.byID[id]; ok {
		m.mu.Unlock()
		s.touch(now)
		return s, nil
	}
	s := m.newSession(now)
	m.byID[s.ID] = s
	m.mu.Unlock()

	cs.Values[idKey] = s.ID
	if err := cs.Save(r, w); err != nil {
		m.mu.Lock()
		delete(m.byID, s.ID)
		m.mu.Unlock()
		return nil, err
	}
	m.logger.Debug("session started", "session", s.ID)
	return s, nil
}

func (m *Manager) newSession(now time.Time) *Session {
	store := selection.NewStore()
	paneOpts := querypane.Options{
		Executor:   m.opts.Executor,
		Translator: m.opts.Translator,
		Logger:     m.logger,
	}
	if m.opts.AttachSelection {
		paneOpts.Target = func() (string, string) {
			cur := store.Current()
			return cur.Database, cur.Schema
		}
	}
	return &Session{
		ID:    uuid.NewString(),
		Store: store,
		Nav: navigator.New(navigator.Options{
			Store:      store,
			Catalog:    m.opts.Catalog,
			Translator: m.opts.Translator,
			Logger:     m.logger,
		}),
		Pane: querypane.New(paneOpts),
		seen: now,
	}
}

// Translator returns the translator sessions render with.
func (m *Manager) Translator() *locale.Translator {
	return m.opts.Translator
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// Sweep drops sessions idle for longer than the configured limit and
// returns how many were dropped.
func (m *Manager) Sweep() int {
	if m.opts.Idle <= 0 {
		return 0
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.byID {
		if s.idleSince(now) > m.opts.Idle {
			delete(m.byID, id)
			n++
		}
	}
	if n > 0 {
		m.logger.Debug("sessions expired", "count", n, "live", len(m.byID))
	}
	return n
}
