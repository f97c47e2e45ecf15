// Package selection holds the user's current database and schema choice.
//
// The Store is the single source of truth shared by the sidebar, the
// fetchers and the query pane. It is an explicit object passed by reference;
// there is no package-level instance.
package selection

import (
	"slices"
	"sync"

	"github.com/leapstack-labs/pkshell/internal/notifier"
)

// Selection is a snapshot of the store. An empty string means "none".
type Selection struct {
	Database string
	Schema   string
	// Tables holds the names of the tables of the selected schema, pushed by
	// the tables fetcher for autocompletion.
	Tables []string
}

// HasDatabase reports whether a database is selected.
func (s Selection) HasDatabase() bool { return s.Database != "" }

// HasSchema reports whether a schema is selected.
func (s Selection) HasSchema() bool { return s.Schema != "" }

// Store owns the current selection.
type Store struct {
	mu     sync.RWMutex
	cur    Selection
	notify *notifier.Notifier[Selection]
}

// NewStore creates a store with nothing selected.
func NewStore() *Store {
	return &Store{notify: notifier.New[Selection]()}
}

// SelectDatabase selects a database. The schema and the table list are
// always cleared, even when name is already selected: a schema only has
// meaning relative to the database it was chosen in.
func (s *Store) SelectDatabase(name string) {
	s.update(func(cur *Selection) {
		cur.Database = name
		cur.Schema = ""
		cur.Tables = nil
	})
}

// SelectSchema selects a schema within the current database and clears the
// table list. The database is left untouched.
func (s *Store) SelectSchema(name string) {
	s.update(func(cur *Selection) {
		cur.Schema = name
		cur.Tables = nil
	})
}

// SetTables records the table names of the selected schema.
func (s *Store) SetTables(names []string) {
	s.update(func(cur *Selection) {
		cur.Tables = slices.Clone(names)
	})
}

// Reset returns the store to its initial state.
func (s *Store) Reset() {
	s.update(func(cur *Selection) {
		*cur = Selection{}
	})
}

// Current returns a copy of the current selection.
func (s *Store) Current() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

// Subscribe returns a channel receiving a snapshot after every mutation.
// Slow subscribers only see the most recent snapshot.
func (s *Store) Subscribe() chan Selection {
	return s.notify.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it.
func (s *Store) Unsubscribe(ch chan Selection) {
	s.notify.Unsubscribe(ch)
}

func (s *Store) update(fn func(cur *Selection)) {
	s.mu.Lock()
	fn(&s.cur)
	snap := s.snapshot()
	s.mu.Unlock()

	s.notify.Broadcast(snap)
}

func (s *Store) snapshot() Selection {
	return Selection{
		Database: s.cur.Database,
		Schema:   s.cur.Schema,
		Tables:   slices.Clone(s.cur.Tables),
	}
}
