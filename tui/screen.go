// Package tui is the terminal screen hosting the local-store reset control.
package tui

import (
	"context"
	"sync"
	"time"

	"github.com/bcomnes/execsql/localstore"
)

// Stats is what the screen shows about the store.
type Stats struct {
	Name     string
	Path     string
	Exists   bool
	Records  int
	Err      error
	LoadedAt time.Time
}

// Screen holds the state shown on the page. Reload discards it and reads
// everything again, the way a page reload would.
type Screen struct {
	mgr  *localstore.Manager
	name string

	mu      sync.Mutex
	stats   Stats
	reloads int
}

// NewScreen creates a Screen for store name and loads it once.
func NewScreen(mgr *localstore.Manager, name string) *Screen {
	s := &Screen{mgr: mgr, name: name}
	s.stats = s.load(context.Background())
	return s
}

// Reload re-reads the store. It satisfies reset.Reloader.
func (s *Screen) Reload() {
	st := s.load(context.Background())
	s.mu.Lock()
	s.stats = st
	s.reloads++
	s.mu.Unlock()
}

// Stats returns the most recently loaded stats.
func (s *Screen) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Reloads returns how many times Reload ran.
func (s *Screen) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

// load never creates the store and holds it open only while counting, so the
// screen itself does not block a deletion.
func (s *Screen) load(ctx context.Context) Stats {
	st := Stats{Name: s.name, LoadedAt: time.Now()}
	path, err := s.mgr.Path(s.name)
	if err != nil {
		st.Err = err
		return st
	}
	st.Path = path

	exists, err := s.mgr.Exists(s.name)
	if err != nil {
		st.Err = err
		return st
	}
	if !exists {
		return st
	}
	st.Exists = true

	store, err := s.mgr.Open(ctx, s.name)
	if err != nil {
		st.Err = err
		return st
	}
	defer func() { _ = store.Close() }()

	st.Records, st.Err = store.Count(ctx)
	return st
}
