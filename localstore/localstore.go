// Package localstore manages named, SQLite-backed key/value stores kept on
// the local machine for offline data.
//
// Each store is a single database file plus a lock file. Open holds a shared
// lock on the lock file for as long as the Store is open; Delete needs the
// exclusive lock, so a store that is open in this or any other process
// cannot be deleted and reports ErrBlocked instead.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// EnvDir overrides the directory stores are kept in.
const EnvDir = "EXECSQL_STORE_DIR"

var (
	// ErrInvalidName is returned for names that cannot be used as a store.
	ErrInvalidName = errors.New("invalid store name")

	// ErrBlocked is returned by Delete while the store is open somewhere.
	ErrBlocked = errors.New("store is open elsewhere")

	// ErrDeleteFailed is returned when the store files could not be removed.
	ErrDeleteFailed = errors.New("store deletion failed")
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

const lockRetryDelay = 50 * time.Millisecond

// sidecar files SQLite may leave next to the database.
var sidecars = []string{"-wal", "-shm", "-journal"}

// DefaultDir returns $EXECSQL_STORE_DIR or the XDG data directory.
func DefaultDir() string {
	if explicit := os.Getenv(EnvDir); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "execsql", "stores")
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "execsql", "stores")
}

// Manager opens and deletes stores under one directory.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]int
}

// NewManager creates a Manager for dir. An empty dir uses DefaultDir.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if dir == "" {
		dir = DefaultDir()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		dir:    dir,
		logger: logger,
		open:   make(map[string]int),
	}
}

// Dir returns the directory stores live in.
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the database file for name.
func (m *Manager) Path(name string) (string, error) {
	if !nameRe.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(m.dir, name+".db"), nil
}

// Exists reports whether the store's database file is present.
func (m *Manager) Exists(name string) (bool, error) {
	path, err := m.Path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// OpenCount returns the number of handles this Manager has open for name.
func (m *Manager) OpenCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open[name]
}

// Open opens (creating if necessary) the store called name. It waits for a
// concurrent Delete to finish, bounded by ctx.
func (m *Manager) Open(ctx context.Context, name string) (*Store, error) {
	path, err := m.Path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	// Wait for the shared lock without holding m.mu.
	lock := flock.New(path + ".lock")
	ok, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock store %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to lock store %s", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = lock.Close()
		return nil, fmt.Errorf("failed to open store %s: %w", name, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = lock.Close()
		return nil, fmt.Errorf("failed to initialise store %s: %w", name, err)
	}

	m.open[name]++
	m.logger.Debug("store opened", "store", name, "path", path, "handles", m.open[name])
	return &Store{
		name: name,
		path: path,
		db:   db,
		lock: lock,
		mgr:  m,
	}, nil
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open[name] <= 1 {
		delete(m.open, name)
		return
	}
	m.open[name]--
}

// Delete removes the store called name. Deleting a store that does not exist
// succeeds. ErrBlocked is returned while any handle is open, in this process
// or another one; nothing is removed in that case.
func (m *Manager) Delete(ctx context.Context, name string) error {
	path, err := m.Path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if n := m.open[name]; n > 0 {
		m.logger.Info("store delete blocked", "store", name, "handles", n)
		return fmt.Errorf("%w: %d open handle(s) in this process", ErrBlocked, n)
	}

	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	if !ok {
		m.logger.Info("store delete blocked", "store", name, "reason", "locked by another process")
		return fmt.Errorf("%w: locked by another process", ErrBlocked)
	}
	defer func() { _ = lock.Close() }()

	// Keep the lock file; openers may be waiting on it.
	if err := removeFiles(path); err != nil {
		return err
	}
	m.logger.Info("store deleted", "store", name, "path", path)
	return nil
}

// removeFiles moves the database aside, clears the sidecar files and then
// the tombstone. If anything cannot be removed the tombstone is moved back,
// so a failed delete leaves the store in place.
func removeFiles(path string) error {
	tomb := path + ".deleting"
	if err := os.Rename(path, tomb); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
		}
		tomb = ""
	}

	var errs []error
	for _, p := range sidecarPaths(path) {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 && tomb != "" {
		if err := os.Remove(tomb); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}

	if tomb != "" {
		if err := os.Rename(tomb, path); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", path, err))
		}
	}
	return fmt.Errorf("%w: %w", ErrDeleteFailed, errors.Join(errs...))
}

func sidecarPaths(path string) []string {
	out := make([]string, 0, len(sidecars))
	for _, s := range sidecars {
		out = append(out, path+s)
	}
	return out
}
