// Package session stores the artifacts of report generation in per-session
// directories that are removed once their retention window passes.
package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/NERVsystems/osmsurvey/pkg/core"
)

const (
	DefaultMaxSessions = 1000
	DefaultRetention   = time.Hour
)

// Session is one generation run and the directory holding its files.
type Session struct {
	ID        string
	Dir       string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Options configures a Store.
type Options struct {
	MaxSessions int
	Retention   time.Duration
	Logger      *slog.Logger
	// OnCreate is called for each new session, before it is indexed.
	OnCreate func(*Session)
	// OnEvict is called after a session's directory has been removed. Every
	// session passed to OnCreate reaches OnEvict exactly once.
	OnEvict func(*Session)
}

// Store indexes sessions in an expiring LRU. Evicted sessions, whether by age
// or by capacity, have their directory deleted.
type Store struct {
	root      string
	retention time.Duration
	index     *expirable.LRU[string, *Session]
	logger    *slog.Logger
	onCreate  func(*Session)
	onEvict   func(*Session)
}

// NewStore creates root if needed and returns an empty store.
func NewStore(root string, opts Options) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Store{
		root:      root,
		retention: opts.Retention,
		logger:    opts.Logger.With("component", "session_store"),
		onCreate:  opts.OnCreate,
		onEvict:   opts.OnEvict,
	}
	s.index = expirable.NewLRU[string, *Session](opts.MaxSessions, s.evicted, opts.Retention)
	return s, nil
}

// evicted runs under the index lock and must not call back into the index.
func (s *Store) evicted(id string, sess *Session) {
	if err := os.RemoveAll(sess.Dir); err != nil {
		s.logger.Warn("failed to remove session directory", "session_id", id, "error", err)
	} else {
		s.logger.Debug("session removed", "session_id", id)
	}
	if s.onEvict != nil {
		s.onEvict(sess)
	}
}

// Root returns the directory sessions are created under.
func (s *Store) Root() string {
	return s.root
}

// Create allocates a new session id and directory.
func (s *Store) Create() (*Session, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	now := time.Now()
	sess := &Session{ID: id, Dir: dir, CreatedAt: now, ExpiresAt: now.Add(s.retention)}
	if s.onCreate != nil {
		s.onCreate(sess)
	}
	s.index.Add(id, sess)
	s.logger.Debug("session created", "session_id", id, "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Get returns a live session by id.
func (s *Store) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.NewValidationError(core.ErrInvalidSession, "Invalid session ID")
	}
	sess, ok := s.index.Get(id)
	if !ok {
		return nil, core.NewError(core.ErrNotFound, "Session not found").
			WithGuidance("Sessions expire after their retention window; generate the report again.")
	}
	return sess, nil
}

// Write stores data as name inside the session and returns the file path.
func (s *Store) Write(id, name string, data []byte) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if err := core.ValidateSessionFilename(name); err != nil {
		return "", err
	}
	path := filepath.Join(sess.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// Files lists the file names in a session, sorted.
func (s *Store) Files(id string) ([]string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(sess.Dir)
	if err != nil {
		return nil, fmt.Errorf("list session: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Path resolves an existing file inside a session.
func (s *Store) Path(id, name string) (string, error) {
	sess, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if err := core.ValidateSessionFilename(name); err != nil {
		return "", err
	}
	path := filepath.Join(sess.Dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", core.NewError(core.ErrNotFound, "File not found")
	}
	return path, nil
}

// Remove deletes a session and its directory.
func (s *Store) Remove(id string) bool {
	return s.index.Remove(id)
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	return s.index.Len()
}

// Purge removes every session.
func (s *Store) Purge() {
	s.index.Purge()
}
