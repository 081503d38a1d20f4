package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/dshills/cphelper/internal/logging"
)

// MaxEntries is the number of files the cache remembers.
const MaxEntries = 100

// schemaVersion is bumped whenever the on-disk layout changes.
const schemaVersion = 1

var (
	// ErrCorrupt is returned by Open when the cache file cannot be decoded.
	ErrCorrupt = errors.New("cache file is corrupt")
	// ErrClosed is returned by operations on a Store after Close.
	ErrClosed = errors.New("cache is closed")
)

// Entry is the last input (and optionally the expected output) used for a file.
type Entry struct {
	Path      string    `json:"path"`
	Input     string    `json:"input"`
	Expected  *string   `json:"expected"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasExpected reports whether an expected output was recorded.
func (e Entry) HasExpected() bool {
	return e.Expected != nil
}

type fileFormat struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

type state int

const (
	stateLoaded state = iota + 1
	stateSaved
)

// Store holds the cache for one run. It is loaded by Open, mutated in
// memory, and written back by Close. A Store is not safe for concurrent use.
type Store struct {
	path     string
	entries  map[string]Entry
	capacity int
	state    state
	now      func() time.Time
}

// Open loads the cache file at path. A missing file yields an empty store;
// an unreadable or undecodable file yields ErrCorrupt.
func Open(path string) (*Store, error) {
	s := &Store{
		path:     path,
		entries:  make(map[string]Entry),
		capacity: MaxEntries,
		now:      time.Now,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Debug().Str("path", path).Msg("no cache file, starting empty")
			s.state = stateLoaded
			return s, nil
		}
		return nil, fmt.Errorf("reading cache file: %w", err)
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if ff.Version != schemaVersion {
		return nil, fmt.Errorf("%w: %s: unsupported version %d", ErrCorrupt, path, ff.Version)
	}
	for _, e := range ff.Entries {
		if e.Path == "" {
			return nil, fmt.Errorf("%w: %s: entry without path", ErrCorrupt, path)
		}
		s.entries[e.Path] = e
	}
	// A file written by hand or by an older build may hold too many entries.
	for len(s.entries) > s.capacity {
		s.evictOldest()
	}
	s.state = stateLoaded
	logging.Debug().Str("path", path).Int("entries", len(s.entries)).Msg("cache loaded")
	return s, nil
}

// Path returns the cache file location.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Lookup returns the entry for a file path.
func (s *Store) Lookup(path string) (Entry, bool) {
	if s.state != stateLoaded {
		return Entry{}, false
	}
	e, ok := s.entries[path]
	return e, ok
}

// Save records input and expected (nil when no diff was done) for path,
// stamped with the current time. Adding a new path to a full store evicts
// the oldest entry first.
func (s *Store) Save(path, input string, expected *string) error {
	if s.state != stateLoaded {
		return ErrClosed
	}
	if _, exists := s.entries[path]; !exists && len(s.entries) >= s.capacity {
		s.evictOldest()
	}
	var exp *string
	if expected != nil {
		v := *expected
		exp = &v
	}
	s.entries[path] = Entry{
		Path:      path,
		Input:     input,
		Expected:  exp,
		CreatedAt: s.now(),
	}
	return nil
}

// Remove drops the entry for path. It reports whether an entry existed.
func (s *Store) Remove(path string) (bool, error) {
	if s.state != stateLoaded {
		return false, ErrClosed
	}
	_, ok := s.entries[path]
	delete(s.entries, path)
	return ok, nil
}

// Entries returns all entries, newest first.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return older(out[j], out[i])
	})
	return out
}

// Close writes every entry back to the cache file, replacing it atomically.
// Only the first call writes; later calls return nil.
func (s *Store) Close() error {
	if s.state != stateLoaded {
		return nil
	}
	s.state = stateSaved

	entries := s.Entries()
	// Oldest first on disk so the file reads chronologically.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	data, err := json.MarshalIndent(fileFormat{Version: schemaVersion, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return err
	}
	logging.Debug().Str("path", s.path).Int("entries", len(entries)).Msg("cache saved")
	return nil
}

func (s *Store) evictOldest() {
	var victim *Entry
	for _, e := range s.entries {
		e := e
		if victim == nil || older(e, *victim) {
			victim = &e
		}
	}
	if victim == nil {
		return
	}
	delete(s.entries, victim.Path)
	logging.Debug().Str("path", victim.Path).Time("createdAt", victim.CreatedAt).Msg("cache entry evicted")
}

// older orders entries by timestamp, then by path.
func older(a, b Entry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Path < b.Path
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// Stats describes the cache file.
type Stats struct {
	Path       string    `json:"path"`
	Entries    int       `json:"entries"`
	Capacity   int       `json:"capacity"`
	TotalBytes int64     `json:"totalBytes"`
	Oldest     time.Time `json:"oldest,omitzero"`
	Newest     time.Time `json:"newest,omitzero"`
}

// GetStats returns information about the cache.
func (s *Store) GetStats() Stats {
	stats := Stats{Path: s.path, Entries: len(s.entries), Capacity: s.capacity}
	if info, err := os.Stat(s.path); err == nil {
		stats.TotalBytes = info.Size()
	}
	entries := s.Entries()
	if len(entries) > 0 {
		stats.Newest = entries[0].CreatedAt
		stats.Oldest = entries[len(entries)-1].CreatedAt
	}
	return stats
}

// Clear removes the cache file at path. A missing file is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

// DefaultPath returns the platform cache file location.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "cphelper", "cache.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "cphelper", "cache.json"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "cphelper", "cache.json"), nil
		}
		return filepath.Join(home, "AppData", "Local", "cphelper", "cache.json"), nil
	default:
		return filepath.Join(home, ".cache", "cphelper", "cache.json"), nil
	}
}
