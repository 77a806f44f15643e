package cache

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrCacheMiss indicates the key has no entry or only a stale one
	ErrCacheMiss = errors.New("cache miss")

	// ErrNilEntry indicates an attempt to store a nil entry
	ErrNilEntry = errors.New("cache entry cannot be nil")
)

// Store is the in-memory entry map shared by every route that opts into
// caching. Expiry is evaluated on read; nothing sweeps stale entries, so
// they stay resident until overwritten, invalidated or flushed.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// NewStore creates an empty store using now as its clock.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		entries: make(map[string]*Entry),
		now:     now,
	}
}

// Get returns the live entry for key.
// Returns ErrCacheMiss if the key is absent or its entry is stale.
func (s *Store) Get(key string) (*Entry, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || !entry.IsLive(s.now()) {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

// Set stores entry under entry.Key, replacing any previous entry.
func (s *Store) Set(entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}

	s.mu.Lock()
	s.entries[entry.Key] = entry
	n := len(s.entries)
	s.mu.Unlock()

	CacheEntries.Set(float64(n))
	return nil
}

// DeletePrefix removes every entry whose key starts with any of prefixes.
// Matching is a literal string-prefix test. Returns the number removed.
func (s *Store) DeletePrefix(prefixes ...string) int {
	if len(prefixes) == 0 {
		return 0
	}

	s.mu.Lock()
	removed := 0
	for key := range s.entries {
		if hasAnyPrefix(key, prefixes) {
			delete(s.entries, key)
			removed++
		}
	}
	n := len(s.entries)
	s.mu.Unlock()

	CacheEntries.Set(float64(n))
	return removed
}

// Flush removes all entries and returns how many there were.
func (s *Store) Flush() int {
	s.mu.Lock()
	removed := len(s.entries)
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()

	CacheEntries.Set(0)
	return removed
}

// Len returns the number of stored entries, including stale ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
