// Package exportcache caches rendered export documents so repeated downloads
// of the same view skip the data source and the renderer.
package exportcache

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

// DefaultTTL is how long a cached document stays valid.
const DefaultTTL = time.Minute

// Cache stores rendered documents by key.
type Cache interface {
	// Get returns the cached file. A miss is (File{}, false, nil).
	Get(ctx context.Context, key string) (exporter.File, bool, error)

	// Set stores f under key for ttl.
	Set(ctx context.Context, key string, f exporter.File, ttl time.Duration) error
}

// Key builds a cache key from a request path and the query parameters in
// params. Only the first value of each parameter counts, matching
// url.Values.Get, and unknown parameters are ignored so they cannot mint new
// entries. Parameters are sorted so equivalent requests share an entry.
func Key(path string, query url.Values, params []string) string {
	names := make([]string, 0, len(params))
	for _, p := range params {
		if query.Get(p) != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		return path
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(path)
	for i, name := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(query.Get(name)))
	}
	return b.String()
}

type memoryEntry struct {
	file      exporter.File
	expiresAt time.Time
}

// DefaultMaxEntries caps the in-memory cache.
const DefaultMaxEntries = 256

// Memory is an in-process Cache with per-entry expiry and a size cap. Expired
// entries are swept on every Set; when the cache is full the entry closest to
// expiry makes room.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

// NewMemory creates an empty in-memory cache holding up to DefaultMaxEntries
// documents.
func NewMemory() *Memory {
	return &Memory{
		entries:    make(map[string]memoryEntry),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
}

// SetClock overrides the clock used for expiry.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// SetMaxEntries changes the size cap. Non-positive values restore the default.
func (m *Memory) SetMaxEntries(n int) {
	if n <= 0 {
		n = DefaultMaxEntries
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxEntries = n
}

// Get returns a live entry. Expired entries are evicted.
func (m *Memory) Get(_ context.Context, key string) (exporter.File, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	now := m.now()
	m.mu.RUnlock()

	if !ok {
		return exporter.File{}, false, nil
	}
	if !now.Before(entry.expiresAt) {
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return exporter.File{}, false, nil
	}
	return entry.file, true, nil
}

// Set stores f. A non-positive ttl uses DefaultTTL.
func (m *Memory) Set(_ context.Context, key string, f exporter.File, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	if _, ok := m.entries[key]; !ok {
		for len(m.entries) >= m.maxEntries {
			m.evictSoonest()
		}
	}
	m.entries[key] = memoryEntry{file: f, expiresAt: now.Add(ttl)}
	return nil
}

func (m *Memory) evictSoonest() {
	var (
		victim  string
		soonest time.Time
		found   bool
	)
	for k, e := range m.entries {
		if !found || e.expiresAt.Before(soonest) {
			victim, soonest, found = k, e.expiresAt, true
		}
	}
	delete(m.entries, victim)
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Ensure Memory implements Cache.
var _ Cache = (*Memory)(nil)
