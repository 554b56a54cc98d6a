package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ironsheep/ui-locate-mcp/internal/layout"
)

// Memory is a process-local Store.
//
// Stored hierarchies are deep-copied on the way in and out, so a pipeline
// run that attaches semantics to elements never changes the cached artifact.
//
// Memory is safe for concurrent use by multiple goroutines.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger
}

// MemoryOption customizes a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// WithMaxEntries bounds the store. When full, the oldest entry is evicted.
// Zero means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) { m.maxEntries = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) MemoryOption {
	return func(m *Memory) { m.logger = l }
}

// NewMemory creates an empty store. A non-positive ttl means DefaultTTL.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the entry for hash, or a miss if it is absent or expired.
func (m *Memory) Get(_ context.Context, hash string) (*Entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[hash]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if e.Expired(m.now(), m.ttl) {
		m.logger.Debug("memory cache entry expired", zap.String("hash", hash))
		return nil, false
	}
	return &Entry{ImageHash: e.ImageHash, Hierarchy: e.Hierarchy.Clone(), CreatedAt: e.CreatedAt}, true
}

// Put stores a copy of h created now.
func (m *Memory) Put(_ context.Context, hash string, h *layout.Hierarchy) error {
	m.store(&Entry{ImageHash: hash, Hierarchy: h.Clone(), CreatedAt: m.now()})
	return nil
}

// store inserts e as-is, keeping its CreatedAt.
func (m *Memory) store(e *Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[e.ImageHash] = e
	for m.maxEntries > 0 && len(m.entries) > m.maxEntries {
		m.evictOldestLocked()
	}
}

func (m *Memory) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	for hash, e := range m.entries {
		if oldest == "" || e.CreatedAt.Before(oldestAt) ||
			(e.CreatedAt.Equal(oldestAt) && hash < oldest) {
			oldest, oldestAt = hash, e.CreatedAt
		}
	}
	delete(m.entries, oldest)
	m.logger.Debug("memory cache full, evicted oldest", zap.String("hash", oldest))
}

// Evict removes the entry for hash. Evicting an absent hash does nothing.
func (m *Memory) Evict(_ context.Context, hash string) error {
	m.mu.Lock()
	delete(m.entries, hash)
	m.mu.Unlock()
	return nil
}

// Clear removes every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]*Entry)
	m.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep deletes expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for hash, e := range m.entries {
		if e.Expired(now, m.ttl) {
			delete(m.entries, hash)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (m *Memory) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					m.logger.Debug("swept expired cache entries", zap.Int("removed", n))
				}
			}
		}
	}()
}
