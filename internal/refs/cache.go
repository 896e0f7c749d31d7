package refs

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   Count
	expires time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, id string) (Count, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return Count{}, false, nil
	}
	if !m.now().Before(entry.expires) {
		delete(m.entries, id)
		return Count{}, false, nil
	}
	return entry.count, true, nil
}

func (m *MemoryCache) Set(_ context.Context, id string, c Count, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memoryEntry{count: c, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryCache) Invalidate(_ context.Context, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}
