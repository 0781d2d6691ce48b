package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLock is the single-process Locker. Expired entries are treated as free.
type MemoryLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		held:  make(map[string]time.Time),
		nowFn: time.Now,
	}
}

func (m *MemoryLock) Lock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	if exp, ok := m.held[key]; ok && now.Before(exp) {
		return false, nil
	}

	m.held[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryLock) Unlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.held, key)
	return nil
}

func (m *MemoryLock) Close() error {
	return nil
}
