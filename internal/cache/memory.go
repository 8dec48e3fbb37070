package cache

import (
	"context"
	"sync"
	"time"
)

// defaultSweepInterval is how often the janitor scans for expired entries.
const defaultSweepInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Cache backed by a guarded map. A background
// janitor evicts expired entries so the map does not grow unboundedly
// between reads.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	janitorStop chan struct{}
	janitorDone chan struct{}
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		entries:     make(map[string]entry),
		janitorStop: make(chan struct{}),
		janitorDone: make(chan struct{}),
	}
	go m.janitor(defaultSweepInterval)
	return m
}

// Get returns the value stored under key, or ErrMiss if absent or expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, ErrMiss
	}
	return e.value, nil
}

// Set stores value under key for the given TTL. A non-positive TTL is a no-op.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Close stops the janitor and waits for it to exit.
func (m *Memory) Close() error {
	close(m.janitorStop)
	<-m.janitorDone
	return nil
}

func (m *Memory) janitor(interval time.Duration) {
	defer close(m.janitorDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.janitorStop:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for k, e := range m.entries {
				if now.After(e.expiresAt) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
