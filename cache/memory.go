// Package cache provides caching implementations for authorization verdicts.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/retreathq/authz"
)

// Compile-time interface check.
var _ authz.Cache = (*Memory)(nil)

// Memory is an in-memory cache with TTL-based expiration.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	verdict   *authz.Verdict
	expiresAt time.Time
}

// MemoryOption configures the memory cache.
type MemoryOption func(*Memory)

// WithTTL sets the cache entry time-to-live.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) { m.ttl = ttl }
}

// WithMaxSize sets the maximum number of cache entries.
func WithMaxSize(n int) MemoryOption {
	return func(m *Memory) { m.maxSize = n }
}

// NewMemory creates a new in-memory cache.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		ttl:     5 * time.Minute,
		maxSize: 10000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a cached verdict.
func (m *Memory) Get(_ context.Context, q authz.Query) (*authz.Verdict, bool) {
	key := cacheKey(q)
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.verdict, true
}

// Set stores a verdict in the cache.
func (m *Memory) Set(_ context.Context, q authz.Query, v *authz.Verdict) {
	key := cacheKey(q)
	m.mu.Lock()
	defer m.mu.Unlock()

	// Evict if at capacity.
	if len(m.entries) >= m.maxSize {
		m.evictExpired()
		if len(m.entries) >= m.maxSize {
			// Evict one arbitrary entry.
			m.evictOne()
		}
	}

	m.entries[key] = &entry{
		verdict:   v,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// InvalidateUser removes all cached verdicts for a user.
func (m *Memory) InvalidateUser(_ context.Context, userID string) {
	prefix := userID + ":"
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.entries {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(m.entries, k)
		}
	}
}

func cacheKey(q authz.Query) string {
	return q.UserID + ":" + q.Permission + ":" + q.RetreatID
}

// evictExpired removes all expired entries. Must hold write lock.
func (m *Memory) evictExpired() {
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

// evictOne removes one arbitrary entry. Must hold write lock.
func (m *Memory) evictOne() {
	for k := range m.entries {
		delete(m.entries, k)
		return
	}
}
