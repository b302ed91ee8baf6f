package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/ports"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process resolution cache backed by a size-bounded
// expirable LRU. The LRU's own TTL acts as an upper bound; per-key TTLs
// shorter than that are enforced lazily on read.
type Memory struct {
	lru *expirable.LRU[string, memoryEntry]
}

// NewMemory creates a memory cache holding at most maxItems entries,
// none older than maxTTL.
func NewMemory(maxItems int, maxTTL time.Duration) *Memory {
	if maxItems <= 0 {
		maxItems = 2048
	}
	return &Memory{
		lru: expirable.NewLRU[string, memoryEntry](maxItems, nil, maxTTL),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if time.Now().After(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, domain.ErrCacheMiss
	}
	return entry.data, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Add(key, memoryEntry{data: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len reports how many entries are resident, for stats endpoints.
func (m *Memory) Len() int {
	return m.lru.Len()
}

var _ ports.ResolutionCache = (*Memory)(nil)
