// Package cache provides the resolution cache tiers: a shared redis
// store when configured, always backed by an in-process LRU. Redis
// trouble degrades the service to local caching instead of failing
// requests.
package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mediamux/streamgate/internal/domain"
	"github.com/mediamux/streamgate/internal/ports"
)

// Tiered reads through redis into memory. Every write lands in both
// tiers; any redis error is logged once per operation and served from
// memory, transparent to callers.
type Tiered struct {
	shared ports.ResolutionCache // nil when redis is not configured
	local  ports.ResolutionCache
}

// NewTiered wires the tiers. shared may be nil.
func NewTiered(shared, local ports.ResolutionCache) *Tiered {
	return &Tiered{shared: shared, local: local}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if t.shared != nil {
		data, err := t.shared.Get(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, domain.ErrCacheMiss) {
			log.Printf("[cache] shared tier get failed, using local: %v", err)
		}
	}
	return t.local.Get(ctx, key)
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if t.shared != nil {
		if err := t.shared.Set(ctx, key, value, ttl); err != nil {
			log.Printf("[cache] shared tier set failed: %v", err)
		}
	}
	return t.local.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	if t.shared != nil {
		if err := t.shared.Delete(ctx, key); err != nil {
			log.Printf("[cache] shared tier delete failed: %v", err)
		}
	}
	return t.local.Delete(ctx, key)
}

var _ ports.ResolutionCache = (*Tiered)(nil)
