package ports

import (
	"context"
	"time"
)

// ResolutionCache stores short-lived extraction artifacts keyed by
// string. Values are opaque bytes; callers own serialization. A miss and
// an expired entry both surface as domain.ErrCacheMiss.
type ResolutionCache interface {
	// Get retrieves a value, domain.ErrCacheMiss when absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with its own TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key; absent keys are not an error.
	Delete(ctx context.Context, key string) error
}
