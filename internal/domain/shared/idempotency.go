package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers client submission keys so a retried request
// (double-clicked "Collect" button, flaky till network) is applied once.
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL.
	// Returns true if the key was newly recorded, false if it was already present.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether key has been recorded
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release forgets key so a submission that failed can be retried
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is how long a submission key is remembered. Default: 24 hours
	TTL time.Duration

	// Enabled turns key checking on. Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
