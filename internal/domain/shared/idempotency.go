package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys that have already been claimed.
// The sweep triggers use it as a run-guard so that only one worker instance
// executes a given sweep window.
type IdempotencyStore interface {
	// MarkProcessed claims a key with a TTL
	// Returns true if the key was newly claimed, false if it was already taken
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}
