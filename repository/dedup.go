package repository

import "context"

// DedupCache remembers which external deliveries have already been processed.
// Push providers redeliver at least once; marking delivery ids here keeps the
// pipeline idempotent across redeliveries.
type DedupCache interface {
	// Seen marks the key and reports whether it had been marked before.
	Seen(ctx context.Context, key string) (bool, error)
}
