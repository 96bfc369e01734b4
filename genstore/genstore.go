package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where collection generations live.
//
// The store keeps one generation per collection namespace and stamps it into
// every entry it writes. Invalidation bumps the generation instead of
// enumerating keys: entries written under an older generation read as misses
// and are refetched. Use Local (default) for in-process generations, or
// Redis when several processes share one view cache.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	// Cleanup prunes old metadata if applicable (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
