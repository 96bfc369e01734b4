package propbooks

import (
	"context"
	"time"

	c "github.com/propbooks/propbooks-go/codec"
	gen "github.com/propbooks/propbooks-go/genstore"
	"github.com/propbooks/propbooks-go/internal/wire"
	pr "github.com/propbooks/propbooks-go/provider"
)

// Shape is how an entry's records are presented: a bare ordered list, or a
// page that also carries the collection total.
type Shape uint8

const (
	ShapeList Shape = Shape(wire.List)
	ShapePage Shape = Shape(wire.Page)
)

// Entry is one cached view: the records of a list or detail query in display
// order. Pending marks unconfirmed optimistic state; Stale is set on read
// when a pending entry has outlived its generation (a refetch is due).
type Entry[T any] struct {
	Shape   Shape
	Pending bool
	Stale   bool
	Total   int // collection total for ShapePage; len(Records) otherwise
	Records []T
}

// NewList builds a bare list entry.
func NewList[T any](records []T) Entry[T] {
	return Entry[T]{Shape: ShapeList, Total: len(records), Records: records}
}

// NewPage builds a paginated entry; total is the count across all pages.
func NewPage[T any](records []T, total int) Entry[T] {
	if total < len(records) {
		total = len(records)
	}
	return Entry[T]{Shape: ShapePage, Total: total, Records: records}
}

type SetCostFunc func(key string, raw []byte, pending bool, records int) int64

type ViewCache[T any] = Store[T] // just an alias -> propbooks.ViewCache[Invoice] or propbooks.Store[Invoice]

// Store is the high-level, provider-agnostic entry store for one collection
// namespace. T is the record type. Serialization is handled by a pluggable
// Codec[T]; staleness by a per-collection generation.
type Store[T any] interface {
	Enabled() bool
	Close(context.Context) error

	// Entries
	Get(ctx context.Context, key string) (Entry[T], bool, error)
	SetWithGen(ctx context.Context, key string, e Entry[T], observedGen uint64, ttl time.Duration) error
	Transform(ctx context.Context, key string, fn func(Entry[T]) (Entry[T], bool)) (bool, error)

	// Invalidation
	Invalidate(ctx context.Context) error                // bump the collection generation
	InvalidateKey(ctx context.Context, key string) error // drop a single entry

	// Mutation bracket
	SnapshotGen(ctx context.Context) uint64
	Begin(ctx context.Context, keys []string) (*Snapshot, error)
}

// Options tune the behavior of the generic store.
// Only Namespace, Provider and Codec are required; others have sensible defaults.
type Options[T any] struct {
	// Required
	Namespace string // logical collection namespace. e.g. "invoices", "tenants"
	Provider  pr.Provider
	Codec     c.Codec[T]

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	DefaultTTL      time.Duration // confirmed entries; 0 => 5m
	PendingTTL      time.Duration // optimistic entries; 0 => 10m (outlive slow confirmations)
	CleanupInterval time.Duration // 0 => 1h
	GenRetention    time.Duration // 0 => 30d
	Disabled        bool          // default false (enabled)
	ComputeSetCost  SetCostFunc   // default: len(raw)
	GenStore        gen.GenStore  // nil => genstore.Local (in-process)
}

func New[T any](opts Options[T]) (Store[T], error) {
	return newStore[T](opts)
}
