package propbooks

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The store calls them on hot paths.
type Hooks interface {
	// An entry was deleted by the store on read.
	// reason ∈ {"corrupt", "gen_mismatch", "record_decode"}
	SelfHeal(storageKey, reason string)

	// A pending entry outlived its generation and was served anyway
	// (optimistic state shown while the refetch is in flight).
	PendingServed(storageKey string, entryGen, currentGen uint64)

	// A SetWithGen was skipped because the generation moved under it.
	WriteSkipped(storageKey string, observed, current uint64)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string, pending bool)

	// GenStore errors. op ∈ {"snapshot", "bump"}
	GenError(op string, err error)

	// A mutation captured its pre-state. keys counts captured entries.
	SnapshotTaken(namespace string, keys int)

	// A mutation was rolled back; failed counts entries that could not be
	// restored (those degrade to misses).
	RolledBack(namespace string, keys, failed int)

	// The collection generation was bumped (commit or explicit invalidate).
	Invalidated(namespace string, gen uint64)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)               {}
func (NopHooks) PendingServed(string, uint64, uint64)  {}
func (NopHooks) WriteSkipped(string, uint64, uint64)   {}
func (NopHooks) ProviderSetRejected(string, bool)      {}
func (NopHooks) GenError(string, error)                {}
func (NopHooks) SnapshotTaken(string, int)             {}
func (NopHooks) RolledBack(string, int, int)           {}
func (NopHooks) Invalidated(string, uint64)            {}
