// Package propbooks implements the client-side data layer for the PropBooks
// property accounting API: a provider-agnostic view cache with optimistic
// mutations, byte-for-byte rollback, and generation-based invalidation.
//
// Components:
//   - Provider: byte store with TTL (e.g. Memory, Ristretto, BigCache, Redis).
//   - Codec[T]: (de)serializes T <-> []byte per record.
//   - GenStore: one generation counter per collection. Local (in-process) by
//     default, optional Redis implementation for multi-process clients.
//   - Store[T]: namespaced entry store. Entries hold ordered record lists
//     (bare or paginated) stamped with the collection generation.
//   - Collection[T]: list/detail reads plus optimistic create, update and
//     delete against a backend Resource[T].
//
// Keys:
//
//	entry:<ns>:q:<hash>  - query results (hash over the canonical query)
//	entry:<ns>:id:<id>   - single-record detail views
//	coll:<ns>            - the collection generation (GenStore)
//
// Mutation bracket:
//
//	snap, _ := store.Begin(ctx, keys)       // capture raw bytes + generation
//	store.Transform(ctx, key, apply)        // write optimistic state, pending
//	err := send(ctx)                        // confirm with the backend
//	if err != nil { snap.Rollback(ctx) }    // restore captured bytes verbatim
//	else          { snap.Commit(ctx) }      // bump generation; refetch heals
//
// Optimistic placement is approximate: a created record is appended to every
// cached view whether or not it matches the view's filter. The post-commit
// refetch is authoritative and replaces optimistic ordering and totals.
package propbooks
