package propbooks

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	c "github.com/propbooks/propbooks-go/codec"
	gen "github.com/propbooks/propbooks-go/genstore"
	"github.com/propbooks/propbooks-go/internal/wire"
	pr "github.com/propbooks/propbooks-go/provider"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
	defaultEntryTTL     = 5 * time.Minute
	defaultPendingTTL   = 10 * time.Minute
)

type store[T any] struct {
	ns             string
	provider       pr.Provider
	codec          c.Codec[T]
	log            Logger
	hooks          Hooks
	enabled        bool
	defaultTTL     time.Duration
	pendingTTL     time.Duration
	sweepInterval  time.Duration
	genRetention   time.Duration
	computeSetCost SetCostFunc
	gen            gen.GenStore

	locks keyedLocks
}

func newStore[T any](opts Options[T]) (*store[T], error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("propbooks: provider is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("propbooks: codec is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("propbooks: namespace is required")
	}

	s := &store[T]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.defaultTTL = coalesce[time.Duration](opts.DefaultTTL, defaultEntryTTL)
	s.pendingTTL = coalesce[time.Duration](opts.PendingTTL, defaultPendingTTL)
	s.sweepInterval = coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
	s.genRetention = coalesce[time.Duration](opts.GenRetention, defaultGenRetention)

	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(_ string, raw []byte, _ bool, _ int) int64 { return int64(len(raw)) }
	}

	if opts.GenStore != nil {
		s.gen = opts.GenStore
	} else {
		// default to in-process generations with periodic cleanup
		s.gen = gen.NewLocal(s.sweepInterval, s.genRetention)
	}

	return s, nil
}

func (s *store[T]) Enabled() bool { return s.enabled }

func (s *store[T]) Close(ctx context.Context) error {
	// Close gen store first (best effort)
	if s.gen != nil {
		_ = s.gen.Close(ctx)
	}
	if s.provider != nil {
		return s.provider.Close(ctx)
	}
	return nil
}

func (s *store[T]) Get(ctx context.Context, key string) (Entry[T], bool, error) {
	var zero Entry[T]
	if !s.enabled {
		return zero, false, nil
	}
	k := s.entryKey(key)
	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	we, err := wire.Decode(raw)
	if err != nil {
		_ = s.provider.Del(ctx, k) // self-heal corrupt
		s.hooks.SelfHeal(k, "corrupt")
		return zero, false, nil
	}
	cur := s.snapshotGen(ctx)
	if we.Gen != cur && !we.Pending() {
		// entry written under an older generation; treat as a miss
		_ = s.provider.Del(ctx, k)
		s.hooks.SelfHeal(k, "gen_mismatch")
		return zero, false, nil
	}
	e, err := s.decodeEntry(we)
	if err != nil {
		_ = s.provider.Del(ctx, k) // self-heal
		s.hooks.SelfHeal(k, "record_decode")
		return zero, false, nil
	}
	if we.Gen != cur {
		// pending entries survive the bump until the refetch overwrites them
		e.Stale = true
		s.hooks.PendingServed(k, we.Gen, cur)
	}
	return e, true, nil
}

func (s *store[T]) SetWithGen(ctx context.Context, key string, e Entry[T], observedGen uint64, ttl time.Duration) error {
	if !s.enabled {
		return nil
	}
	if ttl == 0 {
		if e.Pending {
			ttl = s.pendingTTL
		} else {
			ttl = s.defaultTTL
		}
	}
	k := s.entryKey(key)
	if cur := s.snapshotGen(ctx); cur != observedGen {
		// generation moved; skip stale write
		s.log.Debug("SetWithGen skipped (gen mismatch)", Fields{"key": key, "obs": observedGen, "cur": cur})
		s.hooks.WriteSkipped(k, observedGen, cur)
		return nil
	}
	raw, err := s.encodeEntry(e, observedGen)
	if err != nil {
		return err
	}
	ok, err := s.provider.Set(ctx, k, raw, s.computeSetCost(k, raw, e.Pending, len(e.Records)), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("SetWithGen rejected by provider (pressure)", Fields{"key": key})
		s.hooks.ProviderSetRejected(k, e.Pending)
	}
	return nil
}

// Transform applies fn to the cached entry under key, holding a per-key lock
// so concurrent optimistic applies do not lose updates. The rewritten entry
// keeps the generation it was stored under. Returns false when there is no
// entry or fn reports no change. A key holds one shape for life; fn changing
// it fails with ErrShapeMismatch.
func (s *store[T]) Transform(ctx context.Context, key string, fn func(Entry[T]) (Entry[T], bool)) (bool, error) {
	if !s.enabled {
		return false, nil
	}
	k := s.entryKey(key)
	unlock := s.locks.lock(k)
	defer unlock()

	raw, ok, err := s.provider.Get(ctx, k)
	if err != nil || !ok {
		return false, err
	}
	we, err := wire.Decode(raw)
	if err != nil {
		_ = s.provider.Del(ctx, k)
		s.hooks.SelfHeal(k, "corrupt")
		return false, nil
	}
	e, err := s.decodeEntry(we)
	if err != nil {
		_ = s.provider.Del(ctx, k)
		s.hooks.SelfHeal(k, "record_decode")
		return false, nil
	}

	ne, changed := fn(e)
	if !changed {
		return false, nil
	}
	if ne.Shape != e.Shape {
		return false, ErrShapeMismatch
	}
	nraw, err := s.encodeEntry(ne, we.Gen)
	if err != nil {
		return false, err
	}
	ok, err = s.provider.Set(ctx, k, nraw, s.computeSetCost(k, nraw, ne.Pending, len(ne.Records)), s.pendingTTL)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Debug("Transform rejected by provider (pressure)", Fields{"key": key})
		s.hooks.ProviderSetRejected(k, ne.Pending)
		return false, nil
	}
	return true, nil
}

// Invalidate bumps the collection generation. Confirmed entries written under
// older generations read as misses afterwards; pending entries keep serving
// until a refetch overwrites them.
func (s *store[T]) Invalidate(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	g, err := s.gen.Bump(ctx, s.collKey())
	if err != nil {
		s.log.Error("gen bump error", Fields{"ns": s.ns, "err": err})
		s.hooks.GenError("bump", err)
		return err
	}
	s.hooks.Invalidated(s.ns, g)
	s.log.Debug("collection invalidated (bumped gen)", Fields{"ns": s.ns, "gen": g})
	return nil
}

func (s *store[T]) InvalidateKey(ctx context.Context, key string) error {
	if !s.enabled {
		return nil
	}
	k := s.entryKey(key)
	unlock := s.locks.lock(k)
	defer unlock()
	return s.provider.Del(ctx, k)
}

func (s *store[T]) SnapshotGen(ctx context.Context) uint64 {
	return s.snapshotGen(ctx)
}

// Begin captures the raw provider bytes of every key (nil marks an absent
// entry) plus the current generation. Rollback restores the captured bytes
// verbatim; Commit bumps the generation instead of touching entries.
func (s *store[T]) Begin(ctx context.Context, keys []string) (*Snapshot, error) {
	snap := &Snapshot{ns: s.ns, host: s, raws: make(map[string][]byte, len(keys))}
	if !s.enabled {
		snap.disabled = true
		return snap, nil
	}
	for _, key := range keys {
		k := s.entryKey(key)
		if _, seen := snap.raws[k]; seen {
			continue
		}
		raw, ok, err := s.provider.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			// providers may hand out shared buffers; the snapshot must not alias them
			snap.raws[k] = bytes.Clone(raw)
		} else {
			snap.raws[k] = nil
		}
	}
	snap.gen = s.snapshotGen(ctx)
	s.hooks.SnapshotTaken(s.ns, len(snap.raws))
	return snap, nil
}

// snapshot host

func (s *store[T]) commitSnapshot(ctx context.Context, _ *Snapshot) error {
	return s.Invalidate(ctx)
}

func (s *store[T]) rollbackSnapshot(ctx context.Context, sn *Snapshot) error {
	var failed []string
	var errs []error
	for k, raw := range sn.raws {
		var err error
		if raw == nil {
			err = s.removeRaw(ctx, k)
		} else {
			err = s.restoreRaw(ctx, k, raw)
		}
		if err != nil {
			failed = append(failed, k)
			errs = append(errs, err)
		}
	}
	s.hooks.RolledBack(s.ns, len(sn.raws), len(failed))
	s.log.Debug("mutation rolled back", Fields{"ns": s.ns, "keys": len(sn.raws), "failed": len(failed)})
	if len(errs) > 0 {
		return &RollbackError{Namespace: s.ns, Keys: failed, Errs: errs}
	}
	return nil
}

func (s *store[T]) restoreRaw(ctx context.Context, storageKey string, raw []byte) error {
	unlock := s.locks.lock(storageKey)
	defer unlock()
	ok, err := s.provider.Set(ctx, storageKey, raw, s.computeSetCost(storageKey, raw, false, 0), s.defaultTTL)
	if err != nil {
		return err
	}
	if !ok {
		// never leave optimistic bytes behind; degrade to a miss so the next read refetches
		s.log.Warn("rollback restore rejected by provider; dropping key", Fields{"key": storageKey})
		s.hooks.ProviderSetRejected(storageKey, false)
		return s.provider.Del(ctx, storageKey)
	}
	return nil
}

func (s *store[T]) removeRaw(ctx context.Context, storageKey string) error {
	unlock := s.locks.lock(storageKey)
	defer unlock()
	return s.provider.Del(ctx, storageKey)
}

// internals

func (s *store[T]) snapshotGen(ctx context.Context) uint64 {
	g, err := s.gen.Snapshot(ctx, s.collKey())
	if err != nil {
		// Conservative: treat as 0 so CAS writes will skip; reads will self-heal
		s.log.Warn("gen snapshot error", Fields{"ns": s.ns, "err": err})
		s.hooks.GenError("snapshot", err)
		return 0
	}
	return g
}

func (s *store[T]) entryKey(key string) string {
	// isolate by namespace
	return "entry:" + s.ns + ":" + key
}

func (s *store[T]) collKey() string {
	return "coll:" + s.ns
}

func (s *store[T]) encodeEntry(e Entry[T], g uint64) ([]byte, error) {
	recs := make([][]byte, 0, len(e.Records))
	for _, r := range e.Records {
		b, err := s.codec.Encode(r)
		if err != nil {
			return nil, err
		}
		recs = append(recs, b)
	}
	var flags byte
	if e.Pending {
		flags |= wire.FlagPending
	}
	we := wire.Entry{Shape: wire.Shape(e.Shape), Flags: flags, Gen: g, Records: recs}
	if e.Shape == ShapePage {
		total := e.Total
		if total < len(e.Records) {
			total = len(e.Records)
		}
		we.Count = uint64(total)
	}
	return wire.Encode(we)
}

func (s *store[T]) decodeEntry(we wire.Entry) (Entry[T], error) {
	e := Entry[T]{Shape: Shape(we.Shape), Pending: we.Pending()}
	e.Records = make([]T, 0, len(we.Records))
	for _, raw := range we.Records {
		v, err := s.codec.Decode(raw)
		if err != nil {
			return Entry[T]{}, err
		}
		e.Records = append(e.Records, v)
	}
	if we.Shape == wire.Page {
		e.Total = int(we.Count)
	} else {
		e.Total = len(e.Records)
	}
	return e, nil
}

// keyedLocks hands out one mutex per storage key. Entries are never removed;
// the map is bounded by the set of keys mutations touch.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *keyedLocks) lock(k string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	km, ok := l.m[k]
	if !ok {
		km = &sync.Mutex{}
		l.m[k] = km
	}
	l.mu.Unlock()
	km.Lock()
	return km.Unlock
}
