package propbooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Op names a mutation kind for errors, logs and hooks.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAction Op = "action"
)

const provisionalPrefix = "opt-"

// ProvisionalID returns a client-side id for a record that has not been
// confirmed yet. Provisional ids are stripped before the record is sent.
func ProvisionalID() string { return provisionalPrefix + uuid.NewString() }

// IsProvisional reports whether id was assigned by ProvisionalID.
func IsProvisional(id string) bool { return strings.HasPrefix(id, provisionalPrefix) }

// Schema tells the collection how to read and replace a record's identity.
// Methods cannot carry type parameters, so identity access is a function pair.
type Schema[T any] struct {
	ID     func(T) string
	WithID func(T, string) T
}

// Resource is the backend a collection reads from and mutates against.
type Resource[T any] interface {
	List(ctx context.Context, q Query) (records []T, total int, err error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, item T) (T, error)
	Delete(ctx context.Context, id string) error
}

type CollectionOptions[T any] struct {
	// Required
	Store  Store[T]
	Source Resource[T]
	Schema Schema[T]

	Logger Logger // if nil, NopLogger is used

	ListTTL time.Duration // 0 => store default
	ItemTTL time.Duration // 0 => store default

	// LocalPagination caches the full collection once and slices pages
	// locally instead of caching every page variant.
	LocalPagination bool

	// QueueMutations serializes mutations per record id: each waits for the
	// previous one to settle before capturing its snapshot. Without it, two
	// rapid mutations on one record race - the second applies on top of the
	// first's optimistic state, and a rollback of the first loses the base
	// the second was built on.
	QueueMutations bool

	RefreshLimit int // parallel refetches after a commit; 0 => 4
}

// Collection serves list and detail views of one record type from the store,
// falling back to the backend, and applies mutations optimistically: local
// apply first, confirm in the background, roll back on failure.
type Collection[T any] struct {
	store  Store[T]
	src    Resource[T]
	schema Schema[T]
	log    Logger

	listTTL time.Duration
	itemTTL time.Duration

	localPage    bool
	queue        bool
	refreshLimit int

	sf singleflight.Group

	mu    sync.Mutex
	known map[string]Query // storage key -> query, for snapshot and refresh

	qmu    sync.Mutex
	qlocks map[string]*sync.Mutex
}

func NewCollection[T any](opts CollectionOptions[T]) (*Collection[T], error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("propbooks: store is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("propbooks: source is required")
	}
	if opts.Schema.ID == nil || opts.Schema.WithID == nil {
		return nil, fmt.Errorf("propbooks: schema ID and WithID are required")
	}
	c := &Collection[T]{
		store:        opts.Store,
		src:          opts.Source,
		schema:       opts.Schema,
		listTTL:      opts.ListTTL,
		itemTTL:      opts.ItemTTL,
		localPage:    opts.LocalPagination,
		queue:        opts.QueueMutations,
		refreshLimit: coalesce[int](opts.RefreshLimit, 4),
		known:        make(map[string]Query),
	}
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	return c, nil
}

func itemKey(id string) string { return "id:" + id }

// List returns the entry for q, from cache when fresh, refetching otherwise.
// With LocalPagination, paged queries are sliced from one full-list entry.
func (c *Collection[T]) List(ctx context.Context, q Query) (Entry[T], error) {
	if c.localPage && q.Paged() {
		base := q.WithoutPage()
		key := base.Key()
		e, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return Entry[T]{}, err
		}
		if !ok {
			e, err = c.fetchList(ctx, key, base)
			if err != nil {
				return Entry[T]{}, err
			}
		}
		c.register(key, base)
		return Entry[T]{
			Shape:   ShapePage,
			Pending: e.Pending,
			Stale:   e.Stale,
			Total:   len(e.Records),
			Records: PageSlice(e.Records, q.Page, q.PageSize),
		}, nil
	}

	key := q.Key()
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return Entry[T]{}, err
	}
	if !ok {
		e, err = c.fetchList(ctx, key, q)
		if err != nil {
			return Entry[T]{}, err
		}
	}
	c.register(key, q)
	return e, nil
}

// Item returns one record by id. ok=false without error means the record is
// optimistically deleted and awaiting confirmation.
func (c *Collection[T]) Item(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if id == "" {
		return zero, false, fmt.Errorf("propbooks: empty id")
	}
	key := itemKey(id)
	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, false, err
	}
	if ok {
		if len(e.Records) == 0 {
			return zero, false, nil
		}
		return e.Records[0], true, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		obs := c.store.SnapshotGen(ctx)
		item, err := c.src.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		entry := NewList([]T{item})
		if err := c.store.SetWithGen(ctx, key, entry, obs, c.itemTTL); err != nil {
			c.log.Warn("item cache fill failed", Fields{"id": id, "err": err})
		}
		return item, nil
	})
	if err != nil {
		return zero, false, err
	}
	return v.(T), true, nil
}

// Create applies the new record optimistically to every cached view under a
// provisional id, then confirms with the backend. The returned handle settles
// once the backend answered and affected views refreshed.
func (c *Collection[T]) Create(ctx context.Context, item T) (*Pending[T], error) {
	if c.schema.ID(item) == "" {
		item = c.schema.WithID(item, ProvisionalID())
	}
	id := c.schema.ID(item)

	apply := func(e Entry[T]) (Entry[T], bool) {
		e.Records = append(e.Records, item)
		if e.Shape == ShapePage {
			e.Total++
		}
		e.Pending = true
		return e, true
	}
	send := func(ctx context.Context) (T, error) {
		out := item
		if IsProvisional(c.schema.ID(out)) {
			out = c.schema.WithID(out, "") // provisional ids never cross the wire
		}
		return c.src.Create(ctx, out)
	}
	return c.mutate(ctx, OpCreate, id, apply, send)
}

// Update replaces the record in every cached view, then confirms.
func (c *Collection[T]) Update(ctx context.Context, id string, item T) (*Pending[T], error) {
	if id == "" {
		return nil, fmt.Errorf("propbooks: empty id")
	}
	item = c.schema.WithID(item, id)

	apply := func(e Entry[T]) (Entry[T], bool) {
		changed := false
		for i, r := range e.Records {
			if c.schema.ID(r) == id {
				e.Records[i] = item
				changed = true
			}
		}
		if changed {
			e.Pending = true
		}
		return e, changed
	}
	send := func(ctx context.Context) (T, error) {
		return c.src.Update(ctx, id, item)
	}
	return c.mutate(ctx, OpUpdate, id, apply, send)
}

// Delete removes the record from every cached view, then confirms. If a view
// abnormally holds the id twice, only the first occurrence is removed.
func (c *Collection[T]) Delete(ctx context.Context, id string) (*Pending[T], error) {
	if id == "" {
		return nil, fmt.Errorf("propbooks: empty id")
	}

	apply := func(e Entry[T]) (Entry[T], bool) {
		for i, r := range e.Records {
			if c.schema.ID(r) == id {
				e.Records = append(e.Records[:i], e.Records[i+1:]...)
				if e.Shape == ShapePage && e.Total > 0 {
					e.Total--
				}
				e.Pending = true
				return e, true
			}
		}
		return e, false
	}
	send := func(ctx context.Context) (T, error) {
		var zero T
		return zero, c.src.Delete(ctx, id)
	}
	return c.mutate(ctx, OpDelete, id, apply, send)
}

// Mutate runs a custom action (mark sent, terminate, reconcile) with the same
// optimistic bracket as the CRUD verbs: apply is the local transform, send
// confirms with the backend and returns the authoritative record.
func (c *Collection[T]) Mutate(ctx context.Context, id string, apply func(Entry[T]) (Entry[T], bool), send func(context.Context) (T, error)) (*Pending[T], error) {
	if apply == nil || send == nil {
		return nil, fmt.Errorf("propbooks: apply and send are required")
	}
	return c.mutate(ctx, OpAction, id, apply, send)
}

// Invalidate marks every cached view of this collection for refetch.
func (c *Collection[T]) Invalidate(ctx context.Context) error {
	return c.store.Invalidate(ctx)
}

// internals

func (c *Collection[T]) fetchList(ctx context.Context, key string, q Query) (Entry[T], error) {
	v, err, _ := c.sf.Do(key, func() (any, error) {
		obs := c.store.SnapshotGen(ctx)
		recs, total, err := c.src.List(ctx, q)
		if err != nil {
			return nil, err
		}
		e := entryFor(q, recs, total)
		if err := c.store.SetWithGen(ctx, key, e, obs, c.listTTL); err != nil {
			c.log.Warn("list cache fill failed", Fields{"key": key, "err": err})
		}
		return e, nil
	})
	if err != nil {
		return Entry[T]{}, err
	}
	return v.(Entry[T]), nil
}

func entryFor[T any](q Query, recs []T, total int) Entry[T] {
	if q.Paged() {
		return NewPage(recs, total)
	}
	return NewList(recs)
}

func (c *Collection[T]) register(key string, q Query) {
	c.mu.Lock()
	c.known[key] = q
	c.mu.Unlock()
}

func (c *Collection[T]) knownKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.known))
	for k := range c.known {
		out = append(out, k)
	}
	return out
}

func (c *Collection[T]) snapshotQueries() map[string]Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Query, len(c.known))
	for k, q := range c.known {
		out[k] = q
	}
	return out
}

// affectedKeys is every view a mutation may touch: all registered list keys
// plus the record's own detail key. Provisional ids have no detail entry.
func (c *Collection[T]) affectedKeys(id string) []string {
	keys := c.knownKeys()
	if id != "" && !IsProvisional(id) {
		keys = append(keys, itemKey(id))
	}
	return keys
}

func (c *Collection[T]) mutate(ctx context.Context, op Op, id string, apply func(Entry[T]) (Entry[T], bool), send func(context.Context) (T, error)) (*Pending[T], error) {
	p := newPending[T]()

	if c.queue && id != "" && !IsProvisional(id) {
		// whole bracket deferred: snapshot and apply wait for the previous
		// mutation on this id to settle. Begin errors surface on the handle.
		bg := context.WithoutCancel(ctx)
		go c.withQueue(id, func() {
			keys := c.affectedKeys(id)
			snap, err := c.store.Begin(bg, keys)
			if err != nil {
				var zero T
				p.finish(zero, err)
				return
			}
			c.applyAll(bg, keys, apply)
			c.settle(bg, p, op, id, snap, send)
		})
		return p, nil
	}

	keys := c.affectedKeys(id)
	snap, err := c.store.Begin(ctx, keys)
	if err != nil {
		return nil, err
	}
	c.applyAll(ctx, keys, apply)
	go c.settle(context.WithoutCancel(ctx), p, op, id, snap, send)
	return p, nil
}

func (c *Collection[T]) applyAll(ctx context.Context, keys []string, apply func(Entry[T]) (Entry[T], bool)) int {
	n := 0
	for _, k := range keys {
		changed, err := c.store.Transform(ctx, k, apply)
		if err != nil {
			c.log.Warn("optimistic apply failed", Fields{"key": k, "err": err})
			continue
		}
		if changed {
			n++
		}
	}
	return n
}

func (c *Collection[T]) settle(ctx context.Context, p *Pending[T], op Op, id string, snap *Snapshot, send func(context.Context) (T, error)) {
	v, err := send(ctx)
	if err != nil {
		if rbErr := snap.Rollback(ctx); rbErr != nil {
			err = &MutationError{Op: op, ID: id, SendErr: err, RollbackErr: rbErr}
		}
		c.log.Warn("mutation failed; optimistic state rolled back", Fields{"op": string(op), "id": id, "err": err})
		var zero T
		p.finish(zero, err)
		return
	}
	if cErr := snap.Commit(ctx); cErr != nil {
		// pending entries are left to expire; reads refetch after the TTL
		c.log.Error("mutation commit failed", Fields{"op": string(op), "id": id, "err": cErr})
	}

	realID := id
	if op != OpDelete {
		if rid := c.schema.ID(v); rid != "" {
			realID = rid
		}
	}
	c.refresh(ctx, op, realID)
	p.finish(v, nil)
}

// refresh refetches every registered list view and settles the detail entry
// of the mutated record. Runs on the settle path so Pending.Wait observes
// refreshed views.
func (c *Collection[T]) refresh(ctx context.Context, op Op, id string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.refreshLimit)

	for key, q := range c.snapshotQueries() {
		key, q := key, q
		g.Go(func() error {
			c.refetchList(gctx, key, q)
			return nil
		})
	}

	switch op {
	case OpDelete:
		if err := c.store.InvalidateKey(ctx, itemKey(id)); err != nil {
			c.log.Warn("detail drop failed", Fields{"id": id, "err": err})
		}
	default:
		if id != "" && !IsProvisional(id) {
			g.Go(func() error {
				c.refetchItem(gctx, id)
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (c *Collection[T]) refetchList(ctx context.Context, key string, q Query) {
	obs := c.store.SnapshotGen(ctx)
	recs, total, err := c.src.List(ctx, q)
	if err != nil {
		c.log.Warn("list refresh failed", Fields{"key": key, "err": err})
		return
	}
	if err := c.store.SetWithGen(ctx, key, entryFor(q, recs, total), obs, c.listTTL); err != nil {
		c.log.Warn("list refresh store failed", Fields{"key": key, "err": err})
	}
}

func (c *Collection[T]) refetchItem(ctx context.Context, id string) {
	obs := c.store.SnapshotGen(ctx)
	item, err := c.src.Get(ctx, id)
	if err != nil {
		c.log.Warn("detail refresh failed", Fields{"id": id, "err": err})
		_ = c.store.InvalidateKey(ctx, itemKey(id))
		return
	}
	if err := c.store.SetWithGen(ctx, itemKey(id), NewList([]T{item}), obs, c.itemTTL); err != nil {
		c.log.Warn("detail refresh store failed", Fields{"id": id, "err": err})
	}
}

func (c *Collection[T]) withQueue(id string, run func()) {
	c.qmu.Lock()
	if c.qlocks == nil {
		c.qlocks = make(map[string]*sync.Mutex)
	}
	m, ok := c.qlocks[id]
	if !ok {
		m = &sync.Mutex{}
		c.qlocks[id] = m
	}
	c.qmu.Unlock()
	m.Lock()
	defer m.Unlock()
	run()
}

// Pending is the handle of an in-flight mutation. It settles after the
// backend answered, the cache committed or rolled back, and affected views
// refreshed.
type Pending[T any] struct {
	done chan struct{}
	mu   sync.Mutex
	val  T
	err  error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{done: make(chan struct{})}
}

// Done is closed once the mutation settled.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Err returns the settle error; nil before Done is closed.
func (p *Pending[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Wait blocks until the mutation settles or ctx is done, and returns the
// authoritative record from the backend (zero for deletes).
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Pending[T]) finish(v T, err error) {
	p.mu.Lock()
	p.val, p.err = v, err
	p.mu.Unlock()
	close(p.done)
}
