package propbooks

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	c "github.com/propbooks/propbooks-go/codec"
	"github.com/propbooks/propbooks-go/internal/wire"
)

type tenant struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

var tenantSchema = Schema[tenant]{
	ID:     func(t tenant) string { return t.ID },
	WithID: func(t tenant, id string) tenant { t.ID = id; return t },
}

// memProvider is a deterministic in-test byte store with failure injection.
type memProvider struct {
	mu     sync.Mutex
	m      map[string][]byte
	reject bool // Set returns ok=false
}

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reject {
		return false, nil
	}
	p.m[key] = append([]byte(nil), value...)
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.m[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

func (p *memProvider) put(key string, b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = append([]byte(nil), b...)
}

type recordHooks struct {
	mu     sync.Mutex
	events []string
}

func (h *recordHooks) add(e string) {
	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()
}

func (h *recordHooks) has(e string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, got := range h.events {
		if got == e {
			return true
		}
	}
	return false
}

func (h *recordHooks) SelfHeal(_, reason string)            { h.add("selfheal:" + reason) }
func (h *recordHooks) PendingServed(string, uint64, uint64) { h.add("pending_served") }
func (h *recordHooks) WriteSkipped(string, uint64, uint64)  { h.add("write_skipped") }
func (h *recordHooks) ProviderSetRejected(string, bool)     { h.add("set_rejected") }
func (h *recordHooks) GenError(op string, _ error)          { h.add("gen_error:" + op) }
func (h *recordHooks) SnapshotTaken(string, int)            { h.add("snapshot") }
func (h *recordHooks) RolledBack(string, int, int)          { h.add("rolled_back") }
func (h *recordHooks) Invalidated(string, uint64)           { h.add("invalidated") }

func newTestStore(t *testing.T, mut func(*Options[tenant])) (Store[tenant], *memProvider) {
	t.Helper()
	p := newMemProvider()
	o := Options[tenant]{Namespace: "tenants", Provider: p, Codec: c.JSON[tenant]{}}
	if mut != nil {
		mut(&o)
	}
	st, err := New[tenant](o)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st, p
}

func storageKey(key string) string { return "entry:tenants:" + key }

func TestSetWithGenRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, nil)

	in := NewList([]tenant{{ID: "t1", Email: "ana@x.com"}, {ID: "t2", Email: "bo@x.com"}})
	if err := st.SetWithGen(ctx, "k", in, st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}

	out, ok, err := st.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Shape != ShapeList || out.Pending || out.Stale {
		t.Fatalf("entry flags: %+v", out)
	}
	if out.Total != 2 || len(out.Records) != 2 || out.Records[1].Email != "bo@x.com" {
		t.Fatalf("records: %+v", out)
	}
}

func TestPageEntryKeepsTotal(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, nil)

	in := NewPage([]tenant{{ID: "t1"}}, 41)
	if err := st.SetWithGen(ctx, "p", in, st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	out, ok, err := st.Get(ctx, "p")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Shape != ShapePage || out.Total != 41 || len(out.Records) != 1 {
		t.Fatalf("page entry: %+v", out)
	}
}

func TestSetWithGenSkipsWhenGenMoved(t *testing.T) {
	ctx := context.Background()
	hooks := &recordHooks{}
	st, _ := newTestStore(t, func(o *Options[tenant]) { o.Hooks = hooks })

	obs := st.SnapshotGen(ctx)
	if err := st.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1"}}), obs, 0); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatal("stale write should have been skipped")
	}
	if !hooks.has("write_skipped") {
		t.Fatalf("missing write_skipped hook: %v", hooks.events)
	}
}

func TestInvalidateExpiresConfirmedEntries(t *testing.T) {
	ctx := context.Background()
	st, p := newTestStore(t, nil)

	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1"}}), st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	if err := st.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatal("confirmed entry should read as miss after invalidate")
	}
	// self-heal removed the stale bytes
	if _, ok := p.raw(storageKey("k")); ok {
		t.Fatal("stale entry not deleted")
	}
}

func TestPendingEntrySurvivesInvalidate(t *testing.T) {
	ctx := context.Background()
	hooks := &recordHooks{}
	st, _ := newTestStore(t, func(o *Options[tenant]) { o.Hooks = hooks })

	e := NewList([]tenant{{ID: "opt-1", Email: "new@x.com"}})
	e.Pending = true
	if err := st.SetWithGen(ctx, "k", e, st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	if err := st.Invalidate(ctx); err != nil {
		t.Fatal(err)
	}

	out, ok, err := st.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("pending entry dropped: ok=%v err=%v", ok, err)
	}
	if !out.Pending || !out.Stale {
		t.Fatalf("want pending+stale, got %+v", out)
	}
	if !hooks.has("pending_served") {
		t.Fatalf("missing pending_served hook: %v", hooks.events)
	}
}

func TestTransformPreservesGenAndAppends(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, nil)

	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1"}}), st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	changed, err := st.Transform(ctx, "k", func(e Entry[tenant]) (Entry[tenant], bool) {
		e.Records = append(e.Records, tenant{ID: "opt-2"})
		e.Pending = true
		return e, true
	})
	if err != nil || !changed {
		t.Fatalf("transform: changed=%v err=%v", changed, err)
	}

	out, ok, _ := st.Get(ctx, "k")
	if !ok || len(out.Records) != 2 || !out.Pending {
		t.Fatalf("after transform: ok=%v %+v", ok, out)
	}

	// refetch under the current gen replaces the pending entry
	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1"}, {ID: "srv-2"}}), st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	out, ok, _ = st.Get(ctx, "k")
	if !ok || out.Pending || out.Records[1].ID != "srv-2" {
		t.Fatalf("refetch not authoritative: %+v", out)
	}
}

func TestTransformRejectsShapeChange(t *testing.T) {
	ctx := context.Background()
	st, p := newTestStore(t, nil)

	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1"}}), st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	before, _ := p.raw(storageKey("k"))

	_, err := st.Transform(ctx, "k", func(e Entry[tenant]) (Entry[tenant], bool) {
		e.Shape = ShapePage
		return e, true
	})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("want ErrShapeMismatch, got %v", err)
	}
	after, _ := p.raw(storageKey("k"))
	if !bytes.Equal(before, after) {
		t.Fatal("rejected transform still rewrote the entry")
	}
}

func TestTransformMissingKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestStore(t, nil)

	changed, err := st.Transform(ctx, "nope", func(e Entry[tenant]) (Entry[tenant], bool) { return e, true })
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("transform of a missing key reported a change")
	}
}

func TestGetSelfHealsCorruptBytes(t *testing.T) {
	ctx := context.Background()
	hooks := &recordHooks{}
	st, p := newTestStore(t, func(o *Options[tenant]) { o.Hooks = hooks })

	p.put(storageKey("bad"), []byte("definitely not an envelope"))
	if _, ok, err := st.Get(ctx, "bad"); ok || err != nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
	if _, ok := p.raw(storageKey("bad")); ok {
		t.Fatal("corrupt entry not deleted")
	}
	if !hooks.has("selfheal:corrupt") {
		t.Fatalf("missing selfheal hook: %v", hooks.events)
	}
}

func TestGetSelfHealsUndecodableRecord(t *testing.T) {
	ctx := context.Background()
	hooks := &recordHooks{}
	st, p := newTestStore(t, func(o *Options[tenant]) { o.Hooks = hooks })

	raw, err := wire.Encode(wire.Entry{
		Shape:   wire.List,
		Gen:     st.SnapshotGen(ctx),
		Records: [][]byte{[]byte("{broken")},
	})
	if err != nil {
		t.Fatal(err)
	}
	p.put(storageKey("bad"), raw)

	if _, ok, _ := st.Get(ctx, "bad"); ok {
		t.Fatal("undecodable record served")
	}
	if !hooks.has("selfheal:record_decode") {
		t.Fatalf("missing selfheal hook: %v", hooks.events)
	}
}

func TestProviderRejectionIsNotAnError(t *testing.T) {
	ctx := context.Background()
	hooks := &recordHooks{}
	st, p := newTestStore(t, func(o *Options[tenant]) { o.Hooks = hooks })
	p.reject = true

	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1"}}), st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatal("rejected set should leave a miss")
	}
	if !hooks.has("set_rejected") {
		t.Fatalf("missing set_rejected hook: %v", hooks.events)
	}
}

func TestDisabledStoreNoops(t *testing.T) {
	ctx := context.Background()
	st, p := newTestStore(t, func(o *Options[tenant]) { o.Disabled = true })

	if st.Enabled() {
		t.Fatal("store should report disabled")
	}
	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1"}}), 0, 0); err != nil {
		t.Fatal(err)
	}
	if len(p.m) != 0 {
		t.Fatal("disabled store wrote to provider")
	}
	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatal("disabled store served an entry")
	}

	snap, err := st.Begin(ctx, []string{"k"})
	if err != nil {
		t.Fatal(err)
	}
	if err := snap.Commit(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New[tenant](Options[tenant]{Provider: newMemProvider(), Codec: c.JSON[tenant]{}}); err == nil {
		t.Fatal("missing namespace accepted")
	}
	if _, err := New[tenant](Options[tenant]{Namespace: "x", Codec: c.JSON[tenant]{}}); err == nil {
		t.Fatal("missing provider accepted")
	}
	if _, err := New[tenant](Options[tenant]{Namespace: "x", Provider: newMemProvider()}); err == nil {
		t.Fatal("missing codec accepted")
	}
}

func TestVerbatimBytesAcrossSetAndGet(t *testing.T) {
	ctx := context.Background()
	st, p := newTestStore(t, nil)

	if err := st.SetWithGen(ctx, "k", NewList([]tenant{{ID: "t1", Email: "ana@x.com"}}), st.SnapshotGen(ctx), 0); err != nil {
		t.Fatal(err)
	}
	before, ok := p.raw(storageKey("k"))
	if !ok {
		t.Fatal("entry missing")
	}
	if _, ok, _ := st.Get(ctx, "k"); !ok {
		t.Fatal("get miss")
	}
	after, _ := p.raw(storageKey("k"))
	if !bytes.Equal(before, after) {
		t.Fatal("read path rewrote stored bytes")
	}
}
