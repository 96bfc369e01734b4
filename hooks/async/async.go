// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/propbooks/propbooks-go"
//	"github.com/propbooks/propbooks-go/codec"
//	"github.com/propbooks/propbooks-go/genstore"
//	asynchook "github.com/propbooks/propbooks-go/hooks/async"
//	sloghook "github.com/propbooks/propbooks-go/sloghooks"
//
// )
//
//	raw := sloghook.New(slog.Default(), sloghook.Options{
//	    SelfHealEvery:      10, // sample logs: ~every 10th self-heal
//	    PendingServedEvery: 1,  // log every stale-pending serve
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	store, _ := propbooks.New[Invoice](propbooks.Options[Invoice]{
//	    Namespace: "invoices",
//	    Provider:  provider,
//	    Codec:     codec.JSON[Invoice]{},
//	    GenStore:  genstore.NewRedisWithTTL(rdb, "invoices", 24*time.Hour),
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"

	"github.com/propbooks/propbooks-go"
)

type Hooks struct {
	inner propbooks.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ propbooks.Hooks = (*Hooks)(nil)

func New(inner propbooks.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SelfHeal(k, r string)        { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) GenError(op string, e error) { h.try(func() { h.inner.GenError(op, e) }) }
func (h *Hooks) SnapshotTaken(ns string, n int) {
	h.try(func() { h.inner.SnapshotTaken(ns, n) })
}
func (h *Hooks) PendingServed(k string, eg, cg uint64) {
	h.try(func() { h.inner.PendingServed(k, eg, cg) })
}
func (h *Hooks) WriteSkipped(k string, o, c uint64) {
	h.try(func() { h.inner.WriteSkipped(k, o, c) })
}
func (h *Hooks) ProviderSetRejected(k string, p bool) {
	h.try(func() { h.inner.ProviderSetRejected(k, p) })
}
func (h *Hooks) RolledBack(ns string, keys, failed int) {
	h.try(func() { h.inner.RolledBack(ns, keys, failed) })
}
func (h *Hooks) Invalidated(ns string, gen uint64) {
	h.try(func() { h.inner.Invalidated(ns, gen) })
}
