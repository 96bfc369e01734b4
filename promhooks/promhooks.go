// Package promhooks exports store events as Prometheus counters. Storage keys
// are never used as label values; only bounded labels (reason, op, namespace)
// are exposed.
package promhooks

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/propbooks/propbooks-go"
)

type Hooks struct {
	selfHeals     *prometheus.CounterVec
	pendingServed prometheus.Counter
	writesSkipped prometheus.Counter
	setRejected   *prometheus.CounterVec
	genErrors     *prometheus.CounterVec
	snapshots     *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec
	rollbackFails *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

var _ propbooks.Hooks = (*Hooks)(nil)

func New(reg prometheus.Registerer) *Hooks {
	f := promauto.With(reg)
	return &Hooks{
		selfHeals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propbooks_self_heals_total",
			Help: "Entries dropped by the store on read, by reason.",
		}, []string{"reason"}),
		pendingServed: f.NewCounter(prometheus.CounterOpts{
			Name: "propbooks_pending_served_total",
			Help: "Stale pending entries served while a refetch was due.",
		}),
		writesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "propbooks_writes_skipped_total",
			Help: "SetWithGen calls skipped because the generation moved.",
		}),
		setRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propbooks_provider_set_rejected_total",
			Help: "Provider Set calls rejected under pressure.",
		}, []string{"pending"}),
		genErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propbooks_gen_errors_total",
			Help: "Generation store failures, by operation.",
		}, []string{"op"}),
		snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propbooks_snapshots_total",
			Help: "Mutation snapshots captured.",
		}, []string{"ns"}),
		rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propbooks_rollbacks_total",
			Help: "Mutations rolled back.",
		}, []string{"ns"}),
		rollbackFails: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propbooks_rollback_failed_keys_total",
			Help: "Entries a rollback could not restore (degraded to misses).",
		}, []string{"ns"}),
		invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propbooks_invalidations_total",
			Help: "Collection generation bumps (commits and explicit invalidates).",
		}, []string{"ns"}),
	}
}

func (h *Hooks) SelfHeal(_, reason string) { h.selfHeals.WithLabelValues(reason).Inc() }

func (h *Hooks) PendingServed(string, uint64, uint64) { h.pendingServed.Inc() }

func (h *Hooks) WriteSkipped(string, uint64, uint64) { h.writesSkipped.Inc() }

func (h *Hooks) ProviderSetRejected(_ string, pending bool) {
	h.setRejected.WithLabelValues(strconv.FormatBool(pending)).Inc()
}

func (h *Hooks) GenError(op string, _ error) { h.genErrors.WithLabelValues(op).Inc() }

func (h *Hooks) SnapshotTaken(ns string, _ int) { h.snapshots.WithLabelValues(ns).Inc() }

func (h *Hooks) RolledBack(ns string, _, failed int) {
	h.rollbacks.WithLabelValues(ns).Inc()
	if failed > 0 {
		h.rollbackFails.WithLabelValues(ns).Add(float64(failed))
	}
}

func (h *Hooks) Invalidated(ns string, _ uint64) { h.invalidations.WithLabelValues(ns).Inc() }
