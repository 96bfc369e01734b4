package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/propbooks/propbooks-go"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery      uint64
	PendingServedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	pendingCtr  atomic.Uint64
}

var _ propbooks.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("propbooks.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) PendingServed(storageKey string, entryGen, currentGen uint64) {
	if h.l == nil || !sample(h.opts.PendingServedEvery, &h.pendingCtr) {
		return
	}
	h.l.Debug("propbooks.pending_served",
		"key", h.redact(storageKey),
		"entry_gen", entryGen,
		"current_gen", currentGen)
}

func (h *Hooks) WriteSkipped(storageKey string, observed, current uint64) {
	if h.l == nil {
		return
	}
	h.l.Debug("propbooks.write_skipped",
		"key", h.redact(storageKey),
		"observed", observed,
		"current", current)
}

func (h *Hooks) ProviderSetRejected(storageKey string, pending bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("propbooks.provider_set_rejected",
		"key", h.redact(storageKey),
		"pending", pending)
}

func (h *Hooks) GenError(op string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("propbooks.gen_error",
		"op", op,
		"err", err)
}

func (h *Hooks) SnapshotTaken(namespace string, keys int) {
	if h.l == nil {
		return
	}
	h.l.Debug("propbooks.snapshot_taken",
		"ns", namespace,
		"keys", keys)
}

func (h *Hooks) RolledBack(namespace string, keys, failed int) {
	if h.l == nil {
		return
	}
	if failed > 0 {
		h.l.Error("propbooks.rolled_back",
			"ns", namespace,
			"keys", keys,
			"failed", failed)
		return
	}
	h.l.Info("propbooks.rolled_back",
		"ns", namespace,
		"keys", keys)
}

func (h *Hooks) Invalidated(namespace string, gen uint64) {
	if h.l == nil {
		return
	}
	h.l.Debug("propbooks.invalidated",
		"ns", namespace,
		"gen", gen)
}
