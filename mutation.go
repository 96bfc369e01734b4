package propbooks

import (
	"context"
	"sync/atomic"
)

type snapshotHost interface {
	commitSnapshot(ctx context.Context, sn *Snapshot) error
	rollbackSnapshot(ctx context.Context, sn *Snapshot) error
}

// Snapshot is the mutation bracket: the raw bytes of every affected entry,
// captured before optimistic state was applied, plus the generation observed
// at capture time. Exactly one of Commit or Rollback may be called.
type Snapshot struct {
	ns       string
	gen      uint64
	raws     map[string][]byte // storage key -> captured bytes; nil = entry was absent
	disabled bool
	used     atomic.Bool
	host     snapshotHost
}

// Gen is the collection generation observed when the snapshot was taken.
func (sn *Snapshot) Gen() uint64 { return sn.gen }

// Len is the number of entries captured (absent entries included).
func (sn *Snapshot) Len() int { return len(sn.raws) }

// Commit marks the mutation confirmed: the collection generation is bumped so
// every entry is due a refetch. Pending entries keep serving until then.
func (sn *Snapshot) Commit(ctx context.Context) error {
	if !sn.used.CompareAndSwap(false, true) {
		return ErrSnapshotUsed
	}
	if sn.disabled {
		return nil
	}
	return sn.host.commitSnapshot(ctx, sn)
}

// Rollback restores every captured entry byte-for-byte; entries that were
// absent at capture time are deleted. The generation is left untouched, so
// restored entries read back exactly as before the mutation.
func (sn *Snapshot) Rollback(ctx context.Context) error {
	if !sn.used.CompareAndSwap(false, true) {
		return ErrSnapshotUsed
	}
	if sn.disabled {
		return nil
	}
	return sn.host.rollbackSnapshot(ctx, sn)
}
