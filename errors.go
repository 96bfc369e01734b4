package propbooks

import (
	"errors"
	"fmt"
)

// ErrSnapshotUsed is returned when Commit or Rollback is called on a snapshot
// that has already been settled.
var ErrSnapshotUsed = errors.New("propbooks: snapshot already committed or rolled back")

// ErrShapeMismatch is returned by Transform when the callback changes an
// entry's shape. A key is a list or a page for its whole lifetime.
var ErrShapeMismatch = errors.New("propbooks: entry shape changed during transform")

// MutationError reports a mutation whose backend send failed and whose cache
// rollback then failed as well. When the rollback succeeds the send error is
// returned alone.
type MutationError struct {
	Op          Op
	ID          string
	SendErr     error
	RollbackErr error
}

func (e *MutationError) Error() string {
	switch {
	case e.SendErr != nil && e.RollbackErr != nil:
		return fmt.Sprintf("mutation %s %q failed: send and rollback failed: send=%v; rollback=%v",
			e.Op, e.ID, e.SendErr, e.RollbackErr)
	case e.SendErr != nil:
		return fmt.Sprintf("mutation %s %q: send failed: %v", e.Op, e.ID, e.SendErr)
	case e.RollbackErr != nil:
		return fmt.Sprintf("mutation %s %q: rollback failed: %v", e.Op, e.ID, e.RollbackErr)
	default:
		return fmt.Sprintf("mutation %s %q: unknown error", e.Op, e.ID)
	}
}

func (e *MutationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.SendErr != nil {
		errs = append(errs, e.SendErr)
	}
	if e.RollbackErr != nil {
		errs = append(errs, e.RollbackErr)
	}
	return errs
}

// RollbackError reports the entries a rollback could not restore. The cache
// degrades those keys to misses, so subsequent reads refetch.
type RollbackError struct {
	Namespace string
	Keys      []string
	Errs      []error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback in %q failed for %d of its keys: %v", e.Namespace, len(e.Keys), errors.Join(e.Errs...))
}

func (e *RollbackError) Unwrap() []error { return e.Errs }
