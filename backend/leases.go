package backend

import (
	"context"

	propbooks "github.com/propbooks/propbooks-go"
)

// LeaseService is the /leases/ resource.
type LeaseService struct {
	crud[Lease]
}

var _ propbooks.Resource[Lease] = (*LeaseService)(nil)

// TerminateLeaseParams ends a lease early. Date defaults server-side to
// today when zero.
type TerminateLeaseParams struct {
	Date   Date   `json:"date,omitzero"`
	Reason string `json:"reason,omitempty"`
}

// Terminate ends the lease and returns it with Status and TerminatedOn set.
// The server frees the unit and stops invoice generation.
func (s *LeaseService) Terminate(ctx context.Context, id string, p TerminateLeaseParams) (Lease, error) {
	return doAction[Lease](ctx, s.c, s.item(id)+"terminate/", p)
}
