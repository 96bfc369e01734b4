package bulk

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	propbooks "github.com/propbooks/propbooks-go"
	"github.com/propbooks/propbooks-go/backend"
)

const defaultParallel = 4

// Sender is the slice of the invitations API a batch needs.
// *backend.InvitationService satisfies it.
type Sender interface {
	Create(ctx context.Context, inv backend.Invitation) (backend.Invitation, error)
	Resend(ctx context.Context, id string) (backend.Invitation, error)
	Revoke(ctx context.Context, id string) (backend.Invitation, error)
}

// Invalidator refreshes the invitation list cache after a batch changed
// something. A propbooks.Collection[backend.Invitation] satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Config struct {
	Sender Sender // required

	// Invalidator is called once per batch when at least one item
	// succeeded, never per item.
	Invalidator Invalidator

	Logger   propbooks.Logger // if nil, NopLogger is used
	Parallel int              // concurrent sends; 0 => 4
}

// Inviter runs invitation batches against the server.
type Inviter struct {
	sender   Sender
	inval    Invalidator
	log      propbooks.Logger
	parallel int
}

func New(cfg Config) (*Inviter, error) {
	if cfg.Sender == nil {
		return nil, fmt.Errorf("bulk: sender is required")
	}
	b := &Inviter{
		sender:   cfg.Sender,
		inval:    cfg.Invalidator,
		log:      cfg.Logger,
		parallel: cfg.Parallel,
	}
	if b.log == nil {
		b.log = propbooks.NopLogger{}
	}
	if b.parallel < 1 {
		b.parallel = defaultParallel
	}
	return b, nil
}

// RowResult is one row's outcome. Invitation is the created record when Err
// is nil.
type RowResult struct {
	Row        Row
	Invitation backend.Invitation
	Err        error
}

// Summary aggregates a SendAll run. Sent+Failed == len(Results).
type Summary struct {
	Sent    int
	Failed  int
	Results []RowResult
}

// SendAll creates one invitation per row, best effort: every row is
// attempted, failures are recorded per row, and the invitation cache is
// invalidated exactly once when anything got through.
func (b *Inviter) SendAll(ctx context.Context, rows []Row) Summary {
	results := make([]RowResult, len(rows))

	var g errgroup.Group
	g.SetLimit(b.parallel)
	for i, row := range rows {
		g.Go(func() error {
			inv, err := b.sender.Create(ctx, backend.Invitation{
				Email:     row.Email,
				FirstName: row.FirstName,
				LastName:  row.LastName,
				Role:      backend.Role(row.Role),
			})
			results[i] = RowResult{Row: row, Invitation: inv, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	s := Summary{Results: results}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.Sent++
		}
	}
	b.log.Info("invitation batch finished", propbooks.Fields{"sent": s.Sent, "failed": s.Failed})
	b.settle(ctx, s.Sent)
	return s
}

// IDResult is one id's outcome in a resend or revoke batch.
type IDResult struct {
	ID  string
	Err error
}

// BatchSummary aggregates a resend or revoke run.
type BatchSummary struct {
	Succeeded int
	Failed    int
	Results   []IDResult
}

// ResendAll re-sends pending invitations, best effort.
func (b *Inviter) ResendAll(ctx context.Context, ids []string) BatchSummary {
	return b.batch(ctx, ids, b.sender.Resend)
}

// RevokeAll cancels pending invitations, best effort.
func (b *Inviter) RevokeAll(ctx context.Context, ids []string) BatchSummary {
	return b.batch(ctx, ids, b.sender.Revoke)
}

func (b *Inviter) batch(ctx context.Context, ids []string, op func(context.Context, string) (backend.Invitation, error)) BatchSummary {
	results := make([]IDResult, len(ids))

	var g errgroup.Group
	g.SetLimit(b.parallel)
	for i, id := range ids {
		g.Go(func() error {
			_, err := op(ctx, id)
			results[i] = IDResult{ID: id, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	s := BatchSummary{Results: results}
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	b.settle(ctx, s.Succeeded)
	return s
}

// settle invalidates the invitation cache once per batch, and only when the
// server state actually changed.
func (b *Inviter) settle(ctx context.Context, succeeded int) {
	if succeeded == 0 || b.inval == nil {
		return
	}
	if err := b.inval.Invalidate(ctx); err != nil {
		b.log.Warn("invitation cache invalidate failed", propbooks.Fields{"err": err})
	}
}
