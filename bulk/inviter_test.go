package bulk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/propbooks/propbooks-go/backend"
)

type fakeSender struct {
	mu      sync.Mutex
	created []backend.Invitation
	resent  []string
	revoked []string
	fail    map[string]bool // emails or ids that should fail
}

func newFakeSender(fail ...string) *fakeSender {
	f := &fakeSender{fail: make(map[string]bool)}
	for _, k := range fail {
		f.fail[k] = true
	}
	return f
}

func (f *fakeSender) Create(_ context.Context, inv backend.Invitation) (backend.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[inv.Email] {
		return backend.Invitation{}, &backend.APIError{
			Kind: backend.KindValidation, StatusCode: 400, Detail: "An invitation for this email already exists.",
		}
	}
	inv.ID = fmt.Sprintf("inv-%d", len(f.created)+1)
	inv.Status = backend.InvitationPending
	f.created = append(f.created, inv)
	return inv, nil
}

func (f *fakeSender) Resend(_ context.Context, id string) (backend.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return backend.Invitation{}, &backend.APIError{Kind: backend.KindNotFound, StatusCode: 404}
	}
	f.resent = append(f.resent, id)
	return backend.Invitation{ID: id, Status: backend.InvitationPending}, nil
}

func (f *fakeSender) Revoke(_ context.Context, id string) (backend.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[id] {
		return backend.Invitation{}, &backend.APIError{Kind: backend.KindConflict, StatusCode: 409}
	}
	f.revoked = append(f.revoked, id)
	return backend.Invitation{ID: id, Status: backend.InvitationRevoked}, nil
}

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func newTestInviter(t *testing.T, s Sender, inval Invalidator) *Inviter {
	t.Helper()
	b, err := New(Config{Sender: s, Invalidator: inval})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func rowsFor(emails ...string) []Row {
	rows := make([]Row, 0, len(emails))
	for _, e := range emails {
		rows = append(rows, Row{Email: e, Role: "clerk"})
	}
	return rows
}

func TestNewRequiresSender(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("missing sender accepted")
	}
}

func TestSendAllBestEffort(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender("b@x.com", "d@x.com")
	inval := &countingInvalidator{}
	b := newTestInviter(t, sender, inval)

	sum := b.SendAll(ctx, rowsFor("a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"))

	if sum.Sent != 3 || sum.Failed != 2 || len(sum.Results) != 5 {
		t.Fatalf("summary: %+v", sum)
	}
	// results stay aligned with input order
	if sum.Results[1].Err == nil || sum.Results[3].Err == nil {
		t.Fatalf("failures landed in the wrong slots: %+v", sum.Results)
	}
	if sum.Results[0].Err != nil || sum.Results[0].Invitation.ID == "" {
		t.Fatalf("success slot: %+v", sum.Results[0])
	}
	if !backend.IsValidation(sum.Results[1].Err) {
		t.Fatalf("failure kind: %v", sum.Results[1].Err)
	}
	if inval.count() != 1 {
		t.Fatalf("cache invalidated %d times, want exactly once", inval.count())
	}
}

func TestSendAllInvalidatesOnceForLargeBatch(t *testing.T) {
	ctx := context.Background()
	inval := &countingInvalidator{}
	b := newTestInviter(t, newFakeSender(), inval)

	emails := make([]string, 40)
	for i := range emails {
		emails[i] = fmt.Sprintf("u%d@x.com", i)
	}
	sum := b.SendAll(ctx, rowsFor(emails...))

	if sum.Sent != 40 || sum.Failed != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if inval.count() != 1 {
		t.Fatalf("cache invalidated %d times, want exactly once", inval.count())
	}
}

func TestSendAllNothingSucceededSkipsInvalidate(t *testing.T) {
	ctx := context.Background()
	inval := &countingInvalidator{}
	b := newTestInviter(t, newFakeSender("a@x.com", "b@x.com"), inval)

	sum := b.SendAll(ctx, rowsFor("a@x.com", "b@x.com"))
	if sum.Sent != 0 || sum.Failed != 2 {
		t.Fatalf("summary: %+v", sum)
	}
	if inval.count() != 0 {
		t.Fatal("invalidated although nothing changed server-side")
	}
}

func TestSendAllEmptyBatch(t *testing.T) {
	ctx := context.Background()
	inval := &countingInvalidator{}
	b := newTestInviter(t, newFakeSender(), inval)

	sum := b.SendAll(ctx, nil)
	if sum.Sent != 0 || sum.Failed != 0 || len(sum.Results) != 0 {
		t.Fatalf("summary: %+v", sum)
	}
	if inval.count() != 0 {
		t.Fatal("empty batch invalidated the cache")
	}
}

func TestResendAndRevokeBatches(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender("gone")
	inval := &countingInvalidator{}
	b := newTestInviter(t, sender, inval)

	re := b.ResendAll(ctx, []string{"i1", "gone", "i3"})
	if re.Succeeded != 2 || re.Failed != 1 {
		t.Fatalf("resend summary: %+v", re)
	}
	if len(sender.resent) != 2 {
		t.Fatalf("resent: %v", sender.resent)
	}

	rv := b.RevokeAll(ctx, []string{"i1"})
	if rv.Succeeded != 1 || rv.Failed != 0 {
		t.Fatalf("revoke summary: %+v", rv)
	}
	if len(sender.revoked) != 1 || sender.revoked[0] != "i1" {
		t.Fatalf("revoked: %v", sender.revoked)
	}

	// one invalidate per batch that changed something
	if inval.count() != 2 {
		t.Fatalf("invalidations: %d", inval.count())
	}
}

func TestParseThenSendFlow(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	b := newTestInviter(t, sender, nil)

	csv := "email,first_name,last_name,role\n" +
		"john@x.com,John,Doe,clerk\n" +
		"broken-line-without-at,X,Y,Z\n" +
		"jane@x.com,Jane,Doe,manager\n"
	rows, stats, err := ParseInvitations(strings.NewReader(csv))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Skipped != 1 {
		t.Fatalf("stats: %+v", stats)
	}

	sum := b.SendAll(ctx, rows)
	if sum.Sent != 2 || sum.Failed != 0 {
		t.Fatalf("summary: %+v", sum)
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.created) != 2 {
		t.Fatalf("created: %+v", sender.created)
	}
	for _, inv := range sender.created {
		if inv.FirstName == "" || inv.Role == "" {
			t.Fatalf("row fields dropped on send: %+v", inv)
		}
	}
}
