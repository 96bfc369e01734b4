package genstore

import (
	"context"
	"testing"
	"time"
)

func TestLocalSnapshotMissingIsZero(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	g, err := s.Snapshot(ctx, "never-bumped")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("missing key: got gen=%d want 0", g)
	}
}

func TestLocalBumpIncrementsMonotonically(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	for want := uint64(1); want <= 3; want++ {
		got, err := s.Bump(ctx, "coll:invoices")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("bump %d: got %d", want, got)
		}
	}

	g, err := s.Snapshot(ctx, "coll:invoices")
	if err != nil {
		t.Fatal(err)
	}
	if g != 3 {
		t.Fatalf("snapshot after bumps: got %d want 3", g)
	}
}

func TestLocalBumpsAreIndependentPerKey(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, 0)
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "coll:units"); err != nil {
		t.Fatal(err)
	}
	g, err := s.Snapshot(ctx, "coll:tenants")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("unrelated key moved: got %d want 0", g)
	}
}

func TestLocalCleanupPrunesOld(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(0, time.Second) // retention=1s
	t.Cleanup(func() { _ = s.Close(ctx) })

	if _, err := s.Bump(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	s.Cleanup(time.Second)

	g, err := s.Snapshot(ctx, "old")
	if err != nil {
		t.Fatal(err)
	}
	if g != 0 {
		t.Fatalf("expected pruned -> 0, got %d", g)
	}
}

func TestLocalCloseIsIdempotentWithLoop(t *testing.T) {
	ctx := context.Background()
	s := NewLocal(10*time.Millisecond, time.Minute)
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
