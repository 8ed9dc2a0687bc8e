package invite

import (
	"context"
	"testing"
	"time"

	"github.com/anchorwatch/battleship-server/store"
)

func TestAddIsSymmetric(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore())

	if err := s.Add(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}

	aliceState, err := s.GetState(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(aliceState.Outgoing) != 1 || aliceState.Outgoing[0] != "bob" {
		t.Fatalf("alice outgoing = %v, want [bob]", aliceState.Outgoing)
	}

	bobState, err := s.GetState(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(bobState.Incoming) != 1 || bobState.Incoming[0] != "alice" {
		t.Fatalf("bob incoming = %v, want [alice]", bobState.Incoming)
	}
}

func TestRemoveIsSymmetric(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore())

	s.Add(ctx, "alice", "bob")
	if err := s.Remove(ctx, "alice", "bob"); err != nil {
		t.Fatal(err)
	}

	aliceState, _ := s.GetState(ctx, "alice")
	bobState, _ := s.GetState(ctx, "bob")
	if len(aliceState.Outgoing) != 0 || len(bobState.Incoming) != 0 {
		t.Fatal("expected both sides cleared after Remove")
	}
}

func TestExpiredTrueOnlyWhenBothSidesGone(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	s := New(mem)

	s.Add(ctx, "alice", "bob")
	expired, _ := s.Expired(ctx, "alice", "bob")
	if expired {
		t.Fatal("expected not expired immediately after Add")
	}

	// Simulate one side's TTL lapsing independently (half-removed pair).
	mem.RemoveFromSet(ctx, "invites_outgoing:alice", "bob")
	expired, _ = s.Expired(ctx, "alice", "bob")
	if expired {
		t.Fatal("expected not expired while the recipient's side still exists")
	}

	mem.RemoveFromSet(ctx, "invites_incoming:bob", "alice")
	expired, _ = s.Expired(ctx, "alice", "bob")
	if !expired {
		t.Fatal("expected expired once both sides are gone")
	}
}

func TestWatchDoesNotFireBeforeTTL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := store.NewMemoryStore()
	s := New(mem)
	s.Add(ctx, "alice", "bob")

	// Watch sleeps a full TTL before its first expiry check, so with
	// real timers onExpired must not fire within the first 200ms; the
	// deferred cancel then stops the watcher.
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, "alice", "bob", func() { close(done) })
	}()

	select {
	case <-done:
		t.Fatal("onExpired fired before the TTL elapsed")
	case <-time.After(200 * time.Millisecond):
	}
}
