package channel

import "testing"

func TestGroupSendDeliversOnlyToSubscribers(t *testing.T) {
	l := NewLayer()
	aliceInbox := l.Register("alice")
	bobInbox := l.Register("bob")
	defer l.Unregister("alice")
	defer l.Unregister("bob")

	l.GroupAdd("lobby_users", "alice")
	l.GroupSend("lobby_users", Event{Type: EventSendUserList})

	select {
	case ev := <-aliceInbox:
		if ev.Type != EventSendUserList {
			t.Fatalf("got %v, want EventSendUserList", ev.Type)
		}
	default:
		t.Fatal("expected alice to receive the group event")
	}

	select {
	case <-bobInbox:
		t.Fatal("bob is not a group member and should not receive anything")
	default:
	}
}

func TestGroupDiscardStopsDelivery(t *testing.T) {
	l := NewLayer()
	inbox := l.Register("alice")
	defer l.Unregister("alice")

	l.GroupAdd("game-alice-bob", "alice")
	l.GroupDiscard("game-alice-bob", "alice")
	l.GroupSend("game-alice-bob", Event{Type: EventGameUpdate})

	select {
	case <-inbox:
		t.Fatal("expected no delivery after GroupDiscard")
	default:
	}
}

func TestUnregisterRemovesFromAllGroups(t *testing.T) {
	l := NewLayer()
	l.Register("alice")
	l.GroupAdd("lobby_users", "alice")
	l.GroupAdd("user_alice", "alice")

	l.Unregister("alice")

	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.groups["lobby_users"]) != 0 || len(l.groups["user_alice"]) != 0 {
		t.Fatal("expected alice removed from every group on unregister")
	}
}

func TestFullInboxDropsRatherThanBlocks(t *testing.T) {
	l := NewLayer()
	l.Register("alice")
	defer l.Unregister("alice")
	l.GroupAdd("lobby_users", "alice")

	for i := 0; i < inboxSize+10; i++ {
		l.GroupSend("lobby_users", Event{Type: EventSendUserList})
	}
	// No deadlock/panic is the assertion here; excess sends are dropped.
}
