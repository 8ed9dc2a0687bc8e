package session

import (
	"context"
	"testing"
)

// collectN drains exactly n messages from ch, failing the test if any
// single receive times out. Order between messages queued by the same
// GroupSend fan-out isn't guaranteed relative to a directly-pushed
// message, so callers assert on the set of types received.
func collectN(t *testing.T, ch chan any, n int) []any {
	t.Helper()
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = recv(t, ch)
	}
	return out
}

func hasType[T any](msgs []any) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// TestHappyInviteFlow drives scenario S1: Alice invites Bob, Bob
// accepts, and both land in the same new game.
func TestHappyInviteFlow(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	alice := attachLobby(hub, "alice")
	if err := alice.onConnect(ctx); err != nil {
		t.Fatalf("alice connect: %v", err)
	}
	// invite_state (direct) + user_list (via lobby_users fan-out, self).
	aliceInit := collectN(t, alice.send, 2)
	if _, ok := hasType[inviteStateMsg](aliceInit); !ok {
		t.Fatalf("alice: expected invite_state on connect, got %#v", aliceInit)
	}
	if _, ok := hasType[userListMsg](aliceInit); !ok {
		t.Fatalf("alice: expected user_list on connect, got %#v", aliceInit)
	}

	bob := attachLobby(hub, "bob")
	if err := bob.onConnect(ctx); err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	bobInit := collectN(t, bob.send, 2)
	if _, ok := hasType[inviteStateMsg](bobInit); !ok {
		t.Fatalf("bob: expected invite_state on connect, got %#v", bobInit)
	}
	if _, ok := hasType[userListMsg](bobInit); !ok {
		t.Fatalf("bob: expected user_list on connect, got %#v", bobInit)
	}
	// Alice's lobby_users membership means Bob joining re-broadcasts the
	// roster to her too.
	aliceRefresh := recv(t, alice.send)
	if _, ok := aliceRefresh.(userListMsg); !ok {
		t.Fatalf("alice: expected user_list after bob joins, got %#v", aliceRefresh)
	}

	alice.dispatch(ctx, LobbyAction{Action: "invite", To: "bob"})

	aliceState, ok := recv(t, alice.send).(inviteStateMsg)
	if !ok {
		t.Fatal("alice: expected invite_state after sending invite")
	}
	if len(aliceState.Outgoing) != 1 || aliceState.Outgoing[0] != "bob" {
		t.Fatalf("alice outgoing = %v, want [bob]", aliceState.Outgoing)
	}

	bobState, ok := recv(t, bob.send).(inviteStateMsg)
	if !ok {
		t.Fatal("bob: expected invite_state after alice's invite")
	}
	if len(bobState.Incoming) != 1 || bobState.Incoming[0] != "alice" {
		t.Fatalf("bob incoming = %v, want [alice]", bobState.Incoming)
	}

	bob.dispatch(ctx, LobbyAction{Action: "invite_response", From: "alice", Status: "accepted"})

	aliceAfterAccept := collectN(t, alice.send, 2)
	accepted, ok := hasType[inviteAcceptedMsg](aliceAfterAccept)
	if !ok || accepted.From != "bob" {
		t.Fatalf("alice: expected invite_accepted from bob, got %#v", aliceAfterAccept)
	}
	aliceInGame, ok := hasType[inGameMsg](aliceAfterAccept)
	if !ok || aliceInGame.GameID == "" {
		t.Fatalf("alice: expected in_game with a game id, got %#v", aliceAfterAccept)
	}

	bobInGame, ok := recv(t, bob.send).(inGameMsg)
	if !ok {
		t.Fatal("bob: expected in_game")
	}
	if bobInGame.GameID != aliceInGame.GameID {
		t.Fatalf("bob game id %q != alice game id %q", bobInGame.GameID, aliceInGame.GameID)
	}

	g := hub.Engine.GetGame(aliceInGame.GameID)
	if g == nil || !g.HasPlayer("alice") || !g.HasPlayer("bob") {
		t.Fatalf("expected engine to hold a game for alice/bob, got %#v", g)
	}
}
