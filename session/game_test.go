package session

import (
	"context"
	"strings"
	"testing"
)

// TestDisconnectGraceReconnectTolerance drives scenario S4: Alice's
// socket drops, Bob is notified of the temp disconnect, and Alice
// reconnecting before the grace window elapses clears it without ever
// reaching full_disconnect or posting a "HAS LEFT" message.
func TestDisconnectGraceReconnectTolerance(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	g := hub.Engine.CreateGame("alice", "bob")

	alice := attachGame(hub, "alice", g.ID)
	if !alice.playerBelongs(ctx) {
		t.Fatal("alice should belong to the game")
	}
	if alice.fullyDisconnected(ctx) {
		t.Fatal("alice should not be fully disconnected before connecting")
	}
	if err := alice.onConnect(ctx); err != nil {
		t.Fatalf("alice connect: %v", err)
	}
	collectN(t, alice.send, 2) // game_state + chat_history

	bob := attachGame(hub, "bob", g.ID)
	if err := bob.onConnect(ctx); err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	collectN(t, bob.send, 2)

	// Alice's socket drops.
	alice.onDisconnect(ctx)

	status, ok, err := hub.Match.Get(ctx, g.ID, "alice")
	if err != nil || !ok {
		t.Fatalf("expected a match status for alice, ok=%v err=%v", ok, err)
	}
	if !status.TempDisconnect || status.FullDisconnect {
		t.Fatalf("expected temp_disconnect=true, full_disconnect=false, got %+v", status)
	}

	bobUpdate, ok := recv(t, bob.send).(gameStateMsg)
	if !ok {
		t.Fatal("bob: expected a game_state update after alice's temp disconnect")
	}
	if !bobUpdate.PlayersDisconnect["alice"] {
		t.Fatalf("expected players_disconnect[alice]=true, got %+v", bobUpdate.PlayersDisconnect)
	}

	// Alice reconnects with a fresh session before the grace window
	// (10s) elapses — the watchDisconnectGrace goroutine spawned by
	// onDisconnect is still asleep and hasn't observed anything yet.
	alice2 := attachGame(hub, "alice", g.ID)
	if alice2.fullyDisconnected(ctx) {
		t.Fatal("alice should not be fully disconnected on reconnect")
	}
	if err := alice2.onConnect(ctx); err != nil {
		t.Fatalf("alice reconnect: %v", err)
	}
	collectN(t, alice2.send, 2)

	status, ok, err = hub.Match.Get(ctx, g.ID, "alice")
	if err != nil || !ok {
		t.Fatalf("expected a match status for alice after reconnect, ok=%v err=%v", ok, err)
	}
	if status.TempDisconnect {
		t.Fatal("expected temp_disconnect cleared on reconnect")
	}
	if status.FullDisconnect {
		t.Fatal("full_disconnect should never be set on a timely reconnect")
	}

	drainNone(t, bob.send)

	history, err := hub.Chat.GameHistory(ctx, g.ID)
	if err != nil {
		t.Fatalf("game history: %v", err)
	}
	for _, m := range history {
		if strings.Contains(m.Msg, "HAS LEFT") {
			t.Fatalf("did not expect a HAS LEFT message after a timely reconnect, got %q", m.Msg)
		}
	}
}

// TestRematchFlow drives scenario S5: once both players vote to
// restart, the engine gets a fresh game under the same id, match
// status and chat history are cleared, and both sessions are notified.
func TestRematchFlow(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub()

	g := hub.Engine.CreateGame("alice", "bob")

	alice := attachGame(hub, "alice", g.ID)
	if err := alice.onConnect(ctx); err != nil {
		t.Fatalf("alice connect: %v", err)
	}
	collectN(t, alice.send, 2)

	bob := attachGame(hub, "bob", g.ID)
	if err := bob.onConnect(ctx); err != nil {
		t.Fatalf("bob connect: %v", err)
	}
	collectN(t, bob.send, 2)

	alice.actionRestart(ctx)

	// alice's own vote chat line fans out to both sockets via
	// EventSendChatHistory; no restart yet since bob hasn't voted.
	if _, ok := recv(t, alice.send).(gameChatHistoryMsg); !ok {
		t.Fatal("alice: expected chat_history after voting to restart")
	}
	if _, ok := recv(t, bob.send).(gameChatHistoryMsg); !ok {
		t.Fatal("bob: expected chat_history after alice votes to restart")
	}

	all, err := hub.Match.AllRestart(ctx, g.ID)
	if err != nil {
		t.Fatalf("all restart: %v", err)
	}
	if all {
		t.Fatal("expected AllRestart=false with only one vote in")
	}

	bob.actionRestart(ctx)

	// bob's own vote chat line, then the restart broadcast once both
	// have voted.
	if _, ok := recv(t, alice.send).(gameChatHistoryMsg); !ok {
		t.Fatal("alice: expected chat_history after bob votes to restart")
	}
	if _, ok := recv(t, bob.send).(gameChatHistoryMsg); !ok {
		t.Fatal("bob: expected chat_history after bob votes to restart")
	}

	if _, ok := recv(t, alice.send).(newGameMsg); !ok {
		t.Fatal("alice: expected new_game once both players voted to restart")
	}
	if _, ok := recv(t, bob.send).(newGameMsg); !ok {
		t.Fatal("bob: expected new_game once both players voted to restart")
	}

	if _, ok, err := hub.Match.Get(ctx, g.ID, "alice"); err != nil || ok {
		t.Fatalf("expected match status cleared after rematch, ok=%v err=%v", ok, err)
	}

	history, err := hub.Chat.GameHistory(ctx, g.ID)
	if err != nil {
		t.Fatalf("game history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected chat history cleared after rematch, got %v", history)
	}

	freshGame := hub.Engine.GetGame(g.ID)
	if freshGame == nil {
		t.Fatal("expected a fresh game to exist under the same id")
	}
	state := hub.Engine.GetGameState(g.ID, "alice")
	if state == nil {
		t.Fatal("expected game state for alice on the new game")
	}
}
