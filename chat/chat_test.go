package chat

import (
	"context"
	"testing"

	"github.com/anchorwatch/battleship-server/store"
)

func TestLobbyChatIDDeterministic(t *testing.T) {
	if LobbyChatID("bob", "alice") != LobbyChatID("alice", "bob") {
		t.Fatal("expected chat id to be order-independent")
	}
	if LobbyChatID("alice", "bob") != "alice_bob" {
		t.Fatalf("got %q, want alice_bob", LobbyChatID("alice", "bob"))
	}
}

func TestLobbyHistoryOrdered(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore())
	chatID := LobbyChatID("alice", "bob")

	s.PushLobbyMessage(ctx, chatID, LobbyMessage{From: "alice", Msg: "hi"})
	s.PushLobbyMessage(ctx, chatID, LobbyMessage{From: "bob", Msg: "hey"})

	history, err := s.LobbyHistory(ctx, chatID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[0].Msg != "hi" || history[1].Msg != "hey" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestGameHistoryRoundTripsAccessAndType(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore())

	s.PushGameMessage(ctx, "game-alice-bob", GameMessage{
		From: "alice", MsgType: MsgSystem, Msg: "SHIP PLACED", Access: AccessPrivate,
	})
	s.PushGameMessage(ctx, "game-alice-bob", GameMessage{
		From: "alice", MsgType: MsgSystem, Msg: "ALICE IS READY", Access: AccessPublic,
	})

	history, err := s.GameHistory(ctx, "game-alice-bob")
	if err != nil {
		t.Fatal(err)
	}
	if history[0].Access != AccessPrivate || history[1].Access != AccessPublic {
		t.Fatalf("unexpected access levels: %+v", history)
	}
}

func TestDeleteGameChatClearsHistory(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore())
	s.PushGameMessage(ctx, "game-alice-bob", GameMessage{From: "alice", Msg: "hi"})

	if err := s.DeleteGameChat(ctx, "game-alice-bob"); err != nil {
		t.Fatal(err)
	}
	history, _ := s.GameHistory(ctx, "game-alice-bob")
	if len(history) != 0 {
		t.Fatalf("expected empty history after delete, got %+v", history)
	}
}

func TestLobbyChatIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemoryStore())
	chatID := LobbyChatID("alice", "bob")

	s.IndexLobbyChat(ctx, "alice", chatID)
	s.IndexLobbyChat(ctx, "bob", chatID)

	chats, _ := s.LobbyChatsFor(ctx, "alice")
	if len(chats) != 1 || chats[0] != chatID {
		t.Fatalf("got %v, want [%s]", chats, chatID)
	}

	s.RemoveLobbyChatIndex(ctx, "alice", chatID)
	chats, _ = s.LobbyChatsFor(ctx, "alice")
	if len(chats) != 0 {
		t.Fatalf("expected empty index after removal, got %v", chats)
	}
}
