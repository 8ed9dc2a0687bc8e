package session

import (
	"testing"
	"time"

	"github.com/anchorwatch/battleship-server/channel"
	"github.com/anchorwatch/battleship-server/chat"
	"github.com/anchorwatch/battleship-server/game"
	"github.com/anchorwatch/battleship-server/invite"
	"github.com/anchorwatch/battleship-server/match"
	"github.com/anchorwatch/battleship-server/presence"
	"github.com/anchorwatch/battleship-server/store"
)

// newTestHub builds a Hub against a fresh in-memory store, with no
// real authenticator or origin list — every test in this package
// drives session handlers directly rather than through HandleLobby/
// HandleGame, so neither is exercised here.
func newTestHub() *Hub {
	s := store.NewMemoryStore()
	return NewHub(
		channel.NewLayer(),
		game.NewEngine(),
		presence.New(s),
		invite.New(s),
		chat.New(s),
		match.New(s),
		nil,
		nil,
	)
}

// attachLobby wires a lobbySession's sessionID/inbox the way run()
// does, then starts its eventPump, without touching conn — every
// session test drives dispatch/onConnect/onDisconnect directly rather
// than through readPump/writePump, which are the only methods that
// need a live *websocket.Conn.
func attachLobby(h *Hub, username string) *lobbySession {
	ls := newLobbySession(h, nil, username)
	ls.sessionID = h.newSessionID("test-lobby:" + username)
	ls.inbox = h.Layer.Register(ls.sessionID)
	go ls.eventPump()
	return ls
}

func attachGame(h *Hub, username, gameID string) *gameSession {
	gs := newGameSession(h, nil, username, gameID)
	gs.sessionID = h.newSessionID("test-game:" + gameID + ":" + username)
	gs.inbox = h.Layer.Register(gs.sessionID)
	go gs.eventPump()
	return gs
}

// recv waits up to a short bound for a message on ch, failing the
// test if none arrives — every push here is at most one GroupSend hop
// through a goroutine, never anything that should take this long.
func recv(t *testing.T, ch chan any) any {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

// drainNone asserts ch has nothing waiting on it right now.
func drainNone(t *testing.T, ch chan any) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("expected no message, got %#v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}
