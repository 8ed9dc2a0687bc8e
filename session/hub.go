// Package session wires the Keyed Store, Channel Layer, and Game
// Engine together into the two WebSocket endpoints clients speak to:
// the lobby and a single match. It is the Go analogue of
// lobby_consumer.py / game_consumer.py / base_consumer.py.
package session

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/anchorwatch/battleship-server/chat"
	"github.com/anchorwatch/battleship-server/channel"
	"github.com/anchorwatch/battleship-server/game"
	"github.com/anchorwatch/battleship-server/invite"
	"github.com/anchorwatch/battleship-server/match"
	"github.com/anchorwatch/battleship-server/presence"
)

// Authenticator resolves the authenticated username for an inbound
// HTTP upgrade request. Real authentication (login, session cookies,
// CSRF) is out of scope for this fabric; callers wire in whatever
// upstream auth they use and hand this package a username.
type Authenticator func(r *http.Request) (username string, ok bool)

// Hub holds the process-wide collaborators every session needs:
// the Channel Layer, the Game Engine, and the KS-backed services.
type Hub struct {
	Layer    *channel.Layer
	Engine   *game.Engine
	Presence *presence.Service
	Invites  *invite.Service
	Chat     *chat.Service
	Match    *match.Service

	Authenticate Authenticator

	// AllowedOrigins lists extra Origin header values accepted on
	// WebSocket upgrade, beyond same-host and localhost.
	AllowedOrigins []string

	upgrader websocket.Upgrader

	nextSessionID uint64
}

// NewHub wires a Hub from its collaborators.
func NewHub(layer *channel.Layer, engine *game.Engine, presenceSvc *presence.Service, inviteSvc *invite.Service, chatSvc *chat.Service, matchSvc *match.Service, auth Authenticator, allowedOrigins []string) *Hub {
	h := &Hub{
		Layer:          layer,
		Engine:         engine,
		Presence:       presenceSvc,
		Invites:        inviteSvc,
		Chat:           chatSvc,
		Match:          matchSvc,
		Authenticate:   auth,
		AllowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:       h.isValidOrigin,
		EnableCompression: true,
	}
	return h
}

func (h *Hub) isValidOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		log.Printf("session: invalid origin URL %q", origin)
		return false
	}
	if r.Host == originURL.Host {
		return true
	}
	if strings.HasPrefix(originURL.Host, "localhost:") ||
		strings.HasPrefix(originURL.Host, "127.0.0.1:") ||
		originURL.Host == "localhost" ||
		originURL.Host == "127.0.0.1" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	log.Printf("session: rejected connection from origin %q", origin)
	return false
}

func (h *Hub) newSessionID(username string) string {
	id := atomic.AddUint64(&h.nextSessionID, 1)
	return username + "#" + itoa(id)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// HandleLobby upgrades the request and serves a lobby session for the
// authenticated caller. Unauthenticated requests are closed silently
// per the Auth error kind, without ever upgrading the connection.
func (h *Hub) HandleLobby(w http.ResponseWriter, r *http.Request) {
	username, ok := h.Authenticate(r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session: lobby upgrade error: %v", err)
		return
	}

	ls := newLobbySession(h, conn, username)
	ls.run()
}

// HandleGame upgrades the request and serves a game session for the
// given game_id (extracted by the caller's router from the URL).
func (h *Hub) HandleGame(w http.ResponseWriter, r *http.Request, gameID string) {
	username, ok := h.Authenticate(r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("session: game upgrade error: %v", err)
		return
	}

	gs := newGameSession(h, conn, username, gameID)
	gs.run()
}
