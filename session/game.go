package session

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anchorwatch/battleship-server/channel"
	"github.com/anchorwatch/battleship-server/chat"
	"github.com/anchorwatch/battleship-server/game"
)

// disconnectGrace is how long a temp-disconnected player has to
// reconnect before the session is escalated to a full disconnect.
const disconnectGrace = 10 * time.Second

// gameSession serves one client's connection to a single match.
// Grounded on game_consumer.py.
type gameSession struct {
	hub       *Hub
	conn      *websocket.Conn
	username  string
	gameID    string
	sessionID string
	send      chan any
	inbox     <-chan channel.Event
}

func newGameSession(h *Hub, conn *websocket.Conn, username, gameID string) *gameSession {
	return &gameSession{
		hub:      h,
		conn:     conn,
		username: username,
		gameID:   gameID,
		send:     make(chan any, outboxSize),
	}
}

func (s *gameSession) push(msg any) {
	select {
	case s.send <- msg:
	default:
		log.Printf("game session %s: outbox full, dropping message", s.sessionID)
	}
}

func (s *gameSession) group() string { return "match_" + s.gameID }

func (s *gameSession) run() {
	s.sessionID = s.hub.newSessionID("game:" + s.gameID + ":" + s.username)
	s.inbox = s.hub.Layer.Register(s.sessionID)

	ctx := context.Background()

	if !s.playerBelongs(ctx) {
		closeMsg := websocket.FormatCloseMessage(4000, "not a participant in this game")
		s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeDeadline))
		s.conn.Close()
		s.hub.Layer.Unregister(s.sessionID)
		return
	}

	if s.fullyDisconnected(ctx) {
		closeMsg := websocket.FormatCloseMessage(4000, "already left this game")
		s.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeDeadline))
		s.conn.Close()
		s.hub.Layer.Unregister(s.sessionID)
		return
	}

	if err := s.onConnect(ctx); err != nil {
		log.Printf("game session %s: connect error: %v", s.sessionID, err)
		s.conn.Close()
		s.hub.Layer.Unregister(s.sessionID)
		return
	}

	go s.writePump()
	go s.eventPump()

	s.readPump(ctx)

	s.onDisconnect(ctx)
}

func (s *gameSession) playerBelongs(ctx context.Context) bool {
	g := s.hub.Engine.GetGame(s.gameID)
	return g != nil && g.HasPlayer(s.username)
}

// fullyDisconnected reports whether username has already left this
// match for good (full_disconnect=true). A player in that state is
// forbidden from rejoining the match group.
func (s *gameSession) fullyDisconnected(ctx context.Context) bool {
	status, ok, err := s.hub.Match.Get(ctx, s.gameID, s.username)
	if err != nil || !ok {
		return false
	}
	return status.FullDisconnect
}

func (s *gameSession) onConnect(ctx context.Context) error {
	if _, ok, err := s.hub.Match.Get(ctx, s.gameID, s.username); err != nil {
		return err
	} else if !ok {
		if _, err := s.hub.Match.Init(ctx, s.gameID, s.username); err != nil {
			return err
		}
	} else {
		if err := s.hub.Match.SetTempDisconnect(ctx, s.gameID, s.username, false); err != nil {
			return err
		}
	}

	s.hub.Layer.GroupAdd(s.group(), s.sessionID)

	if err := s.hub.Presence.Refresh(ctx, s.username); err != nil {
		return err
	}

	s.sendGameState(ctx)
	s.sendChatHistory(ctx)
	return nil
}

func (s *gameSession) onDisconnect(ctx context.Context) {
	s.hub.Layer.GroupDiscard(s.group(), s.sessionID)
	s.hub.Layer.Unregister(s.sessionID)

	gameID, username := s.gameID, s.username

	status, ok, err := s.hub.Match.Get(ctx, gameID, username)
	if err == nil && ok && status.FullDisconnect {
		// leave_game already set full_disconnect directly; the close
		// handler observes it here and applies consequences without
		// waiting out the reconnect grace period.
		applyFullDisconnectConsequences(ctx, s.hub, gameID, username)
		return
	}

	if err := s.hub.Match.SetTempDisconnect(ctx, gameID, username, true); err != nil {
		log.Printf("game session %s: set temp disconnect: %v", s.sessionID, err)
	}
	s.hub.Layer.GroupSend(s.group(), channel.Event{Type: channel.EventGameUpdate})

	go watchDisconnectGrace(context.Background(), s.hub, gameID, username)
}

// watchDisconnectGrace sleeps disconnectGrace and, unless the player
// reconnected in the meantime, escalates temp_disconnect to
// full_disconnect and applies its consequences. Detached so it
// survives the session that scheduled it.
func watchDisconnectGrace(ctx context.Context, h *Hub, gameID, username string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(disconnectGrace):
	}

	status, ok, err := h.Match.Get(ctx, gameID, username)
	if err != nil || !ok || !status.TempDisconnect {
		return
	}

	if err := h.Match.SetFullDisconnect(ctx, gameID, username, true); err != nil {
		log.Printf("disconnect grace %s/%s: set full disconnect: %v", gameID, username, err)
		return
	}

	applyFullDisconnectConsequences(ctx, h, gameID, username)
}

// applyFullDisconnectConsequences runs once a player's full_disconnect
// flag is confirmed set, whether reached via the reconnect grace
// timeout or an explicit leave_game action: if every player in gameID
// is now fully disconnected the match is torn down entirely, otherwise
// the remaining player(s) are notified.
func applyFullDisconnectConsequences(ctx context.Context, h *Hub, gameID, username string) {
	allGone, err := h.Match.AllFullDisconnect(ctx, gameID)
	if err != nil {
		log.Printf("disconnect %s/%s: check all full disconnect: %v", gameID, username, err)
		return
	}

	if allGone {
		h.Chat.DeleteGameChat(ctx, gameID)
		h.Match.Delete(ctx, gameID)
		h.Engine.EndGame(gameID)
		go cleanupLobbyChat(context.Background(), h, username)
		return
	}

	if err := h.Chat.PushGameMessage(ctx, gameID, chat.GameMessage{
		From:    username,
		MsgType: chat.MsgSystem,
		Msg:     upperUsername(username) + " HAS LEFT THE GAME",
		Access:  chat.AccessPublic,
	}); err != nil {
		log.Printf("disconnect %s/%s: push chat: %v", gameID, username, err)
	}
	h.Layer.GroupSend("match_"+gameID, channel.Event{Type: channel.EventPlayerLeft, From: username})
	h.Layer.GroupSend("match_"+gameID, channel.Event{Type: channel.EventGameUpdate})
}

func upperUsername(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func (s *gameSession) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *gameSession) eventPump() {
	for ev := range s.inbox {
		s.handleEvent(context.Background(), ev)
	}
}

func (s *gameSession) handleEvent(ctx context.Context, ev channel.Event) {
	switch ev.Type {
	case channel.EventGameUpdate:
		s.sendGameState(ctx)
	case channel.EventSendChatHistory:
		s.sendChatHistory(ctx)
	case channel.EventSendRestart:
		s.push(newGameMsg{Type: "new_game"})
	case channel.EventPlayerLeft:
		if ev.From != s.username {
			s.push(enemyLeftMsg{Type: "enemy_left"})
		}
	}
}

func (s *gameSession) sendGameState(ctx context.Context) {
	state := s.hub.Engine.GetGameState(s.gameID, s.username)
	if state == nil {
		return
	}
	statuses, err := s.hub.Match.All(ctx, s.gameID)
	if err != nil {
		log.Printf("game session %s: match status: %v", s.sessionID, err)
		return
	}
	disconnect := make(map[string]bool, len(statuses))
	for username, st := range statuses {
		disconnect[username] = st.TempDisconnect || st.FullDisconnect
	}
	s.push(gameStateMsg{Type: "game_state", State: state, PlayersDisconnect: disconnect})
}

func (s *gameSession) sendChatHistory(ctx context.Context) {
	history, err := s.hub.Chat.GameHistory(ctx, s.gameID)
	if err != nil {
		log.Printf("game session %s: chat history: %v", s.sessionID, err)
		return
	}
	out := make([]interface{}, 0, len(history))
	for _, m := range history {
		if m.Access == chat.AccessPrivate && m.From != s.username {
			continue
		}
		out = append(out, m)
	}
	s.push(gameChatHistoryMsg{Type: "chat_history", History: out})
}

func (s *gameSession) readPump(ctx context.Context) {
	s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		var action GameAction
		if err := s.conn.ReadJSON(&action); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("game session %s: read error: %v", s.sessionID, err)
			}
			return
		}
		s.dispatch(ctx, action)
	}
}

func (s *gameSession) dispatch(ctx context.Context, action GameAction) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("game session %s: panic handling action %q: %v", s.sessionID, action.Action, r)
		}
	}()

	if action.Action != "ping" {
		if err := s.hub.Presence.Refresh(ctx, s.username); err != nil {
			log.Printf("game session %s: refresh presence: %v", s.sessionID, err)
			return
		}
	}

	switch action.Action {
	case "place_ship":
		s.actionPlaceShip(ctx, action)
	case "remove_ship":
		s.actionRemoveShip(ctx, action)
	case "set_ready":
		s.actionSetReady(ctx)
	case "make_move":
		s.actionMakeMove(ctx, action)
	case "restart_game":
		s.actionRestart(ctx)
	case "send_msg":
		s.actionSendMsg(ctx, action)
	case "leave_game":
		s.actionLeaveGame(ctx)
	case "ping":
		if err := s.hub.Presence.Refresh(ctx, s.username); err != nil {
			log.Printf("game session %s: refresh presence: %v", s.sessionID, err)
		}
	default:
		log.Printf("game session %s: unknown action %q", s.sessionID, action.Action)
	}
}

// fail reports a rule violation as a private system chat message to
// the acting player, per the error handling design: RuleViolation
// never reaches the wire as a transport-level error frame (the game
// socket's message vocabulary has no "error" type) — it reads exactly
// like any other system line, just access-restricted to the actor.
func (s *gameSession) fail(ctx context.Context, err error) {
	if pushErr := s.hub.Chat.PushGameMessage(ctx, s.gameID, chat.GameMessage{
		From:    s.username,
		MsgType: chat.MsgSystem,
		Msg:     err.Error(),
		Access:  chat.AccessPrivate,
	}); pushErr != nil {
		log.Printf("game session %s: push rule violation: %v", s.sessionID, pushErr)
		return
	}
	s.hub.Layer.GroupSend(s.group(), channel.Event{Type: channel.EventSendChatHistory})
}

func (s *gameSession) actionPlaceShip(ctx context.Context, action GameAction) {
	orientation := game.Horizontal
	if action.Orientation == "vertical" {
		orientation = game.Vertical
	}
	result, err := s.hub.Engine.PlaceShip(s.gameID, s.username, action.X, action.Y, action.Length, orientation)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.recordAndBroadcast(ctx, result)
}

func (s *gameSession) actionRemoveShip(ctx context.Context, action GameAction) {
	result, err := s.hub.Engine.RemoveShip(s.gameID, s.username, action.X, action.Y)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.recordAndBroadcast(ctx, result)
}

func (s *gameSession) actionSetReady(ctx context.Context) {
	result, err := s.hub.Engine.SetReady(s.gameID, s.username)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.recordAndBroadcast(ctx, result)
}

func (s *gameSession) actionMakeMove(ctx context.Context, action GameAction) {
	result, err := s.hub.Engine.MakeMove(s.gameID, s.username, action.X, action.Y)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	s.recordAndBroadcast(ctx, result)
}

func (s *gameSession) actionRestart(ctx context.Context) {
	if err := s.hub.Match.SetRestart(ctx, s.gameID, s.username, true); err != nil {
		log.Printf("game session %s: set restart: %v", s.sessionID, err)
		return
	}

	s.hub.Chat.PushGameMessage(ctx, s.gameID, chat.GameMessage{
		From:    s.username,
		MsgType: chat.MsgSystem,
		Msg:     upperUsername(s.username) + " VOTED TO PLAY AGAIN",
		Access:  chat.AccessPublic,
	})
	s.hub.Layer.GroupSend(s.group(), channel.Event{Type: channel.EventSendChatHistory})

	all, err := s.hub.Match.AllRestart(ctx, s.gameID)
	if err != nil {
		log.Printf("game session %s: check all restart: %v", s.sessionID, err)
		return
	}
	if !all {
		return
	}

	g := s.hub.Engine.GetGame(s.gameID)
	if g == nil {
		return
	}
	s.hub.Engine.CreateGame(g.Players[0], g.Players[1])
	s.hub.Match.Delete(ctx, s.gameID)
	s.hub.Chat.DeleteGameChat(ctx, s.gameID)
	s.hub.Layer.GroupSend(s.group(), channel.Event{Type: channel.EventSendRestart})
}

// actionLeaveGame implements the client-initiated leave: it sets
// full_disconnect directly rather than going through the temp
// disconnect grace period, then closes the socket so onDisconnect
// observes the flag already set and applies consequences immediately.
func (s *gameSession) actionLeaveGame(ctx context.Context) {
	if err := s.hub.Match.SetFullDisconnect(ctx, s.gameID, s.username, true); err != nil {
		log.Printf("game session %s: set full disconnect: %v", s.sessionID, err)
		return
	}
	s.conn.Close()
}

func (s *gameSession) actionSendMsg(ctx context.Context, action GameAction) {
	if action.Msg == "" {
		return
	}
	access := chat.AccessPublic
	if action.Access == "private" {
		access = chat.AccessPrivate
	}
	if err := s.hub.Chat.PushGameMessage(ctx, s.gameID, chat.GameMessage{
		From:    s.username,
		MsgType: chat.MsgUser,
		Msg:     action.Msg,
		Access:  access,
	}); err != nil {
		log.Printf("game session %s: push chat: %v", s.sessionID, err)
		return
	}
	s.hub.Layer.GroupSend(s.group(), channel.Event{Type: channel.EventSendChatHistory})
}

// recordAndBroadcast writes the action's system chat line (if any) and
// fans out the refreshed board state to the match group.
func (s *gameSession) recordAndBroadcast(ctx context.Context, result *game.ActionResult) {
	if result.Text != "" {
		s.hub.Chat.PushGameMessage(ctx, s.gameID, chat.GameMessage{
			From:    s.username,
			MsgType: chat.MsgSystem,
			Msg:     result.Text,
			Access:  chat.Access(result.Access),
		})
		s.hub.Layer.GroupSend(s.group(), channel.Event{Type: channel.EventSendChatHistory})
	}
	s.hub.Layer.GroupSend(s.group(), channel.Event{Type: channel.EventGameUpdate})
}
