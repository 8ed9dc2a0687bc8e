package session

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/anchorwatch/battleship-server/channel"
	"github.com/anchorwatch/battleship-server/chat"
)

const (
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 54 * time.Second
	outboxSize    = 256
)

// lobbySession serves one client's lobby connection, dispatching
// actions and relaying Channel Layer events for the groups it has
// joined. Grounded on lobby_consumer.py.
type lobbySession struct {
	hub       *Hub
	conn      *websocket.Conn
	username  string
	sessionID string
	send      chan any
	inbox     <-chan channel.Event
}

func newLobbySession(h *Hub, conn *websocket.Conn, username string) *lobbySession {
	return &lobbySession{
		hub:      h,
		conn:     conn,
		username: username,
		send:     make(chan any, outboxSize),
	}
}

func (s *lobbySession) push(msg any) {
	select {
	case s.send <- msg:
	default:
		log.Printf("lobby session %s: outbox full, dropping message", s.sessionID)
	}
}

func (s *lobbySession) run() {
	s.sessionID = s.hub.newSessionID("lobby:" + s.username)
	s.inbox = s.hub.Layer.Register(s.sessionID)

	ctx := context.Background()

	if err := s.onConnect(ctx); err != nil {
		log.Printf("lobby session %s: connect error: %v", s.sessionID, err)
		s.conn.Close()
		s.hub.Layer.Unregister(s.sessionID)
		return
	}

	go s.writePump()
	go s.eventPump()

	s.readPump(ctx)

	s.onDisconnect(ctx)
}

func (s *lobbySession) onConnect(ctx context.Context) error {
	if gameID := s.hub.Engine.FindGameFor(s.username); gameID != "" {
		status, ok, err := s.hub.Match.Get(ctx, gameID, s.username)
		if err != nil {
			return err
		}
		if !ok || !status.FullDisconnect {
			s.push(inGameMsg{Type: "in_game", GameID: gameID})
		}
	}

	s.hub.Layer.GroupAdd("lobby_users", s.sessionID)
	s.hub.Layer.GroupAdd(userGroup(s.username), s.sessionID)

	if err := s.hub.Presence.JoinLobby(ctx, s.username); err != nil {
		return err
	}
	if err := s.hub.Presence.Refresh(ctx, s.username); err != nil {
		return err
	}

	s.hub.Layer.GroupSend("lobby_users", channel.Event{Type: channel.EventSendUserList})
	s.sendInviteState(ctx)
	return nil
}

func userGroup(username string) string { return "user_" + username }

func (s *lobbySession) onDisconnect(ctx context.Context) {
	s.hub.Layer.GroupDiscard("lobby_users", s.sessionID)
	s.hub.Layer.GroupDiscard(userGroup(s.username), s.sessionID)
	s.hub.Layer.Unregister(s.sessionID)

	if err := s.hub.Presence.LeaveLobby(ctx, s.username); err != nil {
		log.Printf("lobby session %s: leave lobby error: %v", s.sessionID, err)
	}
	s.hub.Layer.GroupSend("lobby_users", channel.Event{Type: channel.EventSendUserList})

	go cleanupLobbyChat(context.Background(), s.hub, s.username)
}

func (s *lobbySession) writePump() {
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

func (s *lobbySession) eventPump() {
	for ev := range s.inbox {
		s.handleEvent(context.Background(), ev)
	}
}

func (s *lobbySession) handleEvent(ctx context.Context, ev channel.Event) {
	switch ev.Type {
	case channel.EventSendUserList:
		s.sendUserList(ctx)
	case channel.EventSendInviteState:
		s.sendInviteState(ctx)
	case channel.EventSendInviteAccepted:
		s.push(inviteAcceptedMsg{Type: "invite_accepted", From: ev.From})
	case channel.EventSendInviteDeclined:
		s.push(inviteDeclinedMsg{Type: "invite_declined", From: ev.From})
	case channel.EventSendChatNotify:
		s.push(chatNotifyMsg{Type: "chat_notify", From: ev.From})
	case channel.EventSendChatHistory:
		s.sendChatHistory(ctx, ev.ChatID)
	case channel.EventSendInGame:
		s.push(inGameMsg{Type: "in_game", GameID: ev.GameID})
	}
}

func (s *lobbySession) sendUserList(ctx context.Context) {
	users, err := s.hub.Presence.LobbyUsers(ctx)
	if err != nil {
		log.Printf("lobby session %s: list users: %v", s.sessionID, err)
		return
	}
	s.push(userListMsg{Type: "user_list", Users: users, Self: s.username})
}

func (s *lobbySession) sendInviteState(ctx context.Context) {
	state, err := s.hub.Invites.GetState(ctx, s.username)
	if err != nil {
		log.Printf("lobby session %s: invite state: %v", s.sessionID, err)
		return
	}
	s.push(inviteStateMsg{Type: "invite_state", Incoming: state.Incoming, Outgoing: state.Outgoing})
}

func (s *lobbySession) sendChatHistory(ctx context.Context, chatID string) {
	history, err := s.hub.Chat.LobbyHistory(ctx, chatID)
	if err != nil {
		log.Printf("lobby session %s: chat history: %v", s.sessionID, err)
		return
	}
	out := make([]interface{}, len(history))
	for i, m := range history {
		out[i] = m
	}
	s.push(lobbyChatHistoryMsg{Type: "chat_history", History: out})
}

func (s *lobbySession) readPump(ctx context.Context) {
	s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		var action LobbyAction
		if err := s.conn.ReadJSON(&action); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("lobby session %s: read error: %v", s.sessionID, err)
			}
			return
		}
		s.dispatch(ctx, action)
	}
}

func (s *lobbySession) dispatch(ctx context.Context, action LobbyAction) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("lobby session %s: panic handling action %q: %v", s.sessionID, action.Action, r)
		}
	}()

	if action.Action != "ping" {
		if err := s.hub.Presence.Refresh(ctx, s.username); err != nil {
			log.Printf("lobby session %s: refresh presence: %v", s.sessionID, err)
			return
		}
	}

	switch action.Action {
	case "invite":
		s.actionInvite(ctx, action)
	case "invite_response":
		s.actionInviteResponse(ctx, action)
	case "invite_cancel":
		s.actionInviteCancel(ctx, action)
	case "send_msg":
		s.actionSendMsg(ctx, action)
	case "join_chat":
		s.actionJoinChat(ctx, action)
	case "ping":
		if err := s.hub.Presence.Refresh(ctx, s.username); err != nil {
			log.Printf("lobby session %s: refresh presence: %v", s.sessionID, err)
		}
	default:
		log.Printf("lobby session %s: unknown action %q", s.sessionID, action.Action)
	}
}

func (s *lobbySession) actionInvite(ctx context.Context, action LobbyAction) {
	if action.To == "" {
		return
	}
	if err := s.hub.Invites.Add(ctx, s.username, action.To); err != nil {
		log.Printf("lobby session %s: add invite: %v", s.sessionID, err)
		return
	}

	from, to := s.username, action.To
	go s.hub.Invites.Watch(context.Background(), from, to, func() {
		s.hub.Layer.GroupSend(userGroup(from), channel.Event{Type: channel.EventSendInviteState})
		s.hub.Layer.GroupSend(userGroup(to), channel.Event{Type: channel.EventSendInviteState})
	})

	s.hub.Layer.GroupSend(userGroup(s.username), channel.Event{Type: channel.EventSendInviteState})
	s.hub.Layer.GroupSend(userGroup(action.To), channel.Event{Type: channel.EventSendInviteState})
}

func (s *lobbySession) actionInviteResponse(ctx context.Context, action LobbyAction) {
	if action.From == "" || action.Status == "" {
		return
	}

	if err := s.hub.Invites.Remove(ctx, action.From, s.username); err != nil {
		log.Printf("lobby session %s: remove invite: %v", s.sessionID, err)
		return
	}

	switch action.Status {
	case "accepted":
		s.hub.Layer.GroupSend(userGroup(action.From), channel.Event{
			Type: channel.EventSendInviteAccepted,
			From: s.username,
		})

		p1, p2 := sortedPair(action.From, s.username)
		g := s.hub.Engine.CreateGame(p1, p2)
		s.hub.Layer.GroupSend(userGroup(s.username), channel.Event{
			Type:   channel.EventSendInGame,
			GameID: g.ID,
		})
		s.hub.Layer.GroupSend(userGroup(action.From), channel.Event{
			Type:   channel.EventSendInGame,
			GameID: g.ID,
		})

	case "declined":
		s.hub.Layer.GroupSend(userGroup(action.From), channel.Event{
			Type: channel.EventSendInviteDeclined,
			From: s.username,
		})
		s.hub.Layer.GroupSend(userGroup(s.username), channel.Event{Type: channel.EventSendInviteState})
		s.hub.Layer.GroupSend(userGroup(action.From), channel.Event{Type: channel.EventSendInviteState})
	}
}

func sortedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

func (s *lobbySession) actionInviteCancel(ctx context.Context, action LobbyAction) {
	if action.To == "" {
		return
	}
	if err := s.hub.Invites.Remove(ctx, s.username, action.To); err != nil {
		log.Printf("lobby session %s: cancel invite: %v", s.sessionID, err)
		return
	}
	s.hub.Layer.GroupSend(userGroup(s.username), channel.Event{Type: channel.EventSendInviteState})
	s.hub.Layer.GroupSend(userGroup(action.To), channel.Event{Type: channel.EventSendInviteState})
}

func (s *lobbySession) actionSendMsg(ctx context.Context, action LobbyAction) {
	if action.ChatWith == "" || action.Msg == "" {
		return
	}
	chatID := chat.LobbyChatID(s.username, action.ChatWith)

	if err := s.hub.Chat.IndexLobbyChat(ctx, s.username, chatID); err != nil {
		log.Printf("lobby session %s: index chat: %v", s.sessionID, err)
	}
	if err := s.hub.Chat.IndexLobbyChat(ctx, action.ChatWith, chatID); err != nil {
		log.Printf("lobby session %s: index chat: %v", s.sessionID, err)
	}

	if err := s.hub.Chat.PushLobbyMessage(ctx, chatID, chat.LobbyMessage{From: s.username, Msg: action.Msg}); err != nil {
		log.Printf("lobby session %s: push message: %v", s.sessionID, err)
		return
	}
	s.hub.Layer.GroupSend(chatID, channel.Event{Type: channel.EventSendChatHistory, ChatID: chatID})
	s.hub.Layer.GroupSend(userGroup(action.ChatWith), channel.Event{
		Type: channel.EventSendChatNotify,
		From: s.username,
	})
}

func (s *lobbySession) actionJoinChat(ctx context.Context, action LobbyAction) {
	if action.ChatWith == "" {
		return
	}
	chatID := chat.LobbyChatID(s.username, action.ChatWith)
	s.hub.Layer.GroupAdd(chatID, s.sessionID)
	s.hub.Layer.GroupSend(chatID, channel.Event{Type: channel.EventSendChatHistory, ChatID: chatID})
}

// cleanupLobbyChatDelay is the pause before a disconnecting session's
// lobby chats are swept for inactivity, giving a reconnecting partner
// time to refresh their own presence TTL.
const cleanupLobbyChatDelay = 30 * time.Second

// cleanupLobbyChat runs detached from any session: it must survive the
// session that scheduled it. Grounded on base_consumer.py's
// cleanup_lobby_chat.
func cleanupLobbyChat(ctx context.Context, h *Hub, username string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(cleanupLobbyChatDelay):
	}

	chats, err := h.Chat.LobbyChatsFor(ctx, username)
	if err != nil {
		log.Printf("cleanup lobby chat for %s: %v", username, err)
		return
	}

	for _, chatID := range chats {
		participants := splitChatID(chatID)
		active := false
		for _, p := range participants {
			if p == username {
				continue
			}
			online, err := h.Presence.IsOnline(ctx, p)
			if err == nil && online {
				active = true
				break
			}
		}
		if active {
			continue
		}

		if err := h.Chat.DeleteLobbyChat(ctx, chatID); err != nil {
			log.Printf("cleanup lobby chat: delete chat %s: %v", chatID, err)
		}
		for _, p := range participants {
			if err := h.Chat.RemoveLobbyChatIndex(ctx, p, chatID); err != nil {
				log.Printf("cleanup lobby chat: remove index: %v", err)
			}
		}
	}
}

func splitChatID(chatID string) []string {
	for i := 0; i < len(chatID); i++ {
		if chatID[i] == '_' {
			return []string{chatID[:i], chatID[i+1:]}
		}
	}
	return []string{chatID}
}
