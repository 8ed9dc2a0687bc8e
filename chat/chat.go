// Package chat implements ordered message history for both lobby 1:1
// chats and per-game chats, grounded on
// original_source/backend/api/consumers/services/chat_service.py.
package chat

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/anchorwatch/battleship-server/apperr"
	"github.com/anchorwatch/battleship-server/store"
)

// Access describes the visibility of a game chat message.
type Access string

const (
	AccessPublic  Access = "public"
	AccessPrivate Access = "private"
)

// MsgType distinguishes system-generated game messages from
// player-authored ones.
type MsgType string

const (
	MsgSystem MsgType = "system"
	MsgUser   MsgType = "user"
)

// LobbyMessage is one entry in a lobby 1:1 chat list.
type LobbyMessage struct {
	From string `json:"from"`
	Msg  string `json:"msg"`
}

// GameMessage is one entry in a per-game chat list.
type GameMessage struct {
	From    string  `json:"from"`
	MsgType MsgType `json:"msg_type"`
	Msg     string  `json:"msg"`
	Access  Access  `json:"access"`
}

// Service stores and retrieves chat history via the Keyed Store.
type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

// LobbyChatID canonicalizes a 1:1 chat id from an unordered user pair.
func LobbyChatID(u1, u2 string) string {
	pair := []string{u1, u2}
	sort.Strings(pair)
	return pair[0] + "_" + pair[1]
}

// GameChatKey is the list key for a game's chat history.
func GameChatKey(gameID string) string {
	return "gamechat:" + gameID
}

// PushLobbyMessage appends msg to the lobby chat list at chatID.
func (s *Service) PushLobbyMessage(ctx context.Context, chatID string, msg LobbyMessage) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return apperr.Wrap(apperr.KindBackendUnavailable, "encode lobby message", err)
	}
	return s.store.ListPush(ctx, chatID, string(encoded))
}

// LobbyHistory returns every message on the lobby chat list at chatID.
func (s *Service) LobbyHistory(ctx context.Context, chatID string) ([]LobbyMessage, error) {
	raw, err := s.store.ListRange(ctx, chatID)
	if err != nil {
		return nil, err
	}
	out := make([]LobbyMessage, 0, len(raw))
	for _, r := range raw {
		var m LobbyMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// PushGameMessage appends msg to the game chat list for gameID.
func (s *Service) PushGameMessage(ctx context.Context, gameID string, msg GameMessage) error {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return apperr.Wrap(apperr.KindBackendUnavailable, "encode game message", err)
	}
	return s.store.ListPush(ctx, GameChatKey(gameID), string(encoded))
}

// GameHistory returns every message in gameID's chat history.
func (s *Service) GameHistory(ctx context.Context, gameID string) ([]GameMessage, error) {
	raw, err := s.store.ListRange(ctx, GameChatKey(gameID))
	if err != nil {
		return nil, err
	}
	out := make([]GameMessage, 0, len(raw))
	for _, r := range raw {
		var m GameMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// DeleteGameChat removes the full chat history for a finished game.
func (s *Service) DeleteGameChat(ctx context.Context, gameID string) error {
	return s.store.Delete(ctx, GameChatKey(gameID))
}

// DeleteLobbyChat removes the full message history for a 1:1 lobby
// chat, used by the lazy cleanup sweep once both participants are
// inactive.
func (s *Service) DeleteLobbyChat(ctx context.Context, chatID string) error {
	return s.store.Delete(ctx, chatID)
}

// IndexLobbyChat records that username has participated in chatID, for
// the lazy lobby-chat cleanup sweep.
func (s *Service) IndexLobbyChat(ctx context.Context, username, chatID string) error {
	return s.store.AddToSet(ctx, lobbyChatsKey(username), chatID, 0)
}

// LobbyChatsFor returns every chat id username participates in.
func (s *Service) LobbyChatsFor(ctx context.Context, username string) ([]string, error) {
	return s.store.Members(ctx, lobbyChatsKey(username))
}

// RemoveLobbyChatIndex drops chatID from username's participation
// index.
func (s *Service) RemoveLobbyChatIndex(ctx context.Context, username, chatID string) error {
	return s.store.RemoveFromSet(ctx, lobbyChatsKey(username), chatID)
}

func lobbyChatsKey(username string) string {
	return "lobby_chats:" + username
}
