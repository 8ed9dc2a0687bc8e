package session

import "github.com/anchorwatch/battleship-server/game"

// LobbyAction is a client -> server message on the lobby socket. Only
// the fields relevant to Action are populated, mirroring the teacher's
// per-message data structs (handler_utils.go's MoveData/FireData/...)
// collapsed into one envelope since the lobby's action set is small.
type LobbyAction struct {
	Action   string `json:"action"`
	To       string `json:"to,omitempty"`
	From     string `json:"from,omitempty"`
	Status   string `json:"status,omitempty"`
	ChatWith string `json:"chatWith,omitempty"`
	Msg      string `json:"msg,omitempty"`
}

// GameAction is a client -> server message on a game socket.
type GameAction struct {
	Action      string `json:"action"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Length      int    `json:"length,omitempty"`
	Orientation string `json:"orientation,omitempty"`
	Sender      string `json:"sender,omitempty"`
	Msg         string `json:"msg,omitempty"`
	Access      string `json:"access,omitempty"`
}

// Outbound lobby message shapes (server -> client), one struct per
// spec.md §6 `type` value.

type userListMsg struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
	Self  string   `json:"self"`
}

type inviteStateMsg struct {
	Type     string   `json:"type"`
	Incoming []string `json:"incoming"`
	Outgoing []string `json:"outgoing"`
}

type inviteAcceptedMsg struct {
	Type string `json:"type"`
	From string `json:"from"`
}

type inviteDeclinedMsg struct {
	Type string `json:"type"`
	From string `json:"from"`
}

type chatNotifyMsg struct {
	Type string `json:"type"`
	From string `json:"from"`
}

type lobbyChatHistoryMsg struct {
	Type    string        `json:"type"`
	History []interface{} `json:"history"`
}

type inGameMsg struct {
	Type   string `json:"type"`
	GameID string `json:"game_id"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Outbound game message shapes.

type gameStateMsg struct {
	Type              string               `json:"type"`
	State             *game.PlayerState    `json:"state"`
	PlayersDisconnect map[string]bool      `json:"players_disconnect"`
}

type gameChatHistoryMsg struct {
	Type    string        `json:"type"`
	History []interface{} `json:"history"`
}

type enemyLeftMsg struct {
	Type string `json:"type"`
}

type newGameMsg struct {
	Type string `json:"type"`
}
