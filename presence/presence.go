// Package presence tracks who is online and who currently holds an
// open lobby session, grounded on base_consumer.py's refresh_user_ttl
// and lobby_service.py's lobby_users set.
package presence

import (
	"context"
	"time"

	"github.com/anchorwatch/battleship-server/store"
)

// TTL is how long an "online_<username>" marker lives without being
// refreshed.
const TTL = 30 * time.Second

// Service tracks online presence and lobby roster membership.
type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

// Refresh marks username as online for another TTL. Called on every
// lobby/game action, including ping.
func (p *Service) Refresh(ctx context.Context, username string) error {
	return p.store.SetWithTTL(ctx, onlineKey(username), TTL)
}

// IsOnline reports whether username's presence marker has not expired.
func (p *Service) IsOnline(ctx context.Context, username string) (bool, error) {
	return p.store.Exists(ctx, onlineKey(username))
}

func onlineKey(username string) string {
	return "online_" + username
}

// JoinLobby adds username to the lobby roster set.
func (p *Service) JoinLobby(ctx context.Context, username string) error {
	return p.store.AddToSet(ctx, "lobby_users", username, 0)
}

// LeaveLobby removes username from the lobby roster set.
func (p *Service) LeaveLobby(ctx context.Context, username string) error {
	return p.store.RemoveFromSet(ctx, "lobby_users", username)
}

// LobbyUsers returns every username currently in the lobby.
func (p *Service) LobbyUsers(ctx context.Context) ([]string, error) {
	return p.store.Members(ctx, "lobby_users")
}
