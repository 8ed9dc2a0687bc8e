// Package invite implements the directed, time-limited invite state
// machine between two users, grounded on
// original_source/backend/api/consumers/services/invite_service.py and
// the expiry watcher in lobby_consumer.py's schedule_invite_watch.
package invite

import (
	"context"
	"time"

	"github.com/anchorwatch/battleship-server/store"
)

// TTL is the expiry Add applies to both invite sets. The expiry belongs
// to the whole set, so a later Add into the same set restarts it for
// every invite already in that set.
const TTL = 60 * time.Second

// pollInterval is how often the expiry watcher re-checks after its
// initial TTL-length sleep.
const pollInterval = 5 * time.Second

// Service manages invite sets in the Keyed Store. An invite (from, to)
// is represented symmetrically: `to`'s incoming set holds `from`, and
// `from`'s outgoing set holds `to`, both with the same TTL.
type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

func incomingKey(username string) string { return "invites_incoming:" + username }
func outgoingKey(username string) string { return "invites_outgoing:" + username }

// Add creates an invite from fromUser to toUser, entering the Pending
// state.
func (s *Service) Add(ctx context.Context, fromUser, toUser string) error {
	if err := s.store.AddToSet(ctx, incomingKey(toUser), fromUser, TTL); err != nil {
		return err
	}
	return s.store.AddToSet(ctx, outgoingKey(fromUser), toUser, TTL)
}

// Remove tears down both sides of the invite, transitioning to None
// (whether the prior state was Pending, or already half-expired).
func (s *Service) Remove(ctx context.Context, fromUser, toUser string) error {
	if err := s.store.RemoveFromSet(ctx, incomingKey(toUser), fromUser); err != nil {
		return err
	}
	return s.store.RemoveFromSet(ctx, outgoingKey(fromUser), toUser)
}

// State is the current set of pending invites to/from a user.
type State struct {
	Incoming []string
	Outgoing []string
}

// GetState reports every invite currently incoming to, and outgoing
// from, username.
func (s *Service) GetState(ctx context.Context, username string) (State, error) {
	incoming, err := s.store.Members(ctx, incomingKey(username))
	if err != nil {
		return State{}, err
	}
	outgoing, err := s.store.Members(ctx, outgoingKey(username))
	if err != nil {
		return State{}, err
	}
	if incoming == nil {
		incoming = []string{}
	}
	if outgoing == nil {
		outgoing = []string{}
	}
	return State{Incoming: incoming, Outgoing: outgoing}, nil
}

// Expired reports whether the invite between user1 (sender) and user2
// (recipient) has expired: neither side's set key exists any longer.
func (s *Service) Expired(ctx context.Context, user1, user2 string) (bool, error) {
	hasIncoming, err := s.store.Exists(ctx, incomingKey(user2))
	if err != nil {
		return false, err
	}
	hasOutgoing, err := s.store.Exists(ctx, outgoingKey(user1))
	if err != nil {
		return false, err
	}
	return !hasIncoming && !hasOutgoing, nil
}

// Watch is the cooperative expiry watcher: sleeps for TTL, then polls
// every pollInterval until the invite between fromUser and toUser has
// expired, then calls onExpired once and returns. It tolerates the
// invite already being gone (Remove beat the clock) and simply reports
// expiry in that case too, since both are observationally identical
// from the Keyed Store's point of view. Safe to run as a detached
// goroutine outlasting the session that spawned it.
func (s *Service) Watch(ctx context.Context, fromUser, toUser string, onExpired func()) {
	timer := time.NewTimer(TTL)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		expired, err := s.Expired(ctx, fromUser, toUser)
		if err == nil && expired {
			onExpired()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
