// Package match tracks per-player match status — the two-bit
// disconnect state machine (none, temp, full) plus the rematch vote —
// grounded on
// original_source/backend/api/consumers/services/game_service.py.
package match

import (
	"context"
	"encoding/json"

	"github.com/anchorwatch/battleship-server/apperr"
	"github.com/anchorwatch/battleship-server/store"
)

// Status is one player's match-lifetime bookkeeping, stored as a JSON
// field in the per-match hash. TempDisconnect and FullDisconnect form a
// deliberate two-state upgrade path (temp -> full is the only valid
// escalation; temp -> none is reconnect) rather than a single
// three-value enum, because both flags are independently observed by
// concurrent goroutines (the close handler and the delayed grace
// task) and the original protocol reasons about them as separate
// booleans.
type Status struct {
	TempDisconnect bool `json:"temp_disconnect"`
	FullDisconnect bool `json:"full_disconnect"`
	Restart        bool `json:"restart"`
}

// Service manages per-match player status hashes.
type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

// Init creates a fresh Status for username in gameID's hash, used
// lazily on first game-session connect.
func (s *Service) Init(ctx context.Context, gameID, username string) (Status, error) {
	status := Status{}
	if err := s.save(ctx, gameID, username, status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Get returns username's status in gameID, and whether it existed.
func (s *Service) Get(ctx context.Context, gameID, username string) (Status, bool, error) {
	raw, ok, err := s.store.HashGet(ctx, gameID, username)
	if err != nil || !ok {
		return Status{}, false, err
	}
	var status Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return Status{}, false, apperr.Wrap(apperr.KindBackendUnavailable, "decode match status", err)
	}
	return status, true, nil
}

func (s *Service) save(ctx context.Context, gameID, username string, status Status) error {
	encoded, err := json.Marshal(status)
	if err != nil {
		return apperr.Wrap(apperr.KindBackendUnavailable, "encode match status", err)
	}
	return s.store.HashSet(ctx, gameID, username, string(encoded))
}

func (s *Service) mutate(ctx context.Context, gameID, username string, fn func(*Status)) error {
	status, ok, err := s.Get(ctx, gameID, username)
	if err != nil {
		return err
	}
	if !ok {
		status = Status{}
	}
	fn(&status)
	return s.save(ctx, gameID, username, status)
}

// SetTempDisconnect updates the temp-disconnect flag.
func (s *Service) SetTempDisconnect(ctx context.Context, gameID, username string, value bool) error {
	return s.mutate(ctx, gameID, username, func(st *Status) { st.TempDisconnect = value })
}

// SetFullDisconnect updates the full-disconnect flag.
func (s *Service) SetFullDisconnect(ctx context.Context, gameID, username string, value bool) error {
	return s.mutate(ctx, gameID, username, func(st *Status) { st.FullDisconnect = value })
}

// SetRestart updates the rematch-vote flag.
func (s *Service) SetRestart(ctx context.Context, gameID, username string, value bool) error {
	return s.mutate(ctx, gameID, username, func(st *Status) { st.Restart = value })
}

// All returns every player's status in gameID, keyed by username.
func (s *Service) All(ctx context.Context, gameID string) (map[string]Status, error) {
	raw, err := s.store.HashGetAll(ctx, gameID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Status, len(raw))
	for username, encoded := range raw {
		var status Status
		if err := json.Unmarshal([]byte(encoded), &status); err != nil {
			continue
		}
		out[username] = status
	}
	return out, nil
}

// AllFullDisconnect reports whether every player currently tracked for
// gameID has FullDisconnect set.
func (s *Service) AllFullDisconnect(ctx context.Context, gameID string) (bool, error) {
	all, err := s.All(ctx, gameID)
	if err != nil {
		return false, err
	}
	if len(all) == 0 {
		return false, nil
	}
	for _, st := range all {
		if !st.FullDisconnect {
			return false, nil
		}
	}
	return true, nil
}

// AllRestart reports whether every player currently tracked for gameID
// has voted to restart.
func (s *Service) AllRestart(ctx context.Context, gameID string) (bool, error) {
	all, err := s.All(ctx, gameID)
	if err != nil {
		return false, err
	}
	if len(all) == 0 {
		return false, nil
	}
	for _, st := range all {
		if !st.Restart {
			return false, nil
		}
	}
	return true, nil
}

// Delete removes the entire per-match status hash, used once both
// players have fully disconnected or a rematch resets the game.
func (s *Service) Delete(ctx context.Context, gameID string) error {
	return s.store.Delete(ctx, gameID)
}
