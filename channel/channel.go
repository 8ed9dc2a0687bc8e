// Package channel implements the Channel Layer: named-group pub/sub
// fan-out so a broadcast to a group reaches every session subscribed to
// it, in arrival order per (group, session). It generalizes the
// teacher's single implicit "everyone" broadcast loop (one client map,
// one broadcast channel) into many independent named groups, each
// sharing the same non-blocking, buffered-inbox delivery idiom.
package channel

import (
	"log"
	"sync"
)

// EventType is a tagged enum naming the handler a delivered Event
// should invoke at its session. This replaces the source system's
// dotted string-name resolution (e.g. "send.chat.history" resolving to
// a method named send_chat_history) with a closed Go type and a
// switch at the receiving session, per the redesign flag against
// dynamic name dispatch.
type EventType int

const (
	EventGameUpdate EventType = iota
	EventPlayerLeft
	EventSendRestart
	EventSendChatHistory
	EventSendUserList
	EventSendInviteState
	EventSendInviteAccepted
	EventSendInviteDeclined
	EventSendChatNotify
	EventSendInGame
)

// Event is a fan-out message delivered to every session subscribed to
// the destination group. Fields beyond Type are populated only when
// the corresponding EventType needs them.
type Event struct {
	Type EventType

	// ChatID identifies which 1:1 or game chat list to re-read on
	// EventSendChatHistory.
	ChatID string

	// From is the acting username, used by invite/chat notifications.
	From string

	// GameID is populated for send.in.game notifications triggered
	// from outside the destination game's own group.
	GameID string
}

const inboxSize = 64

// Layer is the in-process Channel Layer. A single Layer instance is
// shared by every session in the process; it is safe for concurrent
// use.
type Layer struct {
	mu      sync.RWMutex
	inboxes map[string]chan Event
	groups  map[string]map[string]struct{}
}

// NewLayer builds an empty Channel Layer.
func NewLayer() *Layer {
	return &Layer{
		inboxes: make(map[string]chan Event),
		groups:  make(map[string]map[string]struct{}),
	}
}

// Register creates a session's inbox. Must be called once before the
// session joins any group; the returned channel delivers every Event
// sent to a group the session is a member of, in send order.
func (l *Layer) Register(sessionID string) <-chan Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan Event, inboxSize)
	l.inboxes[sessionID] = ch
	return ch
}

// Unregister removes the session's inbox and discards it from every
// group it belonged to. Safe to call more than once.
func (l *Layer) Unregister(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.inboxes[sessionID]; ok {
		close(ch)
		delete(l.inboxes, sessionID)
	}
	for group, members := range l.groups {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(l.groups, group)
		}
	}
}

// GroupAdd subscribes sessionID to group.
func (l *Layer) GroupAdd(group, sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		members = make(map[string]struct{})
		l.groups[group] = members
	}
	members[sessionID] = struct{}{}
}

// GroupDiscard unsubscribes sessionID from group.
func (l *Layer) GroupDiscard(group, sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	members, ok := l.groups[group]
	if !ok {
		return
	}
	delete(members, sessionID)
	if len(members) == 0 {
		delete(l.groups, group)
	}
}

// GroupSend delivers event to every session currently subscribed to
// group. Delivery is best-effort: a session whose inbox is full has
// the event dropped for it rather than blocking every other
// subscriber, mirroring the backpressure model where a stalled
// client's outbox eventually gets it disconnected at the transport.
func (l *Layer) GroupSend(group string, event Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for sessionID := range l.groups[group] {
		ch, ok := l.inboxes[sessionID]
		if !ok {
			continue
		}
		select {
		case ch <- event:
		default:
			log.Printf("channel: dropping event for session %s, inbox full", sessionID)
		}
	}
}
