package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests so they never need a
// live Redis instance. TTL is wall-clock and evaluated lazily on
// access, matching the "not refreshed by reads" semantics of the
// production backend. Like real Redis, a set or hash that becomes
// empty is deleted outright rather than lingering as an empty
// container.
type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]*memItem
}

type memKind int

const (
	kindString memKind = iota
	kindSet
	kindList
	kindHash
)

type memItem struct {
	kind      memKind
	expiresAt time.Time // zero means no expiry
	set       map[string]struct{}
	list      []string
	hash      map[string]string
}

// NewMemoryStore builds an empty store using time.Now for expiry
// checks.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, items: make(map[string]*memItem)}
}

func (s *MemoryStore) expired(it *memItem) bool {
	return !it.expiresAt.IsZero() && s.now().After(it.expiresAt)
}

// get returns the live item at key, evicting it first if expired.
func (s *MemoryStore) get(key string) *memItem {
	it, ok := s.items[key]
	if !ok {
		return nil
	}
	if s.expired(it) {
		delete(s.items, key)
		return nil
	}
	return it
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &memItem{kind: kindString, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) AddToSet(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		it = &memItem{kind: kindSet, set: make(map[string]struct{})}
		s.items[key] = it
	}
	it.set[value] = struct{}{}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryStore) RemoveFromSet(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		return nil
	}
	delete(it.set, value)
	if len(it.set) == 0 {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) Members(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		return nil, nil
	}
	out := make([]string, 0, len(it.set))
	for v := range it.set {
		out = append(out, v)
	}
	return out, nil
}

func (s *MemoryStore) ListPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		it = &memItem{kind: kindList}
		s.items[key] = it
	}
	it.list = append(it.list, value)
	return nil
}

func (s *MemoryStore) ListRange(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		return nil, nil
	}
	out := make([]string, len(it.list))
	copy(out, it.list)
	return out, nil
}

func (s *MemoryStore) HashSet(_ context.Context, key, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		it = &memItem{kind: kindHash, hash: make(map[string]string)}
		s.items[key] = it
	}
	it.hash[field] = value
	return nil
}

func (s *MemoryStore) HashGet(_ context.Context, key, field string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		return "", false, nil
	}
	v, ok := it.hash[field]
	return v, ok, nil
}

func (s *MemoryStore) HashGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(it.hash))
	for k, v := range it.hash {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) HashDel(_ context.Context, key, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.get(key)
	if it == nil {
		return nil
	}
	delete(it.hash, field)
	if len(it.hash) == 0 {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(key) != nil, nil
}
