// Package store defines the Keyed Store abstraction: ephemeral
// key-value operations with TTL support for strings and sets, plain
// lists, and hashes. The production implementation is backed by Redis;
// tests use the in-memory fake in memory_store.go so they never require a
// live broker.
package store

import (
	"context"
	"time"
)

// Store is the Keyed Store interface from the session fabric's design:
// string-with-TTL, set-with-optional-TTL, list, hash, existence, and
// key delete. Every operation may fail with an error wrapping
// apperr.KindBackendUnavailable.
type Store interface {
	// SetWithTTL sets key to a marker value that expires after ttl.
	SetWithTTL(ctx context.Context, key string, ttl time.Duration) error

	// AddToSet adds value to the set at key. If ttl > 0 the set's
	// expiration is (re)set to ttl, refreshing it on every add.
	AddToSet(ctx context.Context, key, value string, ttl time.Duration) error

	// RemoveFromSet removes value from the set at key.
	RemoveFromSet(ctx context.Context, key, value string) error

	// Members returns every value currently in the set at key.
	Members(ctx context.Context, key string) ([]string, error)

	// ListPush appends value to the list at key.
	ListPush(ctx context.Context, key, value string) error

	// ListRange returns every element of the list at key, in append
	// order.
	ListRange(ctx context.Context, key string) ([]string, error)

	// HashSet sets field to value in the hash at key.
	HashSet(ctx context.Context, key, field, value string) error

	// HashGet returns the value of field in the hash at key, and
	// whether it was present.
	HashGet(ctx context.Context, key, field string) (string, bool, error)

	// HashGetAll returns every field/value pair in the hash at key.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// HashDel removes field from the hash at key.
	HashDel(ctx context.Context, key, field string) error

	// Delete removes key entirely, regardless of its type.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is currently present.
	Exists(ctx context.Context, key string) (bool, error)
}
