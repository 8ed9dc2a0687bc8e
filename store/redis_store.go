package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anchorwatch/battleship-server/apperr"
)

// RedisStore backs the Keyed Store with Redis via go-redis/v9. Its
// operations map one-for-one onto the original session fabric's Redis
// service: SET...EX for TTL strings, SADD+EXPIRE for TTL sets, RPUSH
// and LRANGE for lists, and the H* family for hashes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured *redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func wrap(err error) error {
	if err == nil || err == redis.Nil {
		return nil
	}
	return apperr.BackendUnavailable(err)
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key string, ttl time.Duration) error {
	return wrap(s.client.Set(ctx, key, 1, ttl).Err())
}

func (s *RedisStore) AddToSet(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.SAdd(ctx, key, value).Err(); err != nil {
		return wrap(err)
	}
	if ttl > 0 {
		return wrap(s.client.Expire(ctx, key, ttl).Err())
	}
	return nil
}

func (s *RedisStore) RemoveFromSet(ctx context.Context, key, value string) error {
	return wrap(s.client.SRem(ctx, key, value).Err())
}

func (s *RedisStore) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}
	return members, nil
}

func (s *RedisStore) ListPush(ctx context.Context, key, value string) error {
	return wrap(s.client.RPush(ctx, key, value).Err())
}

func (s *RedisStore) ListRange(ctx context.Context, key string) ([]string, error) {
	values, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, wrap(err)
	}
	return values, nil
}

func (s *RedisStore) HashSet(ctx context.Context, key, field, value string) error {
	return wrap(s.client.HSet(ctx, key, field, value).Err())
}

func (s *RedisStore) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	value, err := s.client.HGet(ctx, key, field).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap(err)
	}
	return value, true, nil
}

func (s *RedisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}
	return values, nil
}

func (s *RedisStore) HashDel(ctx context.Context, key, field string) error {
	return wrap(s.client.HDel(ctx, key, field).Err())
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return wrap(s.client.Del(ctx, key).Err())
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrap(err)
	}
	return n > 0, nil
}
