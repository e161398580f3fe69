package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultQueuePrefix = "ride:queue:"

var errInvalidQueueEntry = errors.New("invalid queue entry")

// RedisStore keeps each driver's queue in a Redis list, head at index 0.
type RedisStore struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisStore constructs the store. An empty prefix selects the default.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultQueuePrefix
	}
	return &RedisStore{client: client, keyPrefix: prefix}
}

func (r *RedisStore) key(driverID uuid.UUID) string {
	return r.keyPrefix + driverID.String()
}

// Enqueue scans the list for the passenger before pushing.
func (r *RedisStore) Enqueue(ctx context.Context, driverID, passengerID uuid.UUID) (int, error) {
	key := r.key(driverID)
	members, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis lrange: %w", err)
	}
	want := passengerID.String()
	for i, m := range members {
		if m == want {
			return i, nil
		}
	}
	n, err := r.client.RPush(ctx, key, want).Result()
	if err != nil {
		return 0, fmt.Errorf("redis rpush: %w", err)
	}
	return int(n) - 1, nil
}

func (r *RedisStore) Head(ctx context.Context, driverID uuid.UUID) (uuid.UUID, bool, error) {
	v, err := r.client.LIndex(ctx, r.key(driverID), 0).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis lindex: %w", err)
	}
	return parseEntry(v)
}

func (r *RedisStore) PopHead(ctx context.Context, driverID uuid.UUID) (uuid.UUID, bool, error) {
	v, err := r.client.LPop(ctx, r.key(driverID)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("redis lpop: %w", err)
	}
	return parseEntry(v)
}

func (r *RedisStore) Remove(ctx context.Context, driverID, passengerID uuid.UUID) error {
	if err := r.client.LRem(ctx, r.key(driverID), 0, passengerID.String()).Err(); err != nil {
		return fmt.Errorf("redis lrem: %w", err)
	}
	return nil
}

func (r *RedisStore) Len(ctx context.Context, driverID uuid.UUID) (int, error) {
	n, err := r.client.LLen(ctx, r.key(driverID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return int(n), nil
}

func parseEntry(v string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: %s", errInvalidQueueEntry, v)
	}
	return id, true, nil
}
