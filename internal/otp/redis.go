package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps challenges in redis with native TTL expiry, making
// the OTP flows safe across multiple processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a challenge store on the given client. The
// prefix keeps the reset and signup flows in disjoint key spaces.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(subject string) string {
	return "otp:" + r.prefix + ":" + subject
}

// Put stores the challenge under the key with the given TTL.
func (r *RedisStore) Put(ctx context.Context, key string, ch Challenge, ttl time.Duration) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("failed to encode challenge: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Get returns the live challenge for the key, if any.
func (r *RedisStore) Get(ctx context.Context, key string) (Challenge, bool, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Challenge{}, false, nil
		}
		return Challenge{}, false, fmt.Errorf("failed to load challenge: %w", err)
	}

	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return Challenge{}, false, fmt.Errorf("failed to decode challenge: %w", err)
	}
	return ch, true, nil
}

// Delete removes the challenge for the key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete challenge: %w", err)
	}
	return nil
}
