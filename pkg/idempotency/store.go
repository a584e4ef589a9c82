package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingMarker = "pending"

// Store maps a client-chosen idempotency key to the order it produced.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl, prefix: "idem:checkout:"}
}

func (s *Store) Key(key string) string {
	return s.prefix + key
}

// claimAttempts bounds how often Claim retries when the key expires between
// SETNX and GET.
const claimAttempts = 3

// Claim reserves key for a new checkout. If the key is already taken it
// reports the order id stored for it, which is 0 while that checkout is
// still running.
func (s *Store) Claim(ctx context.Context, key string) (bool, int64, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		ok, err := s.rdb.SetNX(ctx, s.Key(key), pendingMarker, s.ttl).Result()
		if err != nil {
			return false, 0, fmt.Errorf("redis setnx failed: %w", err)
		}
		if ok {
			return true, 0, nil
		}

		v, err := s.rdb.Get(ctx, s.Key(key)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return false, 0, fmt.Errorf("redis get failed: %w", err)
		}
		if v == pendingMarker {
			return false, 0, nil
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, 0, fmt.Errorf("corrupt idempotency value %q: %w", v, err)
		}
		return false, id, nil
	}
	return false, 0, fmt.Errorf("idempotency key %q kept expiring during claim", key)
}

func (s *Store) Complete(ctx context.Context, key string, orderID int64) error {
	if err := s.rdb.Set(ctx, s.Key(key), strconv.FormatInt(orderID, 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.Key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
