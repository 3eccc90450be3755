package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store deduplicates checkout requests with a redis SetNX guard. The first
// caller of Seen for a key wins; everyone else observes the key as seen
// until the TTL lapses.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// RequestKey keys on the client-supplied request identifier, so a replayed
// request is caught regardless of which partition redelivers it.
func (s *Store) RequestKey(requestID string) string {
	return fmt.Sprintf("idem:request:%s", requestID)
}

// MessageKey falls back to the broker coordinates when the request carries
// no identifier of its own.
func (s *Store) MessageKey(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
