package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any I/O or timeout failure from the cache.
var ErrRedisUnavailable = errors.New("revocation redis unavailable")

const defaultBlacklistPrefix = "blacklist_token"

// RevocationStore tracks spent token ids. Entries expire with the token they
// blacklist and are never deleted explicitly.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRevocationStore returns a store namespaced under prefix
// ("blacklist_token" when empty).
func NewRevocationStore(redisClient redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = defaultBlacklistPrefix
	}
	return &RevocationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RevocationStore) key(tokenID string) string {
	return s.prefix + ":{" + tokenID + "}"
}

// Blacklist records tokenID as spent for ttl. A non-positive ttl is a no-op:
// the token has already expired and the codec rejects it on its own.
func (s *RevocationStore) Blacklist(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if tokenID == "" {
		return errors.New("blacklist requires a token id")
	}
	if err := s.redis.Set(ctx, s.key(tokenID), "used", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether tokenID has been spent.
func (s *RevocationStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of a blacklist entry, or zero when none
// exists.
func (s *RevocationStore) TTL(ctx context.Context, tokenID string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, s.key(tokenID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// BlacklistOnce records tokenID as spent unless it already is. It returns
// false when another caller spent the token first. A non-positive ttl is a
// no-op that reports true.
func (s *RevocationStore) BlacklistOnce(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	if tokenID == "" {
		return false, errors.New("blacklist requires a token id")
	}
	ok, err := s.redis.SetNX(ctx, s.key(tokenID), "used", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}
