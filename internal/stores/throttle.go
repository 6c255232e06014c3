package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCooldownActive is returned while a cooldown marker exists.
	ErrCooldownActive = errors.New("send cooldown active")
	// ErrDailyLimitExceeded is returned once the daily count reaches the limit.
	ErrDailyLimitExceeded = errors.New("daily send limit exceeded")
)

const (
	defaultCooldownPrefix = "email_cooldown"
	defaultDailyPrefix    = "email_daily_count"
)

// sendThrottleLua runs the cooldown and daily-quota checks as one step.
// The cooldown marker is written before the daily check, so a request
// rejected for the daily limit still starts a cooldown window.
//
// KEYS[1] = cooldown key
// KEYS[2] = daily count key
// ARGV[1] = cooldown seconds
// ARGV[2] = daily limit
// ARGV[3] = seconds until midnight
//
// Returns the daily count after increment, or an error string:
// "cooldown_active", "daily_limit_exceeded".
var sendThrottleLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return {err='cooldown_active'}
end
redis.call('SET', KEYS[1], 'sent', 'EX', ARGV[1])

local count = redis.call('GET', KEYS[2])
if count and tonumber(count) >= tonumber(ARGV[2]) then
  return {err='daily_limit_exceeded'}
end

if not count then
  redis.call('SET', KEYS[2], '1', 'EX', ARGV[3])
  return 1
end
return redis.call('INCR', KEYS[2])
`)

// ThrottleStore holds per-identity send cooldowns and daily counters.
type ThrottleStore struct {
	redis          redis.UniversalClient
	cooldownPrefix string
	dailyPrefix    string
	now            func() time.Time
	location       *time.Location
}

// ThrottleOption customizes a ThrottleStore.
type ThrottleOption func(*ThrottleStore)

// WithThrottleClock overrides the clock used to compute the midnight TTL.
func WithThrottleClock(now func() time.Time) ThrottleOption {
	return func(s *ThrottleStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithThrottleLocation sets the time zone whose midnight resets the daily
// count. UTC by default.
func WithThrottleLocation(loc *time.Location) ThrottleOption {
	return func(s *ThrottleStore) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithThrottlePrefixes overrides the cooldown and daily key prefixes.
func WithThrottlePrefixes(cooldown, daily string) ThrottleOption {
	return func(s *ThrottleStore) {
		if cooldown != "" {
			s.cooldownPrefix = cooldown
		}
		if daily != "" {
			s.dailyPrefix = daily
		}
	}
}

// NewThrottleStore returns a ThrottleStore.
func NewThrottleStore(redisClient redis.UniversalClient, opts ...ThrottleOption) *ThrottleStore {
	s := &ThrottleStore{
		redis:          redisClient,
		cooldownPrefix: defaultCooldownPrefix,
		dailyPrefix:    defaultDailyPrefix,
		now:            time.Now,
		location:       time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Both keys share the {identity} hash tag so the script stays on one slot.
func (s *ThrottleStore) cooldownKey(identity string) string {
	return s.cooldownPrefix + ":{" + identity + "}"
}

func (s *ThrottleStore) dailyKey(identity string) string {
	return s.dailyPrefix + ":{" + identity + "}"
}

// CheckAndMarkSendAllowed rejects with ErrCooldownActive while a cooldown
// marker exists, otherwise sets one, then rejects with ErrDailyLimitExceeded
// when the daily count has reached dailyLimit, otherwise increments it. It
// returns the daily count after a successful increment.
func (s *ThrottleStore) CheckAndMarkSendAllowed(
	ctx context.Context,
	identity string,
	cooldown time.Duration,
	dailyLimit int,
) (int64, error) {
	if identity == "" {
		return 0, errors.New("throttle requires an identity")
	}
	cooldownSeconds := int64(cooldown / time.Second)
	if cooldownSeconds < 1 {
		cooldownSeconds = 1
	}

	res, err := sendThrottleLua.Run(ctx, s.redis,
		[]string{s.cooldownKey(identity), s.dailyKey(identity)},
		cooldownSeconds,
		dailyLimit,
		SecondsUntilMidnight(s.now(), s.location),
	).Int64()
	if err != nil {
		switch err.Error() {
		case "cooldown_active":
			return 0, ErrCooldownActive
		case "daily_limit_exceeded":
			return 0, ErrDailyLimitExceeded
		default:
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return res, nil
}

// DailyCount returns the current daily count for identity.
func (s *ThrottleStore) DailyCount(ctx context.Context, identity string) (int64, error) {
	n, err := s.redis.Get(ctx, s.dailyKey(identity)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}

// SecondsUntilMidnight returns the whole seconds from now until the next
// midnight in loc, never less than one.
func SecondsUntilMidnight(now time.Time, loc *time.Location) int64 {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	secs := int64(midnight.Sub(local) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
