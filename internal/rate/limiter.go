package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config tunes the failed-login window.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// incrWindow increments KEYS[1] and starts its window on the first hit, so a
// crash between INCR and PEXPIRE cannot leave a counter without a TTL.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Limiter counts failed logins per email and, optionally, per client IP in
// fixed windows of LoginCooldownDuration.
type Limiter struct {
	rdb redis.UniversalClient
	cfg Config
}

// New returns a Limiter on rdb.
func New(rdb redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{rdb: rdb, cfg: cfg}
}

// keys lists the counters a login from (email, ip) touches.
func (l *Limiter) keys(email, ip string) []string {
	keys := []string{emailKey(email)}
	if l.cfg.EnableIPThrottle && ip != "" {
		keys = append(keys, ipKey(ip))
	}
	return keys
}

// CheckLogin returns ErrRateLimited while any counter for (email, ip) is
// over budget.
func (l *Limiter) CheckLogin(ctx context.Context, email, ip string) error {
	for _, key := range l.keys(email, ip) {
		n, err := l.count(ctx, key)
		if err != nil {
			return err
		}
		if n > l.cfg.MaxLoginAttempts {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failure. It returns ErrRateLimited when this
// failure pushed a counter over budget.
func (l *Limiter) IncrementLogin(ctx context.Context, email, ip string) error {
	window := l.cfg.LoginCooldownDuration.Milliseconds()
	limited := false
	for _, key := range l.keys(email, ip) {
		n, err := incrWindow.Run(ctx, l.rdb, []string{key}, window).Int()
		if err != nil {
			return unavailable(err)
		}
		limited = limited || n > l.cfg.MaxLoginAttempts
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the counters after a successful login.
func (l *Limiter) ResetLogin(ctx context.Context, email, ip string) error {
	if err := l.rdb.Del(ctx, l.keys(email, ip)...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// LoginAttempts returns the failures recorded for email in the current window.
func (l *Limiter) LoginAttempts(ctx context.Context, email string) (int, error) {
	return l.count(ctx, emailKey(email))
}

func (l *Limiter) count(ctx context.Context, key string) (int, error) {
	n, err := l.rdb.Get(ctx, key).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, unavailable(err)
	case n < 0:
		return 0, nil
	}
	return n, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}

func emailKey(email string) string {
	return "login_attempts:{" + strings.ToLower(strings.TrimSpace(email)) + "}"
}

func ipKey(ip string) string {
	return "login_attempts_ip:{" + ip + "}"
}
