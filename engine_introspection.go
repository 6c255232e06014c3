package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/credential"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// Health pings the cache. A nil engine reports unavailable.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.redis == nil {
		return HealthStatus{}
	}

	start := time.Now()
	err := e.redis.Ping(ctx).Err()
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   time.Since(start),
	}
}

// GetLoginAttempts returns the failed-login count recorded for email in the
// current throttle window. It is zero when login throttling is disabled.
func (e *Engine) GetLoginAttempts(ctx context.Context, email string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if e.limiter == nil || email == "" {
		return 0, nil
	}

	n, err := e.limiter.LoginAttempts(ctx, credential.NormalizeEmail(email))
	if err != nil {
		return 0, storeUnavailable(err)
	}
	return n, nil
}
