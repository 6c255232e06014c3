package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter exceeds its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps cache I/O failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
