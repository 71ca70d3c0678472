package rate

import "errors"

var (
	// ErrRateLimited is returned once a pending login has no attempts left.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is returned when the counter backend cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
