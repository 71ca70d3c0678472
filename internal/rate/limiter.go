package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxSecondFactorAttempts int
	SecondFactorWindow      time.Duration
}

// Limiter bounds second-factor attempts per pending login using Redis
// counters. An attempt is reserved before the code is checked, so
// concurrent requests on one pending login share a single budget. Counters
// are never reset; they expire with the window.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// reserveScript increments the counter and starts the window on the first
// hit in one round trip.
var reserveScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Reservation is one attempt taken from a pending login's budget.
type Reservation struct {
	Used int
	Max  int
}

// Last reports whether no attempts remain after this one.
func (r Reservation) Last() bool {
	return r.Max > 0 && r.Used >= r.Max
}

// ReserveSecondFactor takes one attempt for the pending login identified
// by challengeID. It returns [ErrRateLimited] when the budget was already
// spent; the code must not be checked in that case.
func (l *Limiter) ReserveSecondFactor(ctx context.Context, challengeID string) (Reservation, error) {
	if l == nil || l.config.MaxSecondFactorAttempts <= 0 {
		return Reservation{}, nil
	}
	ttl := l.config.SecondFactorWindow.Milliseconds()
	n, err := reserveScript.Run(ctx, l.redis, []string{secondFactorKey(challengeID)}, ttl).Int64()
	if err != nil {
		return Reservation{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	res := Reservation{Used: int(n), Max: l.config.MaxSecondFactorAttempts}
	if res.Used > res.Max {
		return res, ErrRateLimited
	}
	return res, nil
}

func secondFactorKey(challengeID string) string {
	return "asf:" + challengeID
}
