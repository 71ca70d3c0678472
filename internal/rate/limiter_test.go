package rate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterTest(t *testing.T, max int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, Config{MaxSecondFactorAttempts: max, SecondFactorWindow: 5 * time.Minute}), mr
}

func TestSecondFactorBudget(t *testing.T) {
	l, _ := newLimiterTest(t, 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.ReserveSecondFactor(ctx, "c1")
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if res.Used != i || res.Last() != (i == 3) {
			t.Fatalf("reserve %d: got %+v", i, res)
		}
	}

	if _, err := l.ReserveSecondFactor(ctx, "c1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited past the budget, got %v", err)
	}

	// Other pending logins are unaffected.
	if _, err := l.ReserveSecondFactor(ctx, "c2"); err != nil {
		t.Fatalf("unrelated challenge limited: %v", err)
	}
}

func TestConcurrentReservationsShareBudget(t *testing.T) {
	l, _ := newLimiterTest(t, 3)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		granted int64
		limited int64
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.ReserveSecondFactor(ctx, "c1")
			switch {
			case err == nil:
				atomic.AddInt64(&granted, 1)
			case errors.Is(err, ErrRateLimited):
				atomic.AddInt64(&limited, 1)
			default:
				t.Errorf("reserve: %v", err)
			}
		}()
	}
	wg.Wait()

	if granted != 3 || limited != 37 {
		t.Fatalf("expected 3 granted and 37 limited, got %d/%d", granted, limited)
	}
}

func TestSecondFactorWindowExpires(t *testing.T) {
	l, mr := newLimiterTest(t, 1)
	ctx := context.Background()

	if _, err := l.ReserveSecondFactor(ctx, "c1"); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if _, err := l.ReserveSecondFactor(ctx, "c1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit after budget, got %v", err)
	}

	mr.FastForward(5*time.Minute + time.Second)

	if _, err := l.ReserveSecondFactor(ctx, "c1"); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestDisabledLimiter(t *testing.T) {
	l, _ := newLimiterTest(t, 0)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		res, err := l.ReserveSecondFactor(ctx, "c1")
		if err != nil || res.Last() {
			t.Fatalf("disabled limiter returned %+v/%v", res, err)
		}
	}

	var nilLimiter *Limiter
	if _, err := nilLimiter.ReserveSecondFactor(ctx, "c1"); err != nil {
		t.Fatalf("nil limiter returned %v", err)
	}
}

func TestUnavailableRedis(t *testing.T) {
	l, mr := newLimiterTest(t, 3)
	mr.Close()

	if _, err := l.ReserveSecondFactor(context.Background(), "c1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
