package authcore

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// issueAndValidateConcurrently creates sessions for one user from many
// goroutines while others keep validating tokens issued beforehand.
func issueAndValidateConcurrently(t *testing.T, engine *Engine, userID int64) {
	t.Helper()
	ctx := context.Background()

	const seeded, creators, validators = 4, 24, 8

	var issued []string
	for i := 0; i < seeded; i++ {
		token, err := engine.CreateSession(ctx, userID)
		if err != nil {
			t.Fatalf("seed CreateSession failed: %v", err)
		}
		issued = append(issued, token)
	}

	start := make(chan struct{})
	tokens := make(chan string, creators)
	errs := make(chan error, creators)
	rejected := make(chan string, validators*seeded)

	var wg sync.WaitGroup
	for i := 0; i < creators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			token, err := engine.CreateSession(ctx, userID)
			if err != nil {
				errs <- err
				return
			}
			tokens <- token
		}()
	}
	for i := 0; i < validators; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for _, token := range issued {
				if uid, ok := engine.ValidateSession(ctx, token); !ok || uid != userID {
					rejected <- token
				}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(tokens)
	close(errs)
	close(rejected)

	for err := range errs {
		t.Fatalf("concurrent CreateSession failed: %v", err)
	}
	for token := range rejected {
		t.Fatalf("issued token %q stopped validating under load", token)
	}

	seen := make(map[string]struct{}, seeded+creators)
	for _, token := range issued {
		seen[token] = struct{}{}
	}
	for token := range tokens {
		if _, dup := seen[token]; dup {
			t.Fatalf("token issued twice: %q", token)
		}
		seen[token] = struct{}{}
		if uid, ok := engine.ValidateSession(ctx, token); !ok || uid != userID {
			t.Fatalf("fresh token did not validate: %d/%v", uid, ok)
		}
	}
	if len(seen) != seeded+creators {
		t.Fatalf("expected %d distinct tokens, got %d", seeded+creators, len(seen))
	}
}

func TestConcurrentSessionIssueMemoryStore(t *testing.T) {
	te := newTestEngine(t, testConfig())
	issueAndValidateConcurrently(t, te.Engine, 42)

	if got := te.store.sessionCount(); got != 28 {
		t.Fatalf("expected 28 stored sessions, got %d", got)
	}
}

func TestConcurrentSessionIssueRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	engine, err := New().
		WithConfig(testConfig()).
		WithUserStore(newMemStore()).
		WithRedis(rdb).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	issueAndValidateConcurrently(t, engine, 42)
}
