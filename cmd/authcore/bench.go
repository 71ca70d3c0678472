package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pymesuite/authcore"
)

func runBench(ctx context.Context, env *cliEnv, args []string) error {
	fs := newFlags("bench")
	sessions := fs.Int("sessions", 10000, "number of sessions to seed")
	concurrency := fs.Int("concurrency", 64, "number of concurrent workers")
	ops := fs.Int("ops", 100000, "operations per phase")
	module := fs.String("module", "dashboard", "module for the authorize phase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		return fmt.Errorf("sessions, concurrency, and ops must be > 0")
	}

	rt, err := openRuntime(ctx, env.fc, env.logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	owner, err := rt.store.FindUserByUsername(ctx, rt.engine.Config().Bootstrap.Username)
	if err != nil {
		return err
	}

	tokens := make([]string, *sessions)
	fmt.Fprintf(env.stdout, "seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range tokens {
		tok, err := rt.engine.CreateSession(ctx, owner.ID)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		tokens[i] = tok
	}
	fmt.Fprintf(env.stdout, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) bool {
		_, ok := rt.engine.ValidateSession(ctx, tokens[r.Intn(len(tokens))])
		return ok
	})
	authorize := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand) bool {
		_, allowed, err := rt.engine.Authorize(ctx, tokens[r.Intn(len(tokens))], *module, "view")
		return err == nil && allowed
	})

	fmt.Fprintln(env.stdout, "---- results ----")
	printStats(env.stdout, "validate", validate)
	printStats(env.stdout, "authorize", authorize)
	printHistogram(env.stdout, rt.engine.MetricsSnapshot())
	return nil
}

// runPhase spreads ops calls of op over concurrency workers. op reports
// success; failures are counted.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				ok := op(r)
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printHistogram(w io.Writer, snap authcore.MetricsSnapshot) {
	buckets := snap.Histograms[authcore.MetricValidateLatency]
	if len(buckets) == 0 {
		return
	}
	fmt.Fprint(w, "validate latency buckets:")
	for i, n := range buckets {
		fmt.Fprintf(w, " %s=%d", authcore.LatencyBucketLabel(i), n)
	}
	fmt.Fprintln(w)
}
