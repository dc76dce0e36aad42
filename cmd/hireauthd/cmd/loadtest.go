package cmd

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hirelink/hireauth/internal"
	"github.com/hirelink/hireauth/session"
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Measure session store validate and refresh latency",
	Long: `Seeds sessions into Redis and then runs a validate phase and a refresh phase
with concurrent workers, printing throughput and latency percentiles. Without
--redis-addr an in-process miniredis is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, _ := cmd.Flags().GetInt("sessions")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		ops, _ := cmd.Flags().GetInt("ops")
		if sessions <= 0 || concurrency <= 0 || ops <= 0 {
			return fmt.Errorf("sessions, concurrency and ops must be > 0")
		}

		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		var client redis.UniversalClient
		if cmd.Flags().Changed("redis-addr") {
			var err error
			if client, err = newRedis(ctx, cfg.Redis); err != nil {
				return err
			}
			fmt.Fprintf(out, "using redis at %v\n", cfg.Redis.Addrs)
		} else {
			mr, err := miniredis.Run()
			if err != nil {
				return fmt.Errorf("failed to start miniredis: %w", err)
			}
			defer mr.Close()
			client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
			fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
		}
		defer client.Close()

		store := session.NewStore(client, cfg.Session.RedisPrefix+"loadtest:", nil)
		ids, err := seedSessions(ctx, store, sessions, cfg.Session.TTL)
		if err != nil {
			return err
		}

		validate := runPhase(ops, concurrency, func(r *rand.Rand) error {
			_, err := store.Get(ctx, ids[r.Intn(len(ids))])
			return err
		})
		refresh := runPhase(ops, concurrency, func(r *rand.Rand) error {
			rec, err := store.Get(ctx, ids[r.Intn(len(ids))])
			if err != nil || rec == nil {
				return err
			}
			rec.ExpireTime = time.Now().Add(cfg.Session.TTL)
			_, err = store.Refresh(ctx, rec, cfg.Session.TTL)
			return err
		})

		fmt.Fprintln(out, "---- results ----")
		printStats(out, "validate", validate)
		printStats(out, "refresh", refresh)
		return nil
	},
}

func init() {
	loadtestCmd.Flags().Int("sessions", 10000, "Sessions to seed")
	loadtestCmd.Flags().Int("concurrency", 64, "Concurrent workers")
	loadtestCmd.Flags().Int("ops", 50000, "Operations per phase")
}

func seedSessions(ctx context.Context, store *session.Store, n int, ttl time.Duration) ([]string, error) {
	ids := make([]string, n)
	now := time.Now()
	for i := range ids {
		raw, err := internal.NewSessionID()
		if err != nil {
			return nil, err
		}
		sid := raw.String()
		rec := &session.Record{
			SessionID:   sid,
			Account:     fmt.Sprintf("loadtest-%d", i),
			UserID:      int64(i + 1),
			LoginTime:   now,
			ExpireTime:  now.Add(ttl),
			Roles:       []string{"USER"},
			Permissions: []string{"job:read"},
		}
		if err := store.Put(ctx, rec, ttl); err != nil {
			return nil, fmt.Errorf("seed session %d: %w", i, err)
		}
		ids[i] = sid
	}
	return ids, nil
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

// runPhase spreads ops calls of op over concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for cursor.Add(1) <= int64(ops) {
				t0 := time.Now()
				if err := op(r); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures.Load())
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

func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	return sorted[(len(sorted)-1)*p/100]
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
