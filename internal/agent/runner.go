// Package agent maintains a pool of concurrently running user sessions
// against a target for a fixed window and aggregates their results.
package agent

import (
	"context"
	"crypto/tls"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"swarmstress/internal/profile"
	"swarmstress/internal/report"
	"swarmstress/internal/session"
	"swarmstress/internal/stats"
)

// Config describes one agent invocation.
type Config struct {
	TargetURL   string
	Concurrency int
	Duration    time.Duration
	Timeout     time.Duration
	Seed        int64
	Registry    *profile.Registry
}

// Snapshot is a cheap copy of live run metrics, pushed to the UI tickers.
type Snapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Sessions uint64
	Active   int64

	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs int64

	ServerHits map[string]uint64
	Elapsed    time.Duration
}

// SnapshotChan carries live updates; sends are non-blocking, slow
// consumers just miss frames.
type SnapshotChan chan Snapshot

type Runner struct {
	cfg     Config
	logger  *zap.Logger
	agentID string

	Stats   *stats.Stats
	Client  *http.Client
	Updates SnapshotChan

	active int64
	start  time.Time
}

func NewRunner(cfg Config, logger *zap.Logger, updates SnapshotChan) *Runner {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	if updates == nil {
		updates = make(SnapshotChan, 10)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Registry == nil {
		cfg.Registry = profile.Builtin()
	}

	return &Runner{
		cfg:     cfg,
		logger:  logger,
		agentID: uuid.New().String(),
		Stats:   stats.New(),
		Client:  &http.Client{Timeout: timeout, Transport: t},
		Updates: updates,
	}
}

// AgentID returns this invocation's unique id.
func (r *Runner) AgentID() string { return r.agentID }

// Active returns the number of sessions currently running.
func (r *Runner) Active() int64 { return atomic.LoadInt64(&r.active) }

// Run keeps exactly Concurrency sessions active until the window closes,
// starting a replacement the moment a session's budgets run out. After the
// deadline no new sessions start; cancelling ctx aborts in-flight requests
// and think sleeps within one request timeout. Returns the merged summary.
func (r *Runner) Run(ctx context.Context) *report.Summary {
	r.start = time.Now()
	deadline := r.start.Add(r.cfg.Duration)

	r.logger.Info("agent run starting",
		zap.String("agent_id", r.agentID),
		zap.String("target", r.cfg.TargetURL),
		zap.Int("concurrency", r.cfg.Concurrency),
		zap.Duration("duration", r.cfg.Duration),
	)

	tickCtx, stopTicks := context.WithCancel(context.Background())
	defer stopTicks()
	go r.tickLoop(tickCtx, 200*time.Millisecond)

	seed := r.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(workerSeed int64) {
			defer wg.Done()
			r.worker(ctx, deadline, rand.New(rand.NewSource(workerSeed)))
		}(seed + int64(i))
	}
	wg.Wait()

	end := time.Now()
	sum := report.Build(r.agentID, r.cfg.TargetURL, r.cfg.Concurrency, r.start, end, r.Stats)

	r.logger.Info("agent run finished",
		zap.String("agent_id", r.agentID),
		zap.Uint64("sessions", sum.Sessions),
		zap.Uint64("requests", sum.Requests),
		zap.Uint64("errors", sum.Failures),
		zap.Duration("elapsed", end.Sub(r.start)),
	)
	return sum
}

// worker runs back-to-back sessions until the window deadline, so the
// active session count stays at the configured concurrency.
func (r *Runner) worker(ctx context.Context, deadline time.Time, rng *rand.Rand) {
	for ctx.Err() == nil && time.Now().Before(deadline) {
		p := r.cfg.Registry.Select(rng)

		atomic.AddInt64(&r.active, 1)
		session.Run(ctx, r.Client, p, r.cfg.TargetURL, rng, session.Options{
			Deadline: deadline,
			Observer: r.Stats,
		})
		atomic.AddInt64(&r.active, -1)

		r.Stats.ObserveSession()
	}
}

func (r *Runner) tickLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendUpdate()
		}
	}
}

func (r *Runner) sendUpdate() {
	snap := Snapshot{
		Requests:   atomic.LoadUint64(&r.Stats.Requests),
		Success:    atomic.LoadUint64(&r.Stats.Success),
		Fail:       atomic.LoadUint64(&r.Stats.Fail),
		Sessions:   atomic.LoadUint64(&r.Stats.Sessions),
		Active:     atomic.LoadInt64(&r.active),
		P50Ms:      r.Stats.QuantileMs(50),
		P90Ms:      r.Stats.QuantileMs(90),
		P99Ms:      r.Stats.QuantileMs(99),
		MaxMs:      r.Stats.MaxMs(),
		ServerHits: r.Stats.ServerHits(),
		Elapsed:    time.Since(r.start),
	}

	select {
	case r.Updates <- snap:
	default:
		// Drop the frame if the consumer is behind.
	}
}
