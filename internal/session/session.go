// Package session runs one simulated user to completion: it draws the
// session's budgets from a behavior profile, walks a weighted random
// sequence of endpoints with think-time pauses, and accumulates outcomes.
package session

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"swarmstress/internal/profile"
)

// Result is the accumulated outcome of a single session.
type Result struct {
	Profile      string
	Requests     uint64
	Success      uint64
	Failures     uint64
	Bytes        int64
	Latencies    []time.Duration
	EndpointHits map[string]uint64
	ServerHits   map[string]uint64
}

// Observer receives each request outcome as it happens, in addition to the
// per-session Result. Used by the agent for live run-wide aggregation.
type Observer interface {
	ObserveRequest(endpoint, serverID string, success bool, bytes int64, latency time.Duration)
}

// Options tunes one session run.
type Options struct {
	// Deadline is the run-window cutoff: once passed, no new request is
	// started. The request in flight is allowed to finish.
	Deadline time.Time
	// Observer, when set, is notified of every request outcome.
	Observer Observer
}

// Run executes one full session against baseURL. The client's timeout
// bounds each request; ctx cancellation abandons pending requests and
// think-time sleeps promptly. Run never returns an error: per-request
// failures are counted, not propagated.
func Run(ctx context.Context, client *http.Client, p *profile.Profile, baseURL string, rng *rand.Rand, opts Options) Result {
	res := Result{
		Profile:      p.Name,
		EndpointHits: make(map[string]uint64),
		ServerHits:   make(map[string]uint64),
	}

	budget := p.DrawDuration(rng)
	pages := p.DrawPages(rng)
	if pages <= 0 || budget <= 0 {
		return res
	}

	start := time.Now()
	for i := 0; i < pages; i++ {
		if ctx.Err() != nil {
			break
		}
		if !opts.Deadline.IsZero() && !time.Now().Before(opts.Deadline) {
			break
		}
		if time.Since(start) >= budget {
			break
		}

		template := p.PickEndpoint(rng)
		path := profile.Resolve(template, rng)

		serverID, bytes, latency, ok := doRequest(ctx, client, baseURL+path)

		res.Requests++
		res.EndpointHits[template]++
		res.Latencies = append(res.Latencies, latency)
		if ok {
			res.Success++
			res.Bytes += bytes
		} else {
			res.Failures++
		}
		if serverID != "" {
			res.ServerHits[serverID]++
		}
		if opts.Observer != nil {
			opts.Observer.ObserveRequest(template, serverID, ok, bytes, latency)
		}

		// Think before the next page, unless the time budget is spent.
		if i+1 < pages && time.Since(start) < budget {
			if !sleep(ctx, p.DrawThink(rng)) {
				break
			}
		}
	}

	return res
}

// doRequest issues one GET and classifies the outcome. A failure is any
// transport error, timeout, or non-2xx status.
func doRequest(ctx context.Context, client *http.Client, url string) (serverID string, bytes int64, latency time.Duration, ok bool) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, time.Since(start), false
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, time.Since(start), false
	}
	defer resp.Body.Close()

	n, _ := io.Copy(io.Discard, resp.Body)
	latency = time.Since(start)
	serverID = resp.Header.Get("X-Server-ID")
	ok = resp.StatusCode >= 200 && resp.StatusCode < 300
	return serverID, n, latency, ok
}

// sleep waits for d or until ctx is cancelled. Returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
