package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// InstanceShare is one backend replica's slice of the total traffic.
type InstanceShare struct {
	ID       string
	Requests uint64
	Share    float64
}

// FairnessReport summarizes how evenly requests landed across replicas.
// Deviation is max share minus min share; 0 means a perfectly even split.
type FairnessReport struct {
	Instances []InstanceShare
	Total     uint64
	Deviation float64
}

// Fairness computes shares and deviation from per-instance tallies.
// Instances are ordered by id for stable output.
func Fairness(tallies map[string]uint64) FairnessReport {
	var rep FairnessReport
	for _, count := range tallies {
		rep.Total += count
	}

	ids := make([]string, 0, len(tallies))
	for id := range tallies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	minShare, maxShare := 1.0, 0.0
	for _, id := range ids {
		share := 0.0
		if rep.Total > 0 {
			share = float64(tallies[id]) / float64(rep.Total)
		}
		rep.Instances = append(rep.Instances, InstanceShare{ID: id, Requests: tallies[id], Share: share})
		if share < minShare {
			minShare = share
		}
		if share > maxShare {
			maxShare = share
		}
	}
	if len(rep.Instances) > 0 {
		rep.Deviation = maxShare - minShare
	}
	return rep
}

// WriteText emits the report as greppable labeled lines.
func (r FairnessReport) WriteText(w io.Writer) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format+"\n", args...)
		}
	}
	p("fairness_total_requests: %d", r.Total)
	for _, inst := range r.Instances {
		p("fairness_instance: %s %d %.4f", inst.ID, inst.Requests, inst.Share)
	}
	p("fairness_deviation: %.4f", r.Deviation)
	return err
}

type metricsResponse struct {
	ServerID      string `json:"server_id"`
	TotalRequests uint64 `json:"total_requests"`
}

// PollTargets fetches /metrics from every target base URL concurrently and
// merges the per-instance totals. A replica that cannot be reached fails
// the whole poll; fairness math over a partial view would be misleading.
func PollTargets(ctx context.Context, client *http.Client, targets []string) (map[string]uint64, error) {
	var mu sync.Mutex
	tallies := make(map[string]uint64)

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, target+"/metrics", nil)
			if err != nil {
				return fmt.Errorf("poll %s: %w", target, err)
			}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("poll %s: %w", target, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("poll %s: unexpected status %d", target, resp.StatusCode)
			}

			var m metricsResponse
			if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
				return fmt.Errorf("poll %s: decode metrics: %w", target, err)
			}

			mu.Lock()
			tallies[m.ServerID] += m.TotalRequests
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tallies, nil
}
