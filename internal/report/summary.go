// Package report turns accumulated run metrics into the machine-parsable
// summary the orchestration layer scrapes, and aggregates fairness across
// target replicas.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"swarmstress/internal/stats"
)

// Summary is the append-only result record of one agent invocation.
type Summary struct {
	AgentID     string
	Target      string
	Concurrency int
	Start       time.Time
	End         time.Time

	Sessions uint64
	Requests uint64
	Success  uint64
	Failures uint64
	Bytes    uint64

	MeanMs float64
	P50Ms  float64
	P90Ms  float64
	P95Ms  float64
	P99Ms  float64
	MaxMs  int64

	EndpointHits map[string]uint64
	ServerHits   map[string]uint64
}

// Build snapshots the run-wide stats into a Summary.
func Build(agentID, target string, concurrency int, start, end time.Time, s *stats.Stats) *Summary {
	return &Summary{
		AgentID:      agentID,
		Target:       target,
		Concurrency:  concurrency,
		Start:        start,
		End:          end,
		Sessions:     s.Sessions,
		Requests:     s.Requests,
		Success:      s.Success,
		Failures:     s.Fail,
		Bytes:        s.Bytes,
		MeanMs:       s.MeanMs(),
		P50Ms:        s.QuantileMs(50),
		P90Ms:        s.QuantileMs(90),
		P95Ms:        s.QuantileMs(95),
		P99Ms:        s.QuantileMs(99),
		MaxMs:        s.MaxMs(),
		EndpointHits: s.EndpointHits(),
		ServerHits:   s.ServerHits(),
	}
}

// WriteText emits the summary as labeled key/value lines, one fact per
// line, so a log scraper can pull totals with grep alone.
func (s *Summary) WriteText(w io.Writer) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format+"\n", args...)
		}
	}

	p("run_summary_begin: %s", s.AgentID)
	p("agent_id: %s", s.AgentID)
	p("target: %s", s.Target)
	p("concurrency: %d", s.Concurrency)
	p("start_time: %s", s.Start.Format(time.RFC3339))
	p("end_time: %s", s.End.Format(time.RFC3339))
	p("duration_seconds: %.1f", s.End.Sub(s.Start).Seconds())
	p("sessions_completed: %d", s.Sessions)
	p("total_requests: %d", s.Requests)
	p("success_count: %d", s.Success)
	p("error_count: %d", s.Failures)
	p("bytes_read: %d", s.Bytes)
	p("latency_mean_ms: %.2f", s.MeanMs)
	p("latency_p50_ms: %.2f", s.P50Ms)
	p("latency_p90_ms: %.2f", s.P90Ms)
	p("latency_p95_ms: %.2f", s.P95Ms)
	p("latency_p99_ms: %.2f", s.P99Ms)
	p("latency_max_ms: %d", s.MaxMs)

	for _, k := range sortedKeys(s.EndpointHits) {
		p("endpoint_hits: %s %d", k, s.EndpointHits[k])
	}
	for _, k := range sortedKeys(s.ServerHits) {
		p("server_hits: %s %d", k, s.ServerHits[k])
	}
	p("run_summary_end: %s", s.AgentID)
	return err
}

// AppendToFile appends the text form to the well-known agent log.
func (s *Summary) AppendToFile(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open summary log: %w", err)
	}
	defer f.Close()
	return s.WriteText(f)
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
