package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates run-wide metrics across concurrently finishing
// sessions. Every mutation is a sum or counter increment, so the final
// state is independent of completion order.
type Stats struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64
	Sessions uint64

	// Latency histogram (microseconds)
	Latency *SafeHistogram

	mu           sync.Mutex
	endpointHits map[string]uint64
	serverHits   map[string]uint64
}

func New() *Stats {
	return &Stats{
		Latency:      NewSafeHistogram(),
		endpointHits: make(map[string]uint64),
		serverHits:   make(map[string]uint64),
	}
}

// ObserveRequest records the outcome of one request. endpoint is the
// profile template the request was drawn from; serverID is the instance
// marker from the response, empty when the request never completed.
func (s *Stats) ObserveRequest(endpoint, serverID string, success bool, bytes int64, latency time.Duration) {
	atomic.AddUint64(&s.Requests, 1)
	if success {
		atomic.AddUint64(&s.Success, 1)
	} else {
		atomic.AddUint64(&s.Fail, 1)
	}
	if bytes > 0 {
		atomic.AddUint64(&s.Bytes, uint64(bytes))
	}
	s.Latency.RecordValue(latency.Microseconds())

	s.mu.Lock()
	s.endpointHits[endpoint]++
	if serverID != "" {
		s.serverHits[serverID]++
	}
	s.mu.Unlock()
}

// ObserveSession marks one session as completed.
func (s *Stats) ObserveSession() {
	atomic.AddUint64(&s.Sessions, 1)
}

func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.Fail)) / float64(reqs) * 100
}

// QuantileMs returns a latency quantile in milliseconds.
func (s *Stats) QuantileMs(q float64) float64 {
	return float64(s.Latency.ValueAtQuantile(q)) / 1000.0
}

// MeanMs returns the mean latency in milliseconds.
func (s *Stats) MeanMs() float64 {
	return s.Latency.Mean() / 1000.0
}

// MaxMs returns the worst observed latency in milliseconds.
func (s *Stats) MaxMs() int64 {
	return s.Latency.Max() / 1000
}

// EndpointHits returns a copy of the per-endpoint hit counts.
func (s *Stats) EndpointHits() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.endpointHits))
	for k, v := range s.endpointHits {
		out[k] = v
	}
	return out
}

// ServerHits returns a copy of the per-instance hit counts.
func (s *Stats) ServerHits() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.serverHits))
	for k, v := range s.serverHits {
		out[k] = v
	}
	return out
}
