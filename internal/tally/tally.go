// Package tally counts which backend instance served each request, the
// raw material for load-balancer fairness analysis.
package tally

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Recorder tracks request counts for a serving process. The instance id
// is fixed at construction; every recorded request bumps the total, the
// endpoint's count and the instance's count. All mutations are sums, so
// concurrent recording is order-independent.
type Recorder struct {
	instanceID string
	total      uint64

	mu         sync.Mutex
	byEndpoint map[string]uint64
	byInstance map[string]uint64
}

// InstanceCount is one (identifier, count) pair of a tally snapshot.
type InstanceCount struct {
	ID       string `json:"id"`
	Requests uint64 `json:"requests"`
}

// Snapshot is a point-in-time view of the tally. Instances are ordered
// by id. Total always equals the sum of the instance counts.
type Snapshot struct {
	InstanceID string          `json:"server_id"`
	Total      uint64          `json:"total_requests"`
	Instances  []InstanceCount `json:"instances"`
	ByEndpoint map[string]uint64 `json:"by_endpoint"`
}

func NewRecorder(instanceID string) *Recorder {
	return &Recorder{
		instanceID: instanceID,
		byEndpoint: make(map[string]uint64),
		byInstance: make(map[string]uint64),
	}
}

// InstanceID returns the stable identifier assigned at startup.
func (r *Recorder) InstanceID() string { return r.instanceID }

// Record counts one served request against this instance.
func (r *Recorder) Record(endpoint string) {
	atomic.AddUint64(&r.total, 1)
	r.mu.Lock()
	r.byEndpoint[endpoint]++
	r.byInstance[r.instanceID]++
	r.mu.Unlock()
}

// Total returns the number of requests served since process start.
func (r *Recorder) Total() uint64 { return atomic.LoadUint64(&r.total) }

// Snapshot copies the current tally. Reads race benignly with in-flight
// increments; no increment is ever lost or double-counted.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		InstanceID: r.instanceID,
		ByEndpoint: make(map[string]uint64, len(r.byEndpoint)),
	}
	for k, v := range r.byEndpoint {
		snap.ByEndpoint[k] = v
	}

	ids := make([]string, 0, len(r.byInstance))
	for id := range r.byInstance {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		snap.Instances = append(snap.Instances, InstanceCount{ID: id, Requests: r.byInstance[id]})
		snap.Total += r.byInstance[id]
	}
	return snap
}

// Track wraps a handler so every response carries the instance marker and
// tracing headers, and the hit lands in the tally under the endpoint name.
func (r *Recorder) Track(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		w.Header().Set("X-Server-ID", r.instanceID)
		w.Header().Set("X-Request-ID", uuid.New().String())
		w.Header().Set("X-Endpoint", endpoint)

		tw := &trackedWriter{ResponseWriter: w, start: start}
		next(tw, req)
		r.Record(endpoint)
	}
}

// trackedWriter stamps the processing time just before the first byte of
// the response goes out, the last moment a header can still be set.
type trackedWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (t *trackedWriter) WriteHeader(code int) {
	if !t.wroteHeader {
		t.wroteHeader = true
		ms := float64(time.Since(t.start).Microseconds()) / 1000.0
		t.Header().Set("X-Response-Time-Ms", strconv.FormatFloat(ms, 'f', 2, 64))
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *trackedWriter) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	return t.ResponseWriter.Write(b)
}

func (t *trackedWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
