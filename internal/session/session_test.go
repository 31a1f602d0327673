package session

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmstress/internal/profile"
)

func fixedProfile(t *testing.T, pages int, thinkSec float64, endpoints []profile.Endpoint) *profile.Profile {
	t.Helper()
	p, err := profile.New("test",
		profile.Range{Min: 60, Max: 60},
		profile.IntRange{Min: pages, Max: pages},
		profile.Range{Min: thinkSec, Max: thinkSec},
		endpoints)
	require.NoError(t, err)
	return p
}

func TestRun_ExactPageBudget(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("X-Server-ID", "web1")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := fixedProfile(t, 5, 0, []profile.Endpoint{{Template: "/", Weight: 1.0}})
	rng := rand.New(rand.NewSource(1))

	start := time.Now()
	res := Run(context.Background(), srv.Client(), p, srv.URL, rng, Options{})

	// 60s session budget, 5 pages, zero think time: exactly 5 requests,
	// finished nearly immediately.
	assert.Equal(t, uint64(5), res.Requests)
	assert.Equal(t, uint64(5), res.Success)
	assert.Equal(t, uint64(0), res.Failures)
	assert.Equal(t, int64(5), atomic.LoadInt64(&hits))
	assert.Equal(t, uint64(5), res.EndpointHits["/"])
	assert.Equal(t, uint64(5), res.ServerHits["web1"])
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRun_ZeroPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	p := fixedProfile(t, 0, 0, []profile.Endpoint{{Template: "/", Weight: 1.0}})
	res := Run(context.Background(), srv.Client(), p, srv.URL, rand.New(rand.NewSource(1)), Options{})
	assert.Zero(t, res.Requests)
}

func TestRun_CountsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := fixedProfile(t, 3, 0, []profile.Endpoint{{Template: "/", Weight: 1.0}})
	res := Run(context.Background(), srv.Client(), p, srv.URL, rand.New(rand.NewSource(1)), Options{})

	assert.Equal(t, uint64(3), res.Requests)
	assert.Equal(t, uint64(0), res.Success)
	assert.Equal(t, uint64(3), res.Failures)
}

func TestRun_TransportErrorIsFailure(t *testing.T) {
	p := fixedProfile(t, 2, 0, []profile.Endpoint{{Template: "/", Weight: 1.0}})
	client := &http.Client{Timeout: time.Second}

	// Nothing listens here.
	res := Run(context.Background(), client, p, "http://127.0.0.1:1", rand.New(rand.NewSource(1)), Options{})
	assert.Equal(t, uint64(2), res.Requests)
	assert.Equal(t, uint64(2), res.Failures)
}

func TestRun_CancelDuringThink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// Long think time so the session parks between requests.
	p := fixedProfile(t, 10, 30, []profile.Endpoint{{Template: "/", Weight: 1.0}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res := Run(ctx, srv.Client(), p, srv.URL, rand.New(rand.NewSource(1)), Options{})

	assert.Equal(t, uint64(1), res.Requests)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRun_DeadlineStopsNewRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := fixedProfile(t, 1000, 0, []profile.Endpoint{{Template: "/", Weight: 1.0}})
	opts := Options{Deadline: time.Now().Add(150 * time.Millisecond)}

	start := time.Now()
	res := Run(context.Background(), srv.Client(), p, srv.URL, rand.New(rand.NewSource(1)), opts)

	assert.Greater(t, res.Requests, uint64(0))
	assert.Less(t, res.Requests, uint64(1000))
	assert.Less(t, time.Since(start), 5*time.Second)
}

type captureObserver struct {
	calls int64
}

func (c *captureObserver) ObserveRequest(endpoint, serverID string, success bool, bytes int64, latency time.Duration) {
	atomic.AddInt64(&c.calls, 1)
}

func TestRun_NotifiesObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	obs := &captureObserver{}
	p := fixedProfile(t, 4, 0, []profile.Endpoint{{Template: "/", Weight: 1.0}})
	Run(context.Background(), srv.Client(), p, srv.URL, rand.New(rand.NewSource(1)), Options{Observer: obs})

	assert.Equal(t, int64(4), atomic.LoadInt64(&obs.calls))
}
