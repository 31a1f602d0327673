package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmstress/internal/profile"
)

func quickRegistry(t *testing.T) *profile.Registry {
	t.Helper()
	p, err := profile.New("quick",
		profile.Range{Min: 60, Max: 60},
		profile.IntRange{Min: 2, Max: 2},
		profile.Range{Min: 0, Max: 0},
		[]profile.Endpoint{{Template: "/", Weight: 1.0}})
	require.NoError(t, err)
	reg, err := profile.NewRegistry([]*profile.Profile{p}, []float64{1})
	require.NoError(t, err)
	return reg
}

func TestRunner_MaintainsPoolAndAggregates(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("X-Server-ID", "web1")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	r := NewRunner(Config{
		TargetURL:   srv.URL,
		Concurrency: 4,
		Duration:    400 * time.Millisecond,
		Timeout:     2 * time.Second,
		Seed:        1,
		Registry:    quickRegistry(t),
	}, nil, nil)

	start := time.Now()
	sum := r.Run(context.Background())
	elapsed := time.Since(start)

	// Deadline plus at most one request timeout.
	assert.Less(t, elapsed, 3*time.Second)
	assert.Greater(t, sum.Sessions, uint64(0))
	assert.Greater(t, sum.Requests, uint64(0))
	assert.Equal(t, sum.Requests, sum.Success+sum.Failures)
	assert.Equal(t, uint64(atomic.LoadInt64(&hits)), sum.Requests)
	assert.Equal(t, sum.Requests, sum.ServerHits["web1"])
	assert.Zero(t, r.Active())
}

func TestRunner_StopSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	// Long run window; the cancel must end it early.
	r := NewRunner(Config{
		TargetURL:   srv.URL,
		Concurrency: 8,
		Duration:    time.Minute,
		Timeout:     2 * time.Second,
		Registry:    quickRegistry(t),
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	sum := r.Run(ctx)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Greater(t, sum.Requests, uint64(0))
}

func TestRunner_PublishesSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	updates := make(SnapshotChan, 100)
	r := NewRunner(Config{
		TargetURL:   srv.URL,
		Concurrency: 2,
		Duration:    600 * time.Millisecond,
		Registry:    quickRegistry(t),
	}, nil, updates)

	r.Run(context.Background())

	select {
	case snap := <-updates:
		assert.GreaterOrEqual(t, snap.Requests, uint64(0))
	default:
		t.Fatal("expected at least one snapshot")
	}
}
