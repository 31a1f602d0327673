package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest_Counts(t *testing.T) {
	s := New()

	s.ObserveRequest("/", "web-1", true, 512, 20*time.Millisecond)
	s.ObserveRequest("/search", "web-2", true, 256, 40*time.Millisecond)
	s.ObserveRequest("/search", "", false, 0, 10*time.Second)

	assert.EqualValues(t, 3, s.Requests)
	assert.EqualValues(t, 2, s.Success)
	assert.EqualValues(t, 1, s.Fail)
	assert.EqualValues(t, 768, s.Bytes)

	hits := s.EndpointHits()
	assert.EqualValues(t, 1, hits["/"])
	assert.EqualValues(t, 2, hits["/search"])

	// Failed request never reached a replica, so no server attribution.
	servers := s.ServerHits()
	assert.Len(t, servers, 2)
	assert.EqualValues(t, 1, servers["web-1"])
}

func TestErrorRate(t *testing.T) {
	s := New()
	assert.Zero(t, s.ErrorRate())

	for i := 0; i < 9; i++ {
		s.ObserveRequest("/", "web-1", true, 1, time.Millisecond)
	}
	s.ObserveRequest("/", "", false, 0, time.Millisecond)

	assert.InDelta(t, 10.0, s.ErrorRate(), 0.001)
}

func TestQuantiles(t *testing.T) {
	s := New()
	for i := 1; i <= 100; i++ {
		s.ObserveRequest("/", "web-1", true, 1, time.Duration(i)*time.Millisecond)
	}

	assert.InDelta(t, 50, s.QuantileMs(50), 1.0)
	assert.InDelta(t, 99, s.QuantileMs(99), 1.5)
	assert.EqualValues(t, 100, s.MaxMs())
}

func TestConcurrentObservers_NoLostUpdates(t *testing.T) {
	s := New()

	const workers = 20
	const perWorker = 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			server := "web-1"
			if id%2 == 1 {
				server = "web-2"
			}
			for i := 0; i < perWorker; i++ {
				s.ObserveRequest("/", server, true, 1, time.Millisecond)
			}
			s.ObserveSession()
		}(w)
	}
	wg.Wait()

	require.EqualValues(t, workers*perWorker, s.Requests)
	assert.EqualValues(t, workers, s.Sessions)

	servers := s.ServerHits()
	assert.EqualValues(t, workers*perWorker/2, servers["web-1"])
	assert.EqualValues(t, workers*perWorker/2, servers["web-2"])
	assert.EqualValues(t, workers*perWorker, s.Latency.TotalCount())
}
