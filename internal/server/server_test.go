package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swarmstress/internal/stress"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := New(Config{
		Port:     0,
		ServerID: "test-node",
		Limits: stress.Limits{
			MaxCPUWorkers: 4,
			MaxMemoryMB:   64,
			MaxNetworkMB:  8,
			MaxDuration:   5 * time.Second,
		},
	}, nil)
	t.Cleanup(s.Stress().Close)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test-node", body["server_id"])

	rec = get(t, s, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])
}

func TestContentEndpointsAreTracked(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-node", rec.Header().Get("X-Server-ID"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "homepage", rec.Header().Get("X-Endpoint"))
	assert.NotEmpty(t, rec.Header().Get("X-Response-Time-Ms"))

	get(t, s, "/api/data")
	get(t, s, "/product/42")
	get(t, s, "/search?q=laptop")

	snap := s.Tally().Snapshot()
	assert.Equal(t, uint64(4), snap.Total)
	assert.Equal(t, uint64(1), snap.ByEndpoint["homepage"])
	assert.Equal(t, uint64(1), snap.ByEndpoint["product"])
}

func TestMonitoringEndpointsAreNotTracked(t *testing.T) {
	s := newTestServer(t)

	get(t, s, "/health")
	get(t, s, "/metrics")
	get(t, s, "/request-stats")

	assert.Zero(t, s.Tally().Snapshot().Total)
}

func TestMetricsJSON(t *testing.T) {
	s := newTestServer(t)
	get(t, s, "/")
	get(t, s, "/dashboard")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "test-node", body["server_id"])
	assert.EqualValues(t, 2, body["total_requests"])
	assert.Contains(t, body, "by_endpoint")
	assert.Contains(t, body, "runtime")
}

func TestRequestStats(t *testing.T) {
	s := newTestServer(t)
	get(t, s, "/checkout")

	rec := get(t, s, "/request-stats")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "test-node", body["server_id"])
	assert.EqualValues(t, 1, body["total_requests"])
}

func TestPrometheusExposition(t *testing.T) {
	s := newTestServer(t)
	get(t, s, "/")

	rec := get(t, s, "/metrics/prometheus")
	require.Equal(t, http.StatusOK, rec.Code)
	text, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "swarmstress_requests_total")
	assert.Contains(t, string(text), "swarmstress_stress_jobs_active")
}

func TestExtremeCPU_AcksImmediately(t *testing.T) {
	s := newTestServer(t)

	start := time.Now()
	rec := get(t, s, "/extreme/cpu?duration=2&workers=2")
	elapsed := time.Since(start)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Less(t, elapsed, 200*time.Millisecond)
	body := decode(t, rec)
	assert.Equal(t, "accepted", body["status"])
	job := body["job"].(map[string]any)
	assert.NotEmpty(t, job["job_id"])
	assert.Equal(t, "cpu", job["kind"])
}

func TestExtremeMemory_AcksAndReleases(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/extreme/memory?mb=16&hold=1")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.EqualValues(t, 16, decode(t, rec)["memory_mb"])

	require.Eventually(t, func() bool {
		return s.Stress().ActiveJobs() == 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestExtremeCPUMem_Ack(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/extreme/cpu-mem?cpu_duration=1&workers=1&memory_mb=8")
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decode(t, rec)["job"].(map[string]any)
	assert.Equal(t, "cpu-mem", job["kind"])
}

func TestExtreme_RejectsBadParams(t *testing.T) {
	s := newTestServer(t)

	cases := []string{
		"/extreme/cpu?duration=abc",
		"/extreme/cpu?duration=0",
		"/extreme/cpu?workers=100",
		"/extreme/memory?mb=-1",
		"/extreme/memory?mb=999999",
		"/extreme/cpu-mem?memory_mb=nope",
		"/extreme/all?network_mb=999",
		"/extreme/all?network_mb=-5",
	}
	for _, path := range cases {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, decode(t, rec), "error", path)
	}

	// A rejected request must not have launched anything.
	assert.Zero(t, s.Stress().ActiveJobs())
}

func TestExtremeAll_DefaultSkipsNetwork(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/extreme/all?cpu_duration=1&workers=1&memory_mb=8")
	require.Equal(t, http.StatusAccepted, rec.Code)
	job := decode(t, rec)["job"].(map[string]any)
	assert.Equal(t, "all", job["kind"])
}

func TestExtremeAll_StreamsNetworkPayload(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/extreme/all?cpu_duration=1&workers=1&memory_mb=8&network_mb=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Job-ID"))
	assert.Equal(t, "2", rec.Header().Get("X-Network-MB"))
	assert.Equal(t, 2<<20, rec.Body.Len())
}

func TestMediaStreamsRequestedSize(t *testing.T) {
	s := newTestServer(t)

	rec := get(t, s, "/media/7?size_mb=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1<<20, rec.Body.Len())

	rec = get(t, s, "/media/7?size_mb=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
