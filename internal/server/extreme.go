package server

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"swarmstress/internal/stress"
)

// Saturation handlers acknowledge with 202 and a job descriptor; the
// work itself runs detached in the stress manager until the deadline.

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func secondsParam(r *http.Request, name string, def int) (time.Duration, error) {
	v, err := intParam(r, name, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

func badParam(w http.ResponseWriter, name string, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": "invalid " + name + ": " + err.Error(),
	})
}

func (s *Server) accept(w http.ResponseWriter, job stress.Job, extra map[string]any) {
	s.metrics.StressJobs.WithLabelValues(string(job.Kind)).Inc()
	body := map[string]any{
		"status":    "accepted",
		"server_id": s.cfg.ServerID,
		"job":       job,
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusAccepted, body)
}

func (s *Server) handleExtremeCPU(w http.ResponseWriter, r *http.Request) {
	duration, err := secondsParam(r, "duration", 5)
	if err != nil {
		badParam(w, "duration", err)
		return
	}
	workers, err := intParam(r, "workers", 4)
	if err != nil {
		badParam(w, "workers", err)
		return
	}

	job, err := s.stress.StartCPU(stress.CPUParams{Duration: duration, Workers: workers})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.accept(w, job, map[string]any{"workers": workers})
}

func (s *Server) handleExtremeMemory(w http.ResponseWriter, r *http.Request) {
	mb, err := intParam(r, "mb", 512)
	if err != nil {
		badParam(w, "mb", err)
		return
	}
	hold, err := secondsParam(r, "hold", 5)
	if err != nil {
		badParam(w, "hold", err)
		return
	}

	job, err := s.stress.StartMemory(stress.MemoryParams{MB: mb, Hold: hold})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.accept(w, job, map[string]any{"memory_mb": mb})
}

func (s *Server) handleExtremeCPUMem(w http.ResponseWriter, r *http.Request) {
	cpuDur, err := secondsParam(r, "cpu_duration", 5)
	if err != nil {
		badParam(w, "cpu_duration", err)
		return
	}
	workers, err := intParam(r, "workers", 4)
	if err != nil {
		badParam(w, "workers", err)
		return
	}
	mb, err := intParam(r, "memory_mb", 256)
	if err != nil {
		badParam(w, "memory_mb", err)
		return
	}

	job, err := s.stress.StartCPUMemory(
		stress.CPUParams{Duration: cpuDur, Workers: workers},
		stress.MemoryParams{MB: mb, Hold: cpuDur},
	)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.accept(w, job, map[string]any{"workers": workers, "memory_mb": mb})
}

// handleExtremeAll saturates CPU and memory in the background. When
// network_mb is explicitly positive it also streams that much payload on
// this connection, so the caller gets the network leg synchronously.
func (s *Server) handleExtremeAll(w http.ResponseWriter, r *http.Request) {
	cpuDur, err := secondsParam(r, "cpu_duration", 5)
	if err != nil {
		badParam(w, "cpu_duration", err)
		return
	}
	workers, err := intParam(r, "workers", 4)
	if err != nil {
		badParam(w, "workers", err)
		return
	}
	mb, err := intParam(r, "memory_mb", 256)
	if err != nil {
		badParam(w, "memory_mb", err)
		return
	}
	netMB, err := intParam(r, "network_mb", 0)
	if err != nil {
		badParam(w, "network_mb", err)
		return
	}
	// Zero means no network leg; anything else must pass validation
	// before the cpu+memory job launches, so a bad value allocates
	// nothing.
	if netMB != 0 {
		if err := s.stress.ValidateNetwork(stress.NetworkParams{MB: netMB}); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
	}

	job, err := s.stress.StartAll(
		stress.CPUParams{Duration: cpuDur, Workers: workers},
		stress.MemoryParams{MB: mb, Hold: cpuDur},
	)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	if netMB == 0 {
		s.accept(w, job, map[string]any{"workers": workers, "memory_mb": mb})
		return
	}

	s.metrics.StressJobs.WithLabelValues(string(job.Kind)).Inc()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Job-ID", job.ID)
	w.Header().Set("X-Network-MB", strconv.Itoa(netMB))
	written, err := stress.WritePayload(r.Context(), w, netMB)
	if err != nil {
		s.logger.Debug("network leg aborted",
			zap.String("job_id", job.ID),
			zap.Int64("bytes_written", written),
			zap.Error(err),
		)
	}
}
