package server

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"swarmstress/internal/stress"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	dbTime := simulateQuery(querySimple)
	cpuTime := simulateCPU(cpuLight)

	writeJSON(w, http.StatusOK, map[string]any{
		"page":      "homepage",
		"message":   "Welcome",
		"server_id": s.cfg.ServerID,
		"processing": map[string]any{
			"db_query_ms": dbTime.Milliseconds(),
			"cpu_work_ms": cpuTime.Milliseconds(),
		},
	})
}

func (s *Server) handleAPIData(w http.ResponseWriter, r *http.Request) {
	dbTime := simulateQuery(queryMedium)
	cpuTime := simulateCPU(cpuMedium)

	items := make([]map[string]any, 50)
	for i := range items {
		status := "active"
		if rand.Intn(2) == 1 {
			status = "pending"
		}
		items[i] = map[string]any{"id": i, "value": 100 + rand.Intn(900), "status": status}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"endpoint": "api_data",
		"items":    items,
		"count":    len(items),
		"processing": map[string]any{
			"db_query_ms": dbTime.Milliseconds(),
			"cpu_work_ms": cpuTime.Milliseconds(),
		},
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dbTime := simulateQuery(queryComplex) + simulateQuery(queryMedium) + simulateQuery(querySimple)
	cpuTime := simulateCPU(cpuHeavy)

	writeJSON(w, http.StatusOK, map[string]any{
		"page": "dashboard",
		"metrics": map[string]any{
			"users_online":     100 + rand.Intn(400),
			"requests_per_sec": 50 + rand.Intn(150),
			"error_rate":       0.1 + rand.Float64()*1.9,
		},
		"processing": map[string]any{
			"db_queries_ms": dbTime.Milliseconds(),
			"cpu_work_ms":   cpuTime.Milliseconds(),
		},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		q = "default"
	}

	// Longer queries pay for more expensive lookups.
	class := querySimple
	switch {
	case len(q) >= 15:
		class = queryComplex
	case len(q) >= 5:
		class = queryMedium
	}
	dbTime := simulateQuery(class)
	cpuTime := simulateCPU(cpuMedium)

	n := 5 + rand.Intn(16)
	results := make([]map[string]any, n)
	for i := range results {
		results[i] = map[string]any{
			"id":        i,
			"title":     fmt.Sprintf("Result %d for %q", i, q),
			"relevance": 0.5 + rand.Float64()*0.5,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": results,
		"count":   n,
		"processing": map[string]any{
			"db_query_ms": dbTime.Milliseconds(),
			"cpu_work_ms": cpuTime.Milliseconds(),
		},
	})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	dbTime := simulateQuery(queryMedium)
	cpuTime := simulateCPU(cpuMedium)

	writeJSON(w, http.StatusOK, map[string]any{
		"product": map[string]any{
			"id":      id,
			"name":    "Product " + id,
			"price":   10 + rand.Float64()*990,
			"stock":   rand.Intn(101),
			"rating":  3 + rand.Float64()*2,
			"reviews": rand.Intn(501),
		},
		"processing": map[string]any{
			"db_query_ms": dbTime.Milliseconds(),
			"cpu_work_ms": cpuTime.Milliseconds(),
		},
	})
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	dbTime := simulateQuery(queryMedium) + simulateQuery(queryComplex)
	cpuTime := simulateCPU(cpuHeavy) + simulateCPU(cpuMedium)

	writeJSON(w, http.StatusOK, map[string]any{
		"checkout": "success",
		"transaction": map[string]any{
			"transaction_id": uuid.New().String(),
			"amount":         10 + rand.Float64()*490,
			"status":         "completed",
			"timestamp":      time.Now().Format(time.RFC3339),
		},
		"processing": map[string]any{
			"total_db_ms":  dbTime.Milliseconds(),
			"total_cpu_ms": cpuTime.Milliseconds(),
		},
	})
}

// handleMedia streams a large response body; concurrent media fetches are
// a moderate network load without the extreme payload sizes.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sizeMB := 2
	if raw := r.URL.Query().Get("size_mb"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "size_mb must be a positive integer"})
			return
		}
		sizeMB = v
	}
	if err := s.stress.ValidateNetwork(stress.NetworkParams{MB: sizeMB}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	simulateQuery(querySimple)

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=media_%s.bin", id))
	w.Header().Set("X-Media-Size-MB", strconv.Itoa(sizeMB))

	if _, err := stress.WritePayload(r.Context(), w, sizeMB); err != nil {
		s.logger.Debug("media stream aborted", zap.String("id", id), zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"server_id": s.cfg.ServerID,
		"uptime":    time.Since(s.start).Seconds(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"server_id": s.cfg.ServerID,
	})
}
