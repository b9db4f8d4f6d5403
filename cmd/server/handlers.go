package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/himanishpuri/circleguard/pkg/circleguard"
	"github.com/himanishpuri/circleguard/pkg/circleguard/cache"
	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
	"github.com/himanishpuri/circleguard/pkg/circleguard/osuapi"
	"github.com/himanishpuri/circleguard/pkg/circleguard/runs"
	"github.com/himanishpuri/circleguard/pkg/logger"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service circleguard.Service
	config  *ServerConfig
	log     circleguard.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	// BootstrapTimeout bounds a POST /api/snapshot download.
	BootstrapTimeout time.Duration
}

// NewServer creates a new server instance
func NewServer(service circleguard.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "circleguard API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":    "GET /health",
			"metrics":   "GET /api/health/metrics",
			"beatmap":   "GET /api/beatmaps/{id}",
			"bootstrap": "POST /api/snapshot",
			"mods":      "GET /api/mods/{mods}",
			"accuracy":  "GET /api/accuracy?miss=&50=&100=&300=",
			"submitRun": "POST /api/runs",
			"getRun":    "GET /api/runs/{id}",
			"cancelRun": "DELETE /api/runs/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.CacheStats(r.Context())
	if err != nil {
		s.log.Errorf("Failed to read cache stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:        "healthy",
		SnapshotPath:  stats.SnapshotPath,
		SnapshotReady: stats.SnapshotReady,
		BeatmapCount:  stats.Beatmaps,
		SnapshotSize:  stats.Size,
	})
}

// handleGetBeatmap handles GET /api/beatmaps/{id}
func (s *Server) handleGetBeatmap(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "Invalid beatmap ID")
		return
	}

	b, err := s.service.LookupBeatmap(r.Context(), id)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, b)
	case errors.Is(err, osuapi.ErrNoBeatmap):
		s.respondError(w, http.StatusNotFound, "Beatmap not found")
	case errors.Is(err, cache.ErrUnavailable):
		s.log.Warnf("Beatmap %d unavailable: %v", id, err)
		s.respondError(w, http.StatusServiceUnavailable, "osu! API unreachable, try again later")
	default:
		s.log.Errorf("Lookup of beatmap %d failed: %v", id, err)
		s.respondError(w, http.StatusBadGateway, "Failed to look up beatmap")
	}
}

// handleBootstrap handles POST /api/snapshot. The download keeps running
// after the response if it outlives the request.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if s.service.SnapshotReady() {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.BootstrapTimeout)
		defer cancel()
		if err := s.service.BootstrapSnapshot(ctx); err != nil {
			s.log.Warnf("Snapshot bootstrap failed: %v", err)
		}
	}()
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "downloading"})
}

// handleParseMods handles GET /api/mods/{mods}
func (s *Server) handleParseMods(w http.ResponseWriter, r *http.Request) {
	input := chi.URLParam(r, "mods")
	m, err := s.service.ParseMods(input)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, ModsResponse{
		Input:     input,
		Value:     uint32(m),
		ShortName: m.ShortName(),
	})
}

// handleAccuracy handles GET /api/accuracy
func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	counts := make([]int, 4)
	for i, key := range []string{"miss", "50", "100", "300"} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.respondError(w, http.StatusBadRequest, "Invalid count for "+key)
			return
		}
		counts[i] = n
	}

	s.respondJSON(w, http.StatusOK, AccuracyResponse{
		Misses:   counts[0],
		Count50:  counts[1],
		Count100: counts[2],
		Count300: counts[3],
		Accuracy: s.service.Accuracy(counts[0], counts[1], counts[2], counts[3]),
	})
}

// handleSubmitRun handles POST /api/runs
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req SubmitRunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	checks, err := req.Validate()
	if err != nil {
		if errors.Is(err, mods.ErrInvalidMod) {
			s.log.Debugf("Rejected run with bad mods: %v", err)
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := s.service.SubmitRun(checks)
	if err != nil {
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.log.Infof("Queued run %d with %d checks", run.ID, len(checks))
	s.respondJSON(w, http.StatusAccepted, RunResponse{ID: run.ID, Status: run.Status().String()})
}

// handleGetRun handles GET /api/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	run, err := s.service.GetRun(id)
	if errors.Is(err, runs.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := RunResponse{ID: id, Status: run.Status().String()}
	if err := run.Err(); err != nil {
		resp.Error = err.Error()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleCancelRun handles DELETE /api/runs/{id}
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	if err := s.service.CancelRun(id); err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			s.respondError(w, http.StatusNotFound, "Run not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status, _ := s.service.RunStatus(id)
	s.respondJSON(w, http.StatusOK, RunResponse{ID: id, Status: status.String()})
}

func (s *Server) runID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		s.respondError(w, http.StatusBadRequest, "Invalid run ID")
		return 0, false
	}
	return id, true
}
