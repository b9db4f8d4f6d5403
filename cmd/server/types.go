package main

import (
	"fmt"

	"github.com/himanishpuri/circleguard/pkg/circleguard/mods"
	"github.com/himanishpuri/circleguard/pkg/circleguard/runs"
)

// MaxChecksPerRun bounds the size of a POST /api/runs body
const MaxChecksPerRun = 64

// CheckDTO is one check in a POST /api/runs body
type CheckDTO struct {
	Kind      string   `json:"kind"`
	BeatmapID int      `json:"beatmap_id,omitempty"`
	UserID    int      `json:"user_id,omitempty"`
	Mods      string   `json:"mods,omitempty"`
	Replays   []string `json:"replays,omitempty"`
	Threshold float64  `json:"threshold,omitempty"`
}

// SubmitRunRequest is the request body for POST /api/runs
type SubmitRunRequest struct {
	Checks []CheckDTO `json:"checks"`
}

// Validate checks the request and converts it into run checks
func (r *SubmitRunRequest) Validate() ([]runs.Check, error) {
	if len(r.Checks) == 0 {
		return nil, fmt.Errorf("checks cannot be empty")
	}
	if len(r.Checks) > MaxChecksPerRun {
		return nil, fmt.Errorf("too many checks: %d (maximum: %d)", len(r.Checks), MaxChecksPerRun)
	}

	checks := make([]runs.Check, len(r.Checks))
	for i, c := range r.Checks {
		kind := runs.CheckKind(c.Kind)
		switch kind {
		case runs.CheckSteal, runs.CheckRelax, runs.CheckCorrection, runs.CheckVisualize:
		default:
			return nil, fmt.Errorf("check %d: unknown kind %q", i, c.Kind)
		}
		m, err := mods.ParseOptional(c.Mods)
		if err != nil {
			return nil, fmt.Errorf("check %d: %w", i, err)
		}
		checks[i] = runs.Check{
			Kind:        kind,
			BeatmapID:   c.BeatmapID,
			UserID:      c.UserID,
			Mods:        m,
			ReplayPaths: c.Replays,
			Threshold:   c.Threshold,
		}
	}
	return checks, nil
}

// RunResponse describes a run's current state
type RunResponse struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ModsResponse is the response for GET /api/mods/{mods}
type ModsResponse struct {
	Input     string `json:"input"`
	Value     uint32 `json:"value"`
	ShortName string `json:"short_name"`
}

// AccuracyResponse is the response for GET /api/accuracy
type AccuracyResponse struct {
	Misses   int     `json:"misses"`
	Count50  int     `json:"count_50"`
	Count100 int     `json:"count_100"`
	Count300 int     `json:"count_300"`
	Accuracy float64 `json:"accuracy"`
}

// MetricsResponse provides server health and cache metrics
type MetricsResponse struct {
	Status        string `json:"status"`
	SnapshotPath  string `json:"snapshot_path"`
	SnapshotReady bool   `json:"snapshot_ready"`
	BeatmapCount  int64  `json:"beatmap_count"`
	SnapshotSize  string `json:"snapshot_size,omitempty"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
