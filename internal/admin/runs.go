package admin

import (
	"context"
	"net/http"
	"strconv"
)

// RunSummary is one row of run history, shaped for JSON responses without
// forcing this package to depend on the runstore/postgres row type.
type RunSummary struct {
	NStates           int    `json:"n_states"`
	MaxRuntimeSteps   uint64 `json:"max_runtime_steps"`
	Enumeration       string `json:"enumeration"`
	BlankSymbol       int    `json:"blank_symbol"`
	HaltingTotal      uint64 `json:"halting_total"`
	NonHaltingTotal   uint64 `json:"non_halting_total"`
	DistinctOutputs   int    `json:"distinct_outputs"`
	CompletionApplied bool   `json:"completion_applied"`
	StartedAt         string `json:"started_at"`
	FinishedAt        string `json:"finished_at"`
}

// RunLister is satisfied by an adapter in cmd/ctmrun over
// *runstore/postgres.Repo (whose ListRuns returns its own row type), kept as
// a narrow interface here the same way ProgressProvider narrows
// *driver.Driver, so this package never needs to import the lib/pq-backed
// store directly.
type RunLister interface {
	ListRuns(ctx context.Context, nStates, limit int) ([]RunSummary, error)
}

// handleRuns serves GET /runs, listing recent completed runs for the
// driver's configured n_states. Absent when no run history store was
// wired (RunHistoryDSN unset), matching the teacher pack's pattern of
// dashboard endpoints that degrade to 503 without their repo.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.Error(w, `{"error":"run history not available"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), s.nStates, limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
