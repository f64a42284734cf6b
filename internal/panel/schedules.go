package panel

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListSchedules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schedules": s.deps.Schedules.Jobs()})
}

// handleRunSchedule runs a scheduled job now. A run that fails or misses an
// expectation still answers 200; the report carries the verdict.
func (s *Server) handleRunSchedule(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Schedules.RunNow(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeFlowsimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"passed": report.Passed(),
	})
}
