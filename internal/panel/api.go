package panel

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rendis/flowsim/internal/diagram"
	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/internal/validation"
	"github.com/rendis/flowsim/pkg/schema"
)

// simulateRequest is the body of POST /api/simulate. RunID lets a client
// open /sse/runs/{id} before starting the run; it must be a UUID.
type simulateRequest struct {
	RunID  string                    `json:"runId,omitempty"`
	Graph  json.RawMessage           `json:"graph"`
	Expect []expressions.Expectation `json:"expect,omitempty"`
	Query  string                    `json:"query,omitempty"`
}

// simulateResponse wraps the simulation result with expectation outcomes.
type simulateResponse struct {
	*schema.SimulationResult
	Expectations []expressions.Outcome `json:"expectations,omitempty"`
	Query        []any                 `json:"query,omitempty"`
}

// validateResponse carries the plain messages plus structured issues.
type validateResponse struct {
	Valid    bool                     `json:"valid"`
	Errors   []string                 `json:"errors"`
	Issues   *schema.ValidationResult `json:"issues"`
	Warnings []string                 `json:"warnings,omitempty"`
}

// subscriberCounter is implemented by hubs that can report live subscriptions.
type subscriberCounter interface {
	Subscribers() int
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok", "actions": s.deps.Catalog.Count()}
	if c, ok := s.deps.Hub.(subscriberCounter); ok {
		body["subscribers"] = c.Subscribers()
	}
	writeJSON(w, http.StatusOK, body)
}

// handleValidate validates the graph document in the request body.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	g, err := s.deps.Loader.Read(r.Body)
	if err != nil {
		writeFlowsimError(w, err)
		return
	}

	errs := validation.Validate(g)
	if errs == nil {
		errs = []string{}
	}
	issues := s.deps.Validator.Validate(g)
	resp := validateResponse{Valid: len(errs) == 0, Errors: errs, Issues: issues}
	for _, warn := range issues.Warnings {
		resp.Warnings = append(resp.Warnings, warn.Message)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSimulate runs one simulation and checks optional expectations.
// A run that completes with failed expectations answers 422.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}
	if len(req.Graph) == 0 {
		writeError(w, http.StatusBadRequest, "graph is required")
		return
	}
	if req.RunID != "" {
		if _, err := uuid.Parse(req.RunID); err != nil {
			writeFlowsimError(w, schema.NewErrorf(schema.ErrCodeValidation, "runId %q is not a UUID", req.RunID).WithCause(err))
			return
		}
	}
	g, err := s.deps.Loader.Parse(req.Graph, false)
	if err != nil {
		writeFlowsimError(w, err)
		return
	}

	ctx := r.Context()
	result := s.deps.Simulator.SimulateRun(ctx, req.RunID, g)
	resp := simulateResponse{SimulationResult: result}

	if req.Query != "" {
		out, err := s.deps.Checker.Query(ctx, req.Query, result)
		if err != nil {
			writeFlowsimError(w, err)
			return
		}
		resp.Query = out
	}

	status := http.StatusOK
	if len(req.Expect) > 0 {
		resp.Expectations = s.deps.Checker.Check(ctx, result, g, req.Expect)
		if len(expressions.Failed(resp.Expectations)) > 0 {
			status = http.StatusUnprocessableEntity
		}
	}
	writeJSON(w, status, resp)
}

// handleSimulateBatch runs several graphs concurrently. Results are
// aligned with the request order.
func (s *Server) handleSimulateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Graphs []json.RawMessage `json:"graphs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	graphs := make([]*schema.Graph, len(req.Graphs))
	for i, raw := range req.Graphs {
		g, err := s.deps.Loader.Parse(raw, false)
		if err != nil {
			writeFlowsimError(w, schema.NewErrorf(schema.ErrCodeDecode, "graphs[%d]: %v", i, err).WithCause(err))
			return
		}
		graphs[i] = g
	}

	results := engine.RunBatch(r.Context(), s.deps.Simulator, graphs, s.deps.PoolSize)
	if err := r.Context().Err(); err != nil {
		writeFlowsimError(w, schema.NewError(schema.ErrCodeCancelled, "batch cancelled").WithCause(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.deps.Catalog.List()})
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeFlowsimError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// handleDiagram renders the graph in the body. With ?simulate=true the
// graph is simulated first and the result drawn as an overlay.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	format, err := diagram.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeFlowsimError(w, err)
		return
	}
	g, err := s.deps.Loader.Read(r.Body)
	if err != nil {
		writeFlowsimError(w, err)
		return
	}

	var result *schema.SimulationResult
	if overlay, _ := strconv.ParseBool(r.URL.Query().Get("simulate")); overlay {
		result = s.deps.Simulator.Simulate(r.Context(), g)
	}

	out, err := diagram.Render(r.Context(), diagram.Build(g, result), format, s.deps.ASCIIBinDir)
	if err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "diagram render failed", "format", format, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}
