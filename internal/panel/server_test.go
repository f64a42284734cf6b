package panel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowsim/internal/actions"
	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/internal/loader"
	"github.com/rendis/flowsim/internal/logging"
	"github.com/rendis/flowsim/internal/metrics"
	"github.com/rendis/flowsim/internal/streaming"
	"github.com/rendis/flowsim/internal/validation"
	"github.com/rendis/flowsim/pkg/schema"
)

const validGraph = `{
  "name": "leave",
  "nodes": [
    {"id": "s", "type": "start", "data": {"title": "Request"}},
    {"id": "t", "type": "task", "data": {"title": "Review", "assignee": "lee"}},
    {"id": "e", "type": "end", "data": {"endMessage": "Filed", "showSummary": true}}
  ],
  "edges": [
    {"id": "1", "source": "s", "target": "t"},
    {"id": "2", "source": "t", "target": "e"}
  ]
}`

const invalidGraph = `{
  "nodes": [
    {"id": "t", "type": "task", "data": {"title": "Lonely"}}
  ],
  "edges": []
}`

type fixture struct {
	srv *httptest.Server
	hub *streaming.MemoryHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := prometheus.NewRegistry()
	hub := streaming.NewMemoryHub()
	catalog := actions.Builtin()
	ld, err := loader.New()
	require.NoError(t, err)
	checker, err := expressions.NewChecker()
	require.NoError(t, err)

	sim := engine.NewSimulator(catalog,
		engine.WithPacer(engine.InstantPacer{}),
		engine.WithHub(hub),
		engine.WithMetrics(metrics.New(reg)),
		engine.WithLogger(logging.Discard()),
		engine.WithRunIDs(func() string { return "run-1" }),
	)

	s := NewServer(Deps{
		Simulator: sim,
		Validator: validation.NewGraphValidator(catalog),
		Loader:    ld,
		Checker:   checker,
		Catalog:   catalog,
		Hub:       hub,
		Gatherer:  reg,
		Logger:    logging.Discard(),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, hub: hub}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func simulateBody(graph string, extra string) string {
	if extra != "" {
		extra = "," + extra
	}
	return `{"graph": ` + graph + extra + `}`
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(len(actions.BuiltinActions())), body["actions"])
	assert.Equal(t, float64(0), body["subscribers"])
}

func TestValidate(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/validate", validGraph)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.Empty(t, body["errors"])

	resp, body = f.post(t, "/api/validate", invalidGraph)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, []any{
		"Workflow must have at least one start node",
		"Workflow must have at least one end node",
		`Node "Lonely" is not connected`,
	}, body["errors"])
}

func TestValidate_AcceptsYAML(t *testing.T) {
	f := newFixture(t)
	yamlDoc := "nodes:\n  - {id: s, type: start}\n  - {id: e, type: end}\nedges:\n  - {id: '1', source: s, target: e}\n"
	resp, body := f.post(t, "/api/validate", yamlDoc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
}

func TestValidate_DecodeError(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/validate", `{"nodes": [{"id": "x", "type": "gateway"}], "edges": []}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeDecode, errBody["code"])
}

func TestSimulate(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/simulate", simulateBody(validGraph, ""))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "run-1", body["runId"])
	log, ok := body["log"].([]any)
	require.True(t, ok)
	require.Len(t, log, 3)
	last := log[2].(map[string]any)
	assert.Equal(t, "Filed", last["message"])

	summary := body["summary"].(map[string]any)
	assert.Equal(t, "1.5s (simulated)", summary["executionTime"])
}

func TestSimulate_InvalidGraphIsAResultNotAnError(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/simulate", simulateBody(invalidGraph, ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, schema.MsgNoStartNode, body["error"])
}

func TestSimulate_Expectations(t *testing.T) {
	f := newFixture(t)

	resp, body := f.post(t, "/api/simulate", simulateBody(validGraph,
		`"expect": [{"expression": "result.success"}, {"engine": "jq", "expression": ".log | length == 3"}]`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	outcomes := body["expectations"].([]any)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, true, o.(map[string]any)["passed"])
	}

	resp, body = f.post(t, "/api/simulate", simulateBody(validGraph,
		`"expect": [{"engine": "expr", "expression": "len(result.log) == 9"}]`))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, false, body["expectations"].([]any)[0].(map[string]any)["passed"])
}

func TestSimulate_Query(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/simulate", simulateBody(validGraph, `"query": "[.log[].nodeId]"`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{[]any{"s", "t", "e"}}, body["query"])

	resp, _ = f.post(t, "/api/simulate", simulateBody(validGraph, `"query": ".log[["`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSimulate_BadRequests(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.post(t, "/api/simulate", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := f.post(t, "/api/simulate", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "graph is required", body["error"])
}

func TestSimulateBatch(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/simulate/batch", `{"graphs": [`+validGraph+`,`+invalidGraph+`]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	results := body["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, true, results[0].(map[string]any)["success"])
	assert.Equal(t, false, results[1].(map[string]any)["success"])
}

func TestActions(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/api/actions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["actions"], len(actions.BuiltinActions()))

	resp, body = f.get(t, "/api/actions/send_email")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Send Email", body["label"])
	assert.Equal(t, []any{"to", "subject", "body"}, body["params"])

	resp, body = f.get(t, "/api/actions/launch_rocket")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, schema.ErrCodeNotFound, body["error"].(map[string]any)["code"])
}

func TestDiagram(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.srv.URL+"/api/diagram?format=mermaid&simulate=true", "application/json", strings.NewReader(validGraph))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))

	var sb strings.Builder
	_, err = bufio.NewReader(resp.Body).WriteTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "graph TD")
	assert.Contains(t, sb.String(), "class s completed")

	resp2, _ := f.post(t, "/api/diagram?format=pdf", validGraph)
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/api/simulate", simulateBody(validGraph, ""))

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sb strings.Builder
	_, err = bufio.NewReader(resp.Body).WriteTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), `flowsim_runs_total{outcome="completed"} 1`)
}

func TestSSE_RunStream(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/sse/runs/run-1?types="+schema.EventRunCompleted, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	f.post(t, "/api/simulate", simulateBody(validGraph, ""))

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "event: "+schema.EventRunCompleted, lines[0])
	assert.Contains(t, lines[1], `"run_id":"run-1"`)
}

func TestSSE_FollowClientRunID(t *testing.T) {
	f := newFixture(t)
	const runID = "6f1c2a8e-3d4b-4c5a-9e7f-0a1b2c3d4e5f"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.srv.URL+"/sse/runs/"+runID+"?types="+schema.EventRunStarted, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	simResp, body := f.post(t, "/api/simulate", `{"runId": "`+runID+`", "graph": `+validGraph+`}`)
	require.Equal(t, http.StatusOK, simResp.StatusCode)
	assert.Equal(t, runID, body["runId"])

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: "+schema.EventRunStarted, scanner.Text())
	require.True(t, scanner.Scan())
	assert.Contains(t, scanner.Text(), `"run_id":"`+runID+`"`)
}

func TestSimulate_RejectsMalformedRunID(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/api/simulate", `{"runId": "run 1", "graph": `+validGraph+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, schema.ErrCodeValidation, body["error"].(map[string]any)["code"])
}

func TestOversizedBody(t *testing.T) {
	h := NewServer(Deps{
		Simulator:    engine.NewSimulator(actions.Builtin(), engine.WithPacer(engine.InstantPacer{})),
		Loader:       mustLoader(t),
		Logger:       logging.Discard(),
		MaxBodyBytes: 1024,
	}).Handler()
	filler := strings.Repeat("x", 4096)

	tests := []struct {
		path string
		body string
	}{
		{"/api/validate", "name: " + filler + "\n"},
		{"/api/diagram", `{"name": "` + filler + `"}`},
		{"/api/simulate", `{"graph": {"name": "` + filler + `"}}`},
		{"/api/simulate/batch", `{"graphs": [{"name": "` + filler + `"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			assert.Contains(t, rec.Body.String(), "request body exceeds 1024 bytes")
		})
	}
}

func TestValidate_RejectsYAMLAliasBomb(t *testing.T) {
	f := newFixture(t)
	var doc strings.Builder
	doc.WriteString("a0: &a0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 6; i++ {
		doc.WriteString(fmt.Sprintf("a%d: &a%d [", i, i))
		for j := 0; j < 10; j++ {
			if j > 0 {
				doc.WriteString(", ")
			}
			doc.WriteString(fmt.Sprintf("*a%d", i-1))
		}
		doc.WriteString("]\n")
	}

	resp, body := f.post(t, "/api/validate", doc.String())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, schema.ErrCodeDecode, body["error"].(map[string]any)["code"])
}

func TestSimulateBatch_CancelledRequest(t *testing.T) {
	s := NewServer(Deps{
		Simulator: engine.NewSimulator(actions.Builtin(), engine.WithPacer(engine.InstantPacer{})),
		Loader:    mustLoader(t),
		Logger:    logging.Discard(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/simulate/batch",
		strings.NewReader(`{"graphs": [`+validGraph+`]}`)).WithContext(ctx)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), schema.ErrCodeCancelled)
}

func mustLoader(t *testing.T) *loader.Loader {
	t.Helper()
	ld, err := loader.New()
	require.NoError(t, err)
	return ld
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(schema.ErrCodeConflict))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(schema.ErrCodeCancelled))
	assert.Equal(t, http.StatusInternalServerError, statusFor(schema.ErrCodeInvalidTransition))
}
