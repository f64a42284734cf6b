package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowsim/internal/diagram"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/internal/validation"
	"github.com/rendis/flowsim/pkg/schema"
)

func (s *Server) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx, req.GetString("client_id", ""))

	g, errResult := s.graphArg(req)
	if errResult != nil {
		return errResult, nil
	}

	errs := validation.Validate(g)
	if errs == nil {
		errs = []string{}
	}
	issues := s.validator.Validate(g)
	warnings := make([]string, 0, len(issues.Warnings))
	for _, w := range issues.Warnings {
		warnings = append(warnings, w.Message)
	}
	return marshalResult(map[string]any{
		"valid":    len(errs) == 0,
		"errors":   errs,
		"warnings": warnings,
	})
}

func (s *Server) handleSimulate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.captureSession(ctx, req.GetString("client_id", ""))

	g, errResult := s.graphArg(req)
	if errResult != nil {
		return errResult, nil
	}

	var exps []expressions.Expectation
	if raw, ok := req.GetArguments()["expect"]; ok && raw != nil {
		if err := remarshal(raw, &exps); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid expect: %v", err)), nil
		}
	}

	result := s.simulator.Simulate(ctx, g)
	out := map[string]any{"result": result}

	if q := req.GetString("query", ""); q != "" {
		values, err := s.checker.Query(ctx, q, result)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		out["query"] = values
	}
	if len(exps) > 0 {
		outcomes := s.checker.Check(ctx, result, g, exps)
		out["expectations"] = outcomes
		out["passed"] = result.Success && len(expressions.Failed(outcomes)) == 0
	}
	return marshalResult(out)
}

func (s *Server) handleActions(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("id", ""); id != "" {
		a, ok := s.catalog.Lookup(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("action %q not registered", id)), nil
		}
		return marshalResult(a)
	}
	return marshalResult(map[string]any{"actions": s.catalog.List()})
}

// handleDiagram generates a workflow diagram in the requested format.
func (s *Server) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	format, err := diagram.ParseFormat(name)
	if err != nil || format == diagram.FormatSVG {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	g, errResult := s.graphArg(req)
	if errResult != nil {
		return errResult, nil
	}

	var result *schema.SimulationResult
	if req.GetBool("simulate", false) {
		result = s.simulator.Simulate(ctx, g)
	}
	model := diagram.Build(g, result)

	switch format {
	case diagram.FormatASCII:
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case diagram.FormatPNG:
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultImage("workflow diagram", base64.StdEncoding.EncodeToString(png), "image/png"), nil
	default:
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	}
}

// graphArg decodes the graph argument through the loader so tool input gets
// the same structural checks as files and HTTP bodies.
func (s *Server) graphArg(req mcp.CallToolRequest) (*schema.Graph, *mcp.CallToolResult) {
	raw, ok := req.GetArguments()["graph"]
	if !ok || raw == nil {
		return nil, mcp.NewToolResultError("graph is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid graph: %v", err))
	}
	g, err := s.loader.Parse(data, false)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid graph: %v", err))
	}
	return g, nil
}

// captureSession maps the client ID to its current MCP session for notifications.
func (s *Server) captureSession(ctx context.Context, clientID string) {
	if clientID == "" {
		return
	}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(clientID, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
