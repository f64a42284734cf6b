package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowsim/internal/actions"
	"github.com/rendis/flowsim/internal/engine"
	"github.com/rendis/flowsim/internal/expressions"
	"github.com/rendis/flowsim/internal/loader"
	"github.com/rendis/flowsim/internal/streaming"
	"github.com/rendis/flowsim/internal/validation"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Simulator *engine.Simulator
	Validator *validation.GraphValidator
	Loader    *loader.Loader
	Checker   *expressions.Checker
	Catalog   actions.Catalog
	Hub       streaming.EventHub
	Logger    *slog.Logger
	Version   string
}

// Server wraps an MCP server with flowsim tool handlers.
type Server struct {
	simulator *engine.Simulator
	validator *validation.GraphValidator
	loader    *loader.Loader
	checker   *expressions.Checker
	catalog   actions.Catalog
	hub       streaming.EventHub
	logger    *slog.Logger
	sessions  *SessionRegistry
	notifier  *MCPNotifier
	mcpServer *server.MCPServer
}

// NewServer creates a Server with all four tools registered.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = actions.Builtin()
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		simulator: deps.Simulator,
		validator: deps.Validator,
		loader:    deps.Loader,
		checker:   deps.Checker,
		catalog:   catalog,
		hub:       deps.Hub,
		logger:    logger,
		sessions:  NewSessionRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"flowsim",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("flowsim validates and dry-runs HR workflow graphs. Use flowsim.validate to check a graph, flowsim.simulate to walk it and get the execution log, flowsim.actions to list automation actions for automated nodes, and flowsim.diagram to draw it."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions, logger)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes. Run events from the hub are forwarded to registered clients
// while serving.
func (s *Server) Serve(ctx context.Context) error {
	if s.hub != nil {
		fwdCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := s.notifier.Forward(fwdCtx, s.hub); err != nil {
				s.logger.Warn("event forwarding stopped", "error", err)
			}
		}()
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: simulateTool(), Handler: s.handleSimulate},
		{Tool: actionsTool(), Handler: s.handleActions},
		{Tool: diagramTool(), Handler: s.handleDiagram},
	}
}

// --- Tool definitions ---

func validateTool() mcp.Tool {
	return mcp.NewTool("flowsim.validate",
		mcp.WithDescription("Validate a workflow graph and list its violations and warnings"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Workflow graph: {nodes: [{id, type, data}], edges: [{id, source, target}]}")),
		mcp.WithString("client_id", mcp.Description("Caller ID; registers this session for run notifications")),
	)
}

func simulateTool() mcp.Tool {
	return mcp.NewTool("flowsim.simulate",
		mcp.WithDescription("Dry-run a workflow graph and return the execution log and summary"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Workflow graph to simulate")),
		mcp.WithArray("expect",
			mcp.Description("Expectations checked against the result: [{engine: cel|expr|jq, expression}]"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"engine":     map[string]any{"type": "string", "enum": []string{"cel", "expr", "jq"}},
					"expression": map[string]any{"type": "string"},
				},
				"required": []string{"expression"},
			}),
		),
		mcp.WithString("query", mcp.Description("jq program run over the result")),
		mcp.WithString("client_id", mcp.Description("Caller ID; registers this session for run notifications")),
	)
}

func actionsTool() mcp.Tool {
	return mcp.NewTool("flowsim.actions",
		mcp.WithDescription("List the automation actions available to automated nodes"),
		mcp.WithString("id", mcp.Description("Return only this action")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("flowsim.diagram",
		mcp.WithDescription("Generate a visual diagram of a workflow. Returns ASCII art, Mermaid flowchart syntax, or a PNG image"),
		mcp.WithObject("graph", mcp.Required(), mcp.Description("Workflow graph to draw")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (PNG)"),
		),
		mcp.WithBoolean("simulate", mcp.Description("Simulate first and overlay node statuses")),
	)
}
