package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowsim/internal/streaming"
	"github.com/rendis/flowsim/pkg/schema"
)

// ClientNotifier pushes notifications to connected clients.
type ClientNotifier interface {
	Notify(ctx context.Context, clientID string, payload map[string]any) error
}

// sender is the slice of *server.MCPServer the notifier needs.
type sender interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
}

// MCPNotifier implements ClientNotifier using MCP session push.
type MCPNotifier struct {
	sender   sender
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewMCPNotifier creates a notifier that pushes to MCP sessions.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry, logger *slog.Logger) *MCPNotifier {
	return &MCPNotifier{sender: mcpServer, sessions: sessions, logger: logger}
}

// Notify sends a notification to the client's session.
// Best-effort: returns nil if the client is not connected.
func (n *MCPNotifier) Notify(_ context.Context, clientID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(clientID)
	if !ok {
		return nil
	}
	return n.send(sessionID, payload)
}

// Broadcast sends payload to every registered session.
func (n *MCPNotifier) Broadcast(_ context.Context, payload map[string]any) error {
	var errs []error
	for _, sid := range n.sessions.Sessions() {
		errs = append(errs, n.send(sid, payload))
	}
	return errors.Join(errs...)
}

func (n *MCPNotifier) send(sessionID string, payload map[string]any) error {
	err := n.sender.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}

// Forward relays run lifecycle events from hub to every registered session
// until ctx is done. Scheduled runs reach clients this way.
func (n *MCPNotifier) Forward(ctx context.Context, hub streaming.EventHub) error {
	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{EventTypes: []string{
		schema.EventRunCompleted, schema.EventRunCancelled, schema.EventRunRejected,
	}})
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if err := n.Broadcast(ctx, notification(evt)); err != nil {
				n.logger.WarnContext(ctx, "run notification failed", "run_id", evt.RunID, "error", err)
			}
		}
	}
}

func notification(evt streaming.StreamEvent) map[string]any {
	payload := map[string]any{
		"level":  "info",
		"logger": "flowsim",
		"data": map[string]any{
			"event":  evt.EventType,
			"run_id": evt.RunID,
		},
	}
	data := payload["data"].(map[string]any)
	if res, ok := evt.Payload.(*schema.SimulationResult); ok {
		data["success"] = res.Success
		data["steps"] = len(res.Log)
		if res.Error != "" {
			data["error"] = res.Error
		}
	}
	if evt.EventType != schema.EventRunCompleted {
		payload["level"] = "warning"
	}
	return payload
}
