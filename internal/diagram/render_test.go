package diagram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowsim/pkg/schema"
)

func simulatedModel() *DiagramModel {
	return Build(reviewGraph(), &schema.SimulationResult{
		Success: true,
		Log: []schema.LogEntry{
			{Step: 1, NodeID: "s", Status: schema.StatusCompleted},
			{Step: 2, NodeID: "t", Status: schema.StatusCompleted},
			{Step: 3, NodeID: "a", Status: schema.StatusApproved},
			{Step: 4, NodeID: "e", Status: schema.StatusCompleted},
		},
	})
}

func TestRenderMermaid(t *testing.T) {
	out := RenderMermaid(Build(reviewGraph(), nil))

	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, "%% Onboarding")
	assert.Contains(t, out, `s(["Kickoff"])`)
	assert.Contains(t, out, `t["Collect docs"]`)
	assert.Contains(t, out, `a{"Sign off"}`)
	assert.Contains(t, out, `x[["Automated Step"]]`)
	assert.Contains(t, out, `e(("Untitled"))`)
	assert.Contains(t, out, "s --> t")
	assert.Contains(t, out, "a -->|p2| e")
	assert.NotContains(t, out, "ghost")
	assert.NotContains(t, out, "class s ")
}

func TestRenderMermaid_StatusClasses(t *testing.T) {
	out := RenderMermaid(simulatedModel())

	assert.Contains(t, out, "classDef approved")
	assert.Contains(t, out, "class s completed")
	assert.Contains(t, out, "class a approved")
	assert.NotContains(t, out, "class x ")
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "node_1_a_b", mermaidSafeID("node-1.a b"))
}

func TestRenderASCII(t *testing.T) {
	out := RenderASCII(simulatedModel())

	assert.Contains(t, out, "=== Onboarding ===")
	for _, ch := range []string{"┌", "┐", "└", "┘", "│", "─", "▼"} {
		assert.Contains(t, out, ch)
	}
	assert.Contains(t, out, "Kickoff")
	assert.Contains(t, out, "[OK]")
	assert.Contains(t, out, "[APPROVED]")
	assert.NotContains(t, out, "other edges")
}

func TestRenderASCII_ListsBackEdges(t *testing.T) {
	g := &schema.Graph{
		Nodes: []schema.Node{
			node("s", &schema.StartData{Title: "S"}),
			node("a", &schema.TaskData{Title: "A"}),
		},
		Edges: []schema.Edge{
			{ID: "1", Source: "s", Target: "a"},
			{ID: "2", Source: "a", Target: "s", Priority: 1},
		},
	}
	out := RenderASCII(Build(g, nil))
	assert.Contains(t, out, "--- other edges ---")
	assert.Contains(t, out, "a ─→ s (p1)")
}

func TestRenderASCII_RepeatVisits(t *testing.T) {
	model := Build(reviewGraph(), &schema.SimulationResult{Log: []schema.LogEntry{
		{Step: 1, NodeID: "t", Status: schema.StatusCompleted},
		{Step: 2, NodeID: "t", Status: schema.StatusCompleted},
	}})
	assert.Contains(t, RenderASCII(model), "x2")
}

func TestRenderMermaidForCLI(t *testing.T) {
	out := RenderMermaidForCLI(simulatedModel())

	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, "Kickoff-OK --> Collect-docs-OK")
	assert.Contains(t, out, "Sign-off-APPROVED -->|p2| Untitled-OK")
	assert.Contains(t, out, "    Automated-Step\n", "isolated nodes are still listed")
	assert.NotContains(t, out, "[\"")
}

func TestRenderASCIIAuto_FallsBack(t *testing.T) {
	model := simulatedModel()
	assert.Equal(t, RenderASCII(model), RenderASCIIAuto(context.Background(), model, t.TempDir()))
	assert.Equal(t, RenderASCII(model), RenderASCIIAuto(context.Background(), model, ""))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatMermaid},
		{"mermaid", FormatMermaid},
		{"ascii", FormatASCII},
		{"image", FormatPNG},
		{"png", FormatPNG},
		{"svg", FormatSVG},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("pdf")
	assert.Error(t, err)
	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "text/plain; charset=utf-8", FormatMermaid.ContentType())
}

func TestRender_TextFormats(t *testing.T) {
	model := simulatedModel()

	out, err := Render(context.Background(), model, FormatMermaid, "")
	require.NoError(t, err)
	assert.Equal(t, RenderMermaid(model), string(out))

	out, err = Render(context.Background(), model, FormatASCII, "")
	require.NoError(t, err)
	assert.Equal(t, RenderASCII(model), string(out))
}
