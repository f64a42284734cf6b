package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RenderASCIIAuto tries the mermaid-ascii binary in binDir and falls back
// to RenderASCII when it is missing or fails.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binDir string) string {
	if binDir != "" {
		binPath := filepath.Join(binDir, "mermaid-ascii")
		if _, err := os.Stat(binPath); err == nil {
			if out, err := RenderASCIIViaCLI(ctx, model, binPath); err == nil {
				return out
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii binary.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdin = strings.NewReader(RenderMermaidForCLI(model))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates Mermaid syntax the mermaid-ascii tool can
// parse: no ["label"] declarations, status folded into edge-referenced IDs.
// Nodes without edges are emitted on their own line.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	displayID := make(map[string]string, len(model.Nodes))
	for _, node := range model.Nodes {
		displayID[node.ID] = cliNodeID(node)
	}
	resolve := func(id string) string {
		if d, ok := displayID[id]; ok {
			return d
		}
		return mermaidSafeID(id)
	}

	linked := make(map[string]bool)
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", resolve(edge.From), label, resolve(edge.To))
		linked[edge.From], linked[edge.To] = true, true
	}
	for _, node := range model.Nodes {
		if !linked[node.ID] {
			fmt.Fprintf(&b, "    %s\n", resolve(node.ID))
		}
	}

	return b.String()
}

// cliNodeID builds a display ID with the status tag embedded.
func cliNodeID(node *Node) string {
	id := firstLine(node.Label)
	if id == "" {
		id = node.ID
	}
	if node.Status != nil {
		if tag := strings.Trim(statusTag(node.Status.Status), "[]"); tag != "" {
			id += "-" + tag
		}
	}
	return strings.ReplaceAll(id, " ", "-")
}
