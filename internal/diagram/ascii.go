package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/flowsim/pkg/schema"
)

// statusTag returns a short ASCII indicator for a status.
func statusTag(status schema.Status) string {
	switch status {
	case schema.StatusCompleted:
		return "[OK]"
	case schema.StatusApproved:
		return "[APPROVED]"
	case schema.StatusExecuting:
		return "[RUN]"
	case schema.StatusPending:
		return "[WAIT]"
	case schema.StatusSkipped:
		return "[SKIP]"
	case schema.StatusError:
		return "[FAIL]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as a text-based ASCII diagram.
// It uses a level-based layout with box-drawing characters; edges that do
// not go to the next level are listed below the boxes.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}

	levelOf := make(map[string]int)
	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			levelOf[nodeID] = levelIdx
			if node := model.node(nodeID); node != nil {
				boxes = append(boxes, makeBox(node))
			}
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	var extra []Edge
	for _, e := range model.Edges {
		from, okFrom := levelOf[e.From]
		to, okTo := levelOf[e.To]
		if !okFrom || !okTo || to != from+1 {
			extra = append(extra, e)
		}
	}
	if len(extra) > 0 {
		b.WriteString("\n--- other edges ---\n")
		for _, e := range extra {
			label := ""
			if e.Label != "" {
				label = " (" + e.Label + ")"
			}
			fmt.Fprintf(&b, "    %s ─→ %s%s\n", e.From, e.To, label)
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}

	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			contentLines = append(contentLines, tag)
		}
		if node.Status.Visits > 1 {
			contentLines = append(contentLines, fmt.Sprintf("x%d", node.Status.Visits))
		}
	}

	maxLen := 0
	for _, line := range contentLines {
		maxLen = max(maxLen, len([]rune(line)))
	}
	width := maxLen + 4 // 2 border + 2 padding

	lines := make([]string, 0, len(contentLines)+2)
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len([]rune(content)))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		maxHeight = max(maxHeight, len(box.lines))
	}

	for row := range maxHeight {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}
