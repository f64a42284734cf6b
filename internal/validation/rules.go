package validation

import (
	"fmt"

	"github.com/rendis/flowsim/pkg/schema"
)

// Violation messages. The display layer shows these verbatim.
const (
	MsgMissingStart  = "Workflow must have at least one start node"
	MsgMultipleStart = "Workflow can only have one start node"
	MsgMissingEnd    = "Workflow must have at least one end node"
)

// validateStructure applies the well-formedness rules. Every rule runs
// regardless of earlier failures; errors are ordered by rule, then by node
// order within the connectivity rule.
func validateStructure(g *schema.Graph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	// Rule 1: exactly one start node.
	switch starts := len(g.NodesOfType(schema.NodeTypeStart)); {
	case starts == 0:
		result.AddError("nodes", schema.IssueMissingStart, MsgMissingStart)
	case starts > 1:
		result.AddError("nodes", schema.IssueMultipleStart, MsgMultipleStart)
	}

	// Rule 2: at least one end node.
	if len(g.NodesOfType(schema.NodeTypeEnd)) == 0 {
		result.AddError("nodes", schema.IssueMissingEnd, MsgMissingEnd)
	}

	// Rule 3: every intermediate node touches at least one edge.
	connected := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		connected[e.Source] = true
		connected[e.Target] = true
	}

	for i, n := range g.Nodes {
		if connected[n.ID] || !needsConnection(n) {
			continue
		}
		name := n.Title()
		if name == "" {
			name = n.ID
		}
		result.AddError(fmt.Sprintf("nodes[%d]", i), schema.IssueNotConnected,
			fmt.Sprintf(`Node "%s" is not connected`, name))
	}

	return result
}

// needsConnection reports whether a node must have an incident edge.
func needsConnection(n schema.Node) bool {
	switch n.Data.(type) {
	case *schema.StartData, *schema.EndData:
		return false
	case *schema.TaskData, *schema.ApprovalData, *schema.AutomatedData:
		return true
	default:
		return true
	}
}
