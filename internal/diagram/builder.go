package diagram

import (
	"fmt"

	"github.com/rendis/flowsim/pkg/schema"
)

// Build constructs a DiagramModel from a graph and an optional simulation
// result. Nodes keep document order; levels are computed breadth-first from
// the start nodes, with unreachable nodes collected in a trailing level.
func Build(g *schema.Graph, result *schema.SimulationResult) *DiagramModel {
	model := &DiagramModel{}
	if g == nil {
		return model
	}
	model.Title = g.Name

	known := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = true
		model.Nodes = append(model.Nodes, &Node{
			ID:    n.ID,
			Label: n.DisplayTitle(),
			Kind:  kindOf(n.Type()),
		})
	}

	for _, e := range g.Edges {
		if !known[e.Source] || !known[e.Target] {
			continue
		}
		edge := Edge{From: e.Source, To: e.Target}
		if e.Priority != 0 {
			edge.Label = fmt.Sprintf("p%d", e.Priority)
		}
		model.Edges = append(model.Edges, edge)
	}

	model.Levels = buildLevels(g, model.Edges)
	if result != nil {
		overlay(model, result.Log)
	}
	return model
}

func kindOf(t schema.NodeType) NodeKind {
	switch t {
	case schema.NodeTypeStart:
		return NodeKindStart
	case schema.NodeTypeTask:
		return NodeKindTask
	case schema.NodeTypeApproval:
		return NodeKindApproval
	case schema.NodeTypeAutomated:
		return NodeKindAutomated
	case schema.NodeTypeEnd:
		return NodeKindEnd
	default:
		return NodeKindUnknown
	}
}

// buildLevels assigns each node to the BFS depth of its first discovery.
func buildLevels(g *schema.Graph, edges []Edge) [][]string {
	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	depth := make(map[string]int, len(g.Nodes))
	var queue []string
	for _, n := range g.NodesOfType(schema.NodeTypeStart) {
		if _, seen := depth[n.ID]; !seen {
			depth[n.ID] = 0
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range adj[id] {
			if _, seen := depth[next]; seen {
				continue
			}
			depth[next] = depth[id] + 1
			queue = append(queue, next)
		}
	}

	var levels [][]string
	var orphans []string
	for _, n := range g.Nodes {
		d, ok := depth[n.ID]
		if !ok {
			orphans = append(orphans, n.ID)
			continue
		}
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], n.ID)
	}
	if len(orphans) > 0 {
		levels = append(levels, orphans)
	}
	return levels
}

// overlay attaches the last log entry of each node. Dead-end entries
// update the status without counting as a visit.
func overlay(model *DiagramModel, log []schema.LogEntry) {
	for _, entry := range log {
		n := model.node(entry.NodeID)
		if n == nil {
			continue
		}
		if n.Status == nil {
			n.Status = &StatusOverlay{}
		}
		if entry.Status != schema.StatusError {
			n.Status.Visits++
		}
		n.Status.Status = entry.Status
		n.Status.Message = entry.Message
		n.Status.Step = entry.Step
	}
}
