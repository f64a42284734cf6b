package validation

import (
	"fmt"

	"github.com/rendis/flowsim/internal/actions"
	"github.com/rendis/flowsim/pkg/schema"
)

// checkReachability reports advisory warnings about the graph's shape:
// dangling edge endpoints, nodes unreachable from the start node (BFS over
// all outgoing edges), and whether any end node is reachable at all.
// It is skipped when there is not exactly one start node.
func checkReachability(g *schema.Graph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}

	adjacency := make(map[string][]string, len(g.Nodes))
	for i, e := range g.Edges {
		if !ids[e.Source] || !ids[e.Target] {
			result.AddWarning(fmt.Sprintf("edges[%d]", i), schema.IssueDanglingEdge,
				fmt.Sprintf("edge %q references an unknown node (%s -> %s)", e.ID, e.Source, e.Target))
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
	}

	starts := g.NodesOfType(schema.NodeTypeStart)
	if len(starts) != 1 {
		return result // reachability from an ambiguous entry is meaningless
	}

	reachable := map[string]bool{starts[0].ID: true}
	queue := []string{starts[0].ID}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[node] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	endReached := false
	for i, n := range g.Nodes {
		if reachable[n.ID] {
			if n.Type() == schema.NodeTypeEnd {
				endReached = true
			}
			continue
		}
		result.AddWarning(fmt.Sprintf("nodes[%d]", i), schema.IssueUnreachable,
			fmt.Sprintf("node %q is unreachable from the start node", n.ID))
	}

	if !endReached && len(g.NodesOfType(schema.NodeTypeEnd)) > 0 {
		result.AddWarning("nodes", schema.IssueEndUnreachable,
			"no end node is reachable from the start node")
	}

	return result
}

// checkActions warns about automated nodes whose action id does not resolve.
// Unconfigured nodes (empty id) are left alone; the simulator skips them.
func checkActions(g *schema.Graph, lookup actions.Lookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if lookup == nil {
		return result
	}

	for i, n := range g.Nodes {
		d, ok := n.Data.(*schema.AutomatedData)
		if !ok || d.ActionID == "" {
			continue
		}
		if _, found := lookup.Lookup(d.ActionID); !found {
			result.AddWarning(fmt.Sprintf("nodes[%d].data.actionId", i), schema.IssueUnknownAction,
				fmt.Sprintf("action %q not registered", d.ActionID))
		}
	}
	return result
}
