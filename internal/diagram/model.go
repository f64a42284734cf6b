package diagram

import "github.com/rendis/flowsim/pkg/schema"

// NodeKind classifies a diagram node by its workflow node type.
type NodeKind string

const (
	NodeKindStart     NodeKind = "start"
	NodeKindTask      NodeKind = "task"
	NodeKindApproval  NodeKind = "approval"
	NodeKindAutomated NodeKind = "automated"
	NodeKindEnd       NodeKind = "end"
	// NodeKindUnknown marks nodes without data.
	NodeKindUnknown NodeKind = "unknown"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single workflow node in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries the outcome of a simulation for a node. When a
// node is visited more than once the last entry wins.
type StatusOverlay struct {
	Status  schema.Status
	Message string
	Step    int
	Visits  int
}

// Edge represents a connection between two nodes.
type Edge struct {
	From  string
	To    string
	Label string
}

// node looks up a node by ID.
func (m *DiagramModel) node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
