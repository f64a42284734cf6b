package schema

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// NodeType enumerates the fixed set of workflow node variants.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeTask      NodeType = "task"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeAutomated NodeType = "automated"
	NodeTypeEnd       NodeType = "end"
)

// NodeTypes lists every node type in palette order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeTask,
	NodeTypeApproval,
	NodeTypeAutomated,
	NodeTypeEnd,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeStart, NodeTypeTask, NodeTypeApproval, NodeTypeAutomated, NodeTypeEnd:
		return true
	}
	return false
}

// Approver roles selectable on approval nodes.
const (
	RoleManager  = "Manager"
	RoleHRBP     = "HRBP"
	RoleDirector = "Director"
	RoleVP       = "VP"
)

// DefaultApproverRole is used when an approval node leaves the role empty.
const DefaultApproverRole = RoleManager

// Fields is an ordered string map with unique keys. Document order is kept
// across decode and encode.
type Fields = orderedmap.OrderedMap[string, string]

// NewFields builds Fields from alternating key/value pairs.
// A trailing key without a value is ignored.
func NewFields(kv ...string) *Fields {
	f := orderedmap.New[string, string]()
	for i := 0; i+1 < len(kv); i += 2 {
		f.Set(kv[i], kv[i+1])
	}
	return f
}

// NodeData is the type-dependent attribute bag of a node. The set of
// implementations is closed: StartData, TaskData, ApprovalData,
// AutomatedData and EndData.
type NodeData interface {
	Kind() NodeType
	DisplayLabel() string
	isNodeData()
}

// Base carries the fields shared by every node variant.
type Base struct {
	// Label is the editor's generic display label for the node type.
	Label string `json:"label,omitempty"`
}

// DisplayLabel returns the generic label.
func (b Base) DisplayLabel() string { return b.Label }

func (Base) isNodeData() {}

// StartData is the payload of the single entry node.
type StartData struct {
	Base
	Title    string  `json:"title"`
	Metadata *Fields `json:"metadata,omitempty"`
}

// TaskData is the payload of a human task node.
type TaskData struct {
	Base
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Assignee     string  `json:"assignee,omitempty"`
	DueDate      string  `json:"dueDate,omitempty"`
	CustomFields *Fields `json:"customFields,omitempty"`
}

// ApprovalData is the payload of an approval gate.
type ApprovalData struct {
	Base
	Title        string `json:"title"`
	ApproverRole string `json:"approverRole,omitempty"`
	// AutoApproveThreshold of zero means the approval is manual.
	AutoApproveThreshold int `json:"autoApproveThreshold"`
}

// Role returns the approver role, defaulting to Manager.
func (d *ApprovalData) Role() string {
	if d.ApproverRole == "" {
		return DefaultApproverRole
	}
	return d.ApproverRole
}

// AutomatedData is the payload of a node backed by a registry action.
type AutomatedData struct {
	Base
	Title string `json:"title"`
	// ActionID is empty while the node is unconfigured.
	ActionID     string            `json:"actionId"`
	ActionParams map[string]string `json:"actionParams,omitempty"`
}

// EndData is the payload of a terminal node.
type EndData struct {
	Base
	EndMessage  string `json:"endMessage,omitempty"`
	ShowSummary bool   `json:"showSummary"`
}

func (*StartData) Kind() NodeType     { return NodeTypeStart }
func (*TaskData) Kind() NodeType      { return NodeTypeTask }
func (*ApprovalData) Kind() NodeType  { return NodeTypeApproval }
func (*AutomatedData) Kind() NodeType { return NodeTypeAutomated }
func (*EndData) Kind() NodeType       { return NodeTypeEnd }

// Node is a typed vertex of the workflow graph.
type Node struct {
	ID   string
	Data NodeData
}

// Type returns the node type derived from its data variant, or "" when the
// node carries no data.
func (n Node) Type() NodeType {
	if n.Data == nil {
		return ""
	}
	return n.Data.Kind()
}

// Title returns the variant's title field. End nodes have no title.
func (n Node) Title() string {
	switch d := n.Data.(type) {
	case *StartData:
		return d.Title
	case *TaskData:
		return d.Title
	case *ApprovalData:
		return d.Title
	case *AutomatedData:
		return d.Title
	case *EndData:
		return ""
	default:
		return ""
	}
}

// DisplayTitle returns the title, falling back to the generic label and
// finally to "Untitled".
func (n Node) DisplayTitle() string {
	if t := n.Title(); t != "" {
		return t
	}
	if n.Data != nil {
		if l := n.Data.DisplayLabel(); l != "" {
			return l
		}
	}
	return "Untitled"
}

// Edge is a directed connection between two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	// Priority is only consulted by the priority edge strategy; lower wins.
	Priority int `json:"priority,omitempty"`
}

// Graph is an immutable snapshot of a workflow handed to the validator and
// the simulator. Edge order is the document order and is significant.
type Graph struct {
	Name  string `json:"name,omitempty"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NodeByID returns the node with the given id.
func (g *Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodesOfType returns all nodes of type t in document order.
func (g *Graph) NodesOfType(t NodeType) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Type() == t {
			out = append(out, n)
		}
	}
	return out
}

// Outgoing returns the edges leaving nodeID in document order.
func (g *Graph) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}
