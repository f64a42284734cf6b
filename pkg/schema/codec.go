package schema

import (
	"bytes"
	"encoding/json"
)

// nodeWire is the serialized node shape shared with the graph editor.
type nodeWire struct {
	ID   string          `json:"id"`
	Type NodeType        `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewNodeData returns an empty data variant for t.
func NewNodeData(t NodeType) (NodeData, error) {
	switch t {
	case NodeTypeStart:
		return &StartData{}, nil
	case NodeTypeTask:
		return &TaskData{}, nil
	case NodeTypeApproval:
		return &ApprovalData{}, nil
	case NodeTypeAutomated:
		return &AutomatedData{}, nil
	case NodeTypeEnd:
		return &EndData{}, nil
	default:
		return nil, NewErrorf(ErrCodeDecode, "unknown node type %q", t)
	}
}

// UnmarshalJSON decodes {id, type, data} into the matching data variant.
func (n *Node) UnmarshalJSON(b []byte) error {
	var w nodeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return NewError(ErrCodeDecode, "invalid node").WithCause(err)
	}

	data, err := NewNodeData(w.Type)
	if err != nil {
		return NewErrorf(ErrCodeDecode, "unknown node type %q", w.Type).WithNode(w.ID)
	}

	if len(w.Data) > 0 && !bytes.Equal(bytes.TrimSpace(w.Data), []byte("null")) {
		if err := json.Unmarshal(w.Data, data); err != nil {
			return NewErrorf(ErrCodeDecode, "invalid %s data", w.Type).
				WithNode(w.ID).WithCause(err)
		}
	}

	n.ID = w.ID
	n.Data = data
	return nil
}

// MarshalJSON encodes the node back into the editor's {id, type, data} shape.
func (n Node) MarshalJSON() ([]byte, error) {
	w := struct {
		ID   string   `json:"id"`
		Type NodeType `json:"type"`
		Data NodeData `json:"data,omitempty"`
	}{ID: n.ID, Type: n.Type(), Data: n.Data}
	return json.Marshal(w)
}
