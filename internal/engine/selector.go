package engine

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rendis/flowsim/pkg/schema"
)

// EdgeStrategy picks the single edge a walk follows out of a node.
type EdgeStrategy string

const (
	// FirstOutgoing follows the first outgoing edge in document order.
	FirstOutgoing EdgeStrategy = "first"
	// ByPriority follows the outgoing edge with the lowest priority value;
	// ties go to the earlier edge in document order.
	ByPriority EdgeStrategy = "priority"
)

// ParseEdgeStrategy maps a configuration value to an EdgeStrategy.
// The empty string selects FirstOutgoing.
func ParseEdgeStrategy(s string) (EdgeStrategy, error) {
	switch EdgeStrategy(s) {
	case "", FirstOutgoing:
		return FirstOutgoing, nil
	case ByPriority:
		return ByPriority, nil
	default:
		return "", fmt.Errorf("unknown edge strategy %q (want %q or %q)", s, FirstOutgoing, ByPriority)
	}
}

// Select returns the edge to follow, or false when out is empty.
func (s EdgeStrategy) Select(out []schema.Edge) (schema.Edge, bool) {
	if len(out) == 0 {
		return schema.Edge{}, false
	}
	if s != ByPriority {
		return out[0], true
	}
	// MinFunc keeps the first of equal elements.
	return slices.MinFunc(out, func(a, b schema.Edge) int {
		return cmp.Compare(a.Priority, b.Priority)
	}), true
}
