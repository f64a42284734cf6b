// Package loader reads workflow documents from disk or bytes. JSON and YAML
// are both accepted; YAML is converted to JSON with mapping order intact
// before the structural schema check and decode.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rendis/flowsim/internal/validation"
	"github.com/rendis/flowsim/pkg/schema"
)

// Loader decodes workflow documents into graphs.
type Loader struct {
	schema *validation.JSONSchemaValidator
}

// New compiles the graph schema and returns a Loader.
func New() (*Loader, error) {
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Loader{schema: v}, nil
}

// LoadFile reads path and decodes it. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. A graph without a name takes the
// file's base name.
func (l *Loader) LoadFile(path string) (*schema.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	g, err := l.Parse(data, isYAMLPath(path))
	if err != nil {
		return nil, err
	}
	if g.Name == "" {
		g.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return g, nil
}

// Read consumes r and decodes it, sniffing the format.
func (l *Loader) Read(r io.Reader) (*schema.Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	return l.Parse(data, !looksLikeJSON(data))
}

// Parse decodes a document. When asYAML is set the data is converted from
// YAML first.
func (l *Loader) Parse(data []byte, asYAML bool) (*schema.Graph, error) {
	if asYAML {
		converted, err := YAMLToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	if err := l.schema.ValidateDocument(data); err != nil {
		return nil, err
	}

	var g schema.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		var fe *schema.FlowsimError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, schema.NewError(schema.ErrCodeDecode, "invalid workflow document").WithCause(err)
	}
	return &g, nil
}

// maxYAMLNodes caps the number of nodes a YAML document may expand to once
// aliases are followed.
const maxYAMLNodes = 50000

// YAMLToJSON converts a single YAML document to JSON, keeping mapping keys
// in document order. Documents whose alias expansion exceeds maxYAMLNodes
// are rejected.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "invalid YAML").WithCause(err)
	}
	c := converter{budget: maxYAMLNodes}
	if err := c.write(&doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "invalid YAML").WithCause(err)
	}
	return c.buf.Bytes(), nil
}

var errYAMLTooLarge = errors.New("document expands to too many nodes")

type converter struct {
	buf    bytes.Buffer
	budget int
	depth  int
}

func (c *converter) write(n *yaml.Node) error {
	c.budget--
	if c.budget < 0 {
		return errYAMLTooLarge
	}
	buf := &c.buf
	switch n.Kind {
	case 0:
		buf.WriteString("null")
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return c.write(n.Content[0])
	case yaml.AliasNode:
		// Chains of aliases are bounded as well as their expansion.
		c.depth++
		defer func() { c.depth-- }()
		if c.depth > 100 {
			return errYAMLTooLarge
		}
		return c.write(n.Alias)
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(key.Value)
			buf.Write(k)
			buf.WriteByte(':')
			if err := c.write(n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := c.write(item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		if n.ShortTag() == "!!timestamp" {
			b, _ := json.Marshal(n.Value)
			buf.Write(b)
			return nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(b)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
	return nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
