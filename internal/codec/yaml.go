package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"facter/internal/domain"
	"facter/internal/protocol"

	"gopkg.in/yaml.v3"
)

// maxYAMLNodes bounds the nodes emitted for one document, counting every
// alias expansion.
const maxYAMLNodes = 1_000_000

// YAMLParser reads YAML fact files. The first document must be a mapping;
// each top-level key is a fact.
type YAMLParser struct{}

// NewYAMLParser creates a new YAML parser
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Format returns the parser format identifier
func (p *YAMLParser) Format() string {
	return "yaml"
}

// Matches selects .yaml and .yml files
func (p *YAMLParser) Matches(path string, info fs.FileInfo) bool {
	return info.Mode().IsRegular() && hasExtension(path, ".yaml", ".yml")
}

// ParseFile parses the YAML file at path
func (p *YAMLParser) ParseFile(_ context.Context, path string, sink protocol.Sink) error {
	return parseFile(p, path, sink)
}

// Parse enumerates the facts of a YAML document
func (p *YAMLParser) Parse(r io.Reader, sink protocol.Sink) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file
			return nil
		}
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		root = root.Content[0]
	}
	root = resolveAlias(root)

	if root.Kind == yaml.ScalarNode && root.ShortTag() == "!!null" {
		return nil
	}
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("top-level YAML document must be a map, got %s", nodeKind(root))
	}

	w := &yamlWalker{sink: sink}
	return w.entries(root, 0)
}

type yamlWalker struct {
	sink  protocol.Sink
	nodes int
}

// entries emits every key/value pair of a mapping node
func (w *yamlWalker) entries(m *yaml.Node, depth int) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		key := resolveAlias(m.Content[i])
		val := m.Content[i+1]

		if key.ShortTag() == "!!merge" {
			if err := w.merge(val, depth); err != nil {
				return err
			}
			continue
		}
		if key.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: unsupported %s key", key.Line, nodeKind(key))
		}
		if key.Value == "" {
			continue
		}
		if err := w.emit(key.Value, val, depth); err != nil {
			return err
		}
	}
	return nil
}

// merge applies a "<<" merge key: the value is a mapping or a sequence of
// mappings whose entries are copied into the enclosing map
func (w *yamlWalker) merge(val *yaml.Node, depth int) error {
	if depth >= domain.MaxDepth {
		return fmt.Errorf("line %d: merge nested deeper than %d levels", val.Line, domain.MaxDepth)
	}
	val = resolveAlias(val)
	switch val.Kind {
	case yaml.MappingNode:
		return w.entries(val, depth+1)
	case yaml.SequenceNode:
		for _, item := range val.Content {
			item = resolveAlias(item)
			if item.Kind != yaml.MappingNode {
				return fmt.Errorf("line %d: merge value must be a map", item.Line)
			}
			if err := w.entries(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: merge value must be a map", val.Line)
	}
}

func (w *yamlWalker) emit(name string, n *yaml.Node, depth int) error {
	if depth >= domain.MaxDepth {
		return fmt.Errorf("line %d: value nested deeper than %d levels", n.Line, domain.MaxDepth)
	}
	if w.nodes++; w.nodes > maxYAMLNodes {
		return fmt.Errorf("line %d: document expands to more than %d nodes", n.Line, maxYAMLNodes)
	}
	n = resolveAlias(n)

	switch n.Kind {
	case yaml.ScalarNode:
		return w.scalar(name, n)
	case yaml.SequenceNode:
		if err := w.sink.ArrayStart(name); err != nil {
			return err
		}
		for _, item := range n.Content {
			if err := w.emit("", item, depth+1); err != nil {
				return err
			}
		}
		return w.sink.ArrayEnd()
	case yaml.MappingNode:
		if err := w.sink.MapStart(name); err != nil {
			return err
		}
		if err := w.entries(n, depth+1); err != nil {
			return err
		}
		return w.sink.MapEnd()
	default:
		return fmt.Errorf("line %d: unsupported %s node", n.Line, nodeKind(n))
	}
}

func (w *yamlWalker) scalar(name string, n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		if name == "" {
			// Sequence items keep their index
			return w.sink.String("", "")
		}
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		wire := 0
		if b {
			wire = 1
		}
		return w.sink.Boolean(name, wire)
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return w.sink.Integer(name, i)
		}
		// Out of int64 range: keep the literal
		return w.sink.String(name, n.Value)
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		return w.sink.Double(name, f)
	default:
		return w.sink.String(name, n.Value)
	}
}

// resolveAlias follows alias nodes to their anchor
func resolveAlias(n *yaml.Node) *yaml.Node {
	for i := 0; n.Kind == yaml.AliasNode && n.Alias != nil && i < domain.MaxDepth; i++ {
		n = n.Alias
	}
	return n
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
