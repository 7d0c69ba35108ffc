package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"facter/internal/domain"

	"gopkg.in/yaml.v3"
)

// JSONExporter writes a fact table as an indented JSON object
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Format returns the exporter format identifier
func (e *JSONExporter) Format() string {
	return "json"
}

// Export writes facts as JSON in table order
func (e *JSONExporter) Export(facts *domain.FactSet, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(facts); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// YAMLExporter writes a fact table as a YAML mapping
type YAMLExporter struct{}

// NewYAMLExporter creates a new YAML exporter
func NewYAMLExporter() *YAMLExporter {
	return &YAMLExporter{}
}

// Format returns the exporter format identifier
func (e *YAMLExporter) Format() string {
	return "yaml"
}

// Export writes facts as YAML in table order
func (e *YAMLExporter) Export(facts *domain.FactSet, w io.Writer) error {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	facts.Range(func(name string, v domain.Value) bool {
		root.Content = append(root.Content, yamlString(name), YAMLNode(v))
		return true
	})

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

func yamlString(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// YAMLNode converts a value into a YAML node tree
func YAMLNode(v domain.Value) *yaml.Node {
	switch tv := v.(type) {
	case domain.String:
		return yamlString(string(tv))
	case domain.Integer:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: tv.String()}
	case domain.Boolean:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: tv.String()}
	case domain.Double:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: yamlFloat(float64(tv))}
	case domain.Array:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(tv) == 0 {
			n.Style = yaml.FlowStyle
		}
		for _, e := range tv {
			n.Content = append(n.Content, YAMLNode(e))
		}
		return n
	case *domain.Map:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if tv.Len() == 0 {
			n.Style = yaml.FlowStyle
		}
		tv.Range(func(k string, e domain.Value) bool {
			n.Content = append(n.Content, yamlString(k), YAMLNode(e))
			return true
		})
		return n
	default:
		panic(fmt.Sprintf("codec: unhandled value type %T", v))
	}
}

// yamlFloat formats f so that it reads back as a float, not an int
func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// TextExporter writes facts in the "name => value" console format.
// Top-level strings are printed bare; nested values are indented.
type TextExporter struct{}

// NewTextExporter creates a new text exporter
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Format returns the exporter format identifier
func (e *TextExporter) Format() string {
	return "text"
}

// Export writes one line (or block) per fact
func (e *TextExporter) Export(facts *domain.FactSet, w io.Writer) error {
	var err error
	facts.Range(func(name string, v domain.Value) bool {
		_, err = fmt.Fprintf(w, "%s => %s\n", name, FormatText(v))
		return err == nil
	})
	return err
}

// FormatText renders a single value the way the text exporter does
func FormatText(v domain.Value) string {
	if s, ok := v.(domain.String); ok {
		return string(s)
	}
	var b strings.Builder
	writeText(&b, v, 0)
	return b.String()
}

func writeText(b *strings.Builder, v domain.Value, indent int) {
	pad := strings.Repeat("  ", indent+1)
	closing := strings.Repeat("  ", indent)

	switch tv := v.(type) {
	case domain.String:
		b.WriteString(strconv.Quote(string(tv)))
	case domain.Integer, domain.Boolean, domain.Double:
		b.WriteString(tv.String())
	case domain.Array:
		if len(tv) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, e := range tv {
			b.WriteString(pad)
			writeText(b, e, indent+1)
			if i < len(tv)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(closing + "]")
	case *domain.Map:
		if tv.Len() == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		i := 0
		tv.Range(func(k string, e domain.Value) bool {
			b.WriteString(pad + k + " => ")
			writeText(b, e, indent+1)
			if i < tv.Len()-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
			i++
			return true
		})
		b.WriteString(closing + "}")
	default:
		panic(fmt.Sprintf("codec: unhandled value type %T", v))
	}
}
