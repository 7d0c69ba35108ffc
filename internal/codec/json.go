package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"facter/internal/domain"
	"facter/internal/protocol"

	"github.com/tidwall/gjson"
)

// JSONParser reads JSON fact files. The document must be an object; each
// member is a fact. Member order is preserved.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Format returns the parser format identifier
func (p *JSONParser) Format() string {
	return "json"
}

// Matches selects .json files
func (p *JSONParser) Matches(path string, info fs.FileInfo) bool {
	return info.Mode().IsRegular() && hasExtension(path, ".json")
}

// ParseFile parses the JSON file at path
func (p *JSONParser) ParseFile(_ context.Context, path string, sink protocol.Sink) error {
	return parseFile(p, path, sink)
}

// Parse enumerates the facts of a JSON document
func (p *JSONParser) Parse(r io.Reader, sink protocol.Sink) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read JSON: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return errors.New("failed to parse JSON: invalid document")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return fmt.Errorf("top-level JSON document must be an object, got %s", root.Type)
	}

	return jsonMembers(sink, root, 0)
}

func jsonMembers(sink protocol.Sink, obj gjson.Result, depth int) error {
	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		if name == "" {
			return true
		}
		err = jsonEmit(sink, name, value, depth)
		return err == nil
	})
	return err
}

func jsonEmit(sink protocol.Sink, name string, v gjson.Result, depth int) error {
	if depth >= domain.MaxDepth {
		return fmt.Errorf("value %q nested deeper than %d levels", name, domain.MaxDepth)
	}

	switch v.Type {
	case gjson.Null:
		if name == "" {
			// Array items keep their index
			return sink.String("", "")
		}
		return nil
	case gjson.False:
		return sink.Boolean(name, 0)
	case gjson.True:
		return sink.Boolean(name, 1)
	case gjson.String:
		return sink.String(name, v.String())
	case gjson.Number:
		return jsonNumber(sink, name, v)
	case gjson.JSON:
		if v.IsArray() {
			if err := sink.ArrayStart(name); err != nil {
				return err
			}
			var err error
			v.ForEach(func(_, item gjson.Result) bool {
				err = jsonEmit(sink, "", item, depth+1)
				return err == nil
			})
			if err != nil {
				return err
			}
			return sink.ArrayEnd()
		}
		if err := sink.MapStart(name); err != nil {
			return err
		}
		if err := jsonMembers(sink, v, depth+1); err != nil {
			return err
		}
		return sink.MapEnd()
	default:
		return fmt.Errorf("unsupported JSON value %s", v.Raw)
	}
}

// jsonNumber keeps integral literals as integers. Literals with a fraction
// or exponent, and integers beyond int64, become doubles.
func jsonNumber(sink protocol.Sink, name string, v gjson.Result) error {
	raw := strings.TrimSpace(v.Raw)
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return sink.Integer(name, i)
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f = v.Num
	}
	return sink.Double(name, f)
}
