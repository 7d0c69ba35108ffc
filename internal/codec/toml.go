package codec

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"time"

	"facter/internal/domain"
	"facter/internal/protocol"

	"github.com/pelletier/go-toml/v2"
)

// TOMLParser reads TOML fact files. Each top-level key is a fact; keys are
// emitted in sorted order and date/time values as strings.
type TOMLParser struct{}

// NewTOMLParser creates a new TOML parser
func NewTOMLParser() *TOMLParser {
	return &TOMLParser{}
}

// Format returns the parser format identifier
func (p *TOMLParser) Format() string {
	return "toml"
}

// Matches selects .toml files
func (p *TOMLParser) Matches(path string, info fs.FileInfo) bool {
	return info.Mode().IsRegular() && hasExtension(path, ".toml")
}

// ParseFile parses the TOML file at path
func (p *TOMLParser) ParseFile(_ context.Context, path string, sink protocol.Sink) error {
	return parseFile(p, path, sink)
}

// Parse enumerates the facts of a TOML document
func (p *TOMLParser) Parse(r io.Reader, sink protocol.Sink) error {
	var doc map[string]any
	if err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "" {
			continue
		}
		v, err := tomlValue(doc[k], 0)
		if err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		if err := protocol.Emit(sink, k, v); err != nil {
			return err
		}
	}
	return nil
}

func tomlValue(v any, depth int) (domain.Value, error) {
	if depth >= domain.MaxDepth {
		return nil, fmt.Errorf("value nested deeper than %d levels", domain.MaxDepth)
	}

	switch tv := v.(type) {
	case time.Time:
		return domain.String(tv.Format(time.RFC3339Nano)), nil
	case toml.LocalDate:
		return domain.String(tv.String()), nil
	case toml.LocalTime:
		return domain.String(tv.String()), nil
	case toml.LocalDateTime:
		return domain.String(tv.String()), nil
	case []any:
		out := make(domain.Array, 0, len(tv))
		for i, e := range tv {
			ev, err := tomlValue(e, depth+1)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, ev)
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := domain.NewMap()
		for _, k := range keys {
			if k == "" {
				continue
			}
			ev, err := tomlValue(tv[k], depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out.Set(k, ev)
		}
		return out, nil
	default:
		return domain.FromNative(v)
	}
}
