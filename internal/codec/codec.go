// Package codec reads external fact sources and writes fact tables.
//
// Parsers turn one source (a YAML, JSON, TOML or text file, or the output
// of an executable) into calls on a protocol.Sink. Exporters render a
// merged fact table for display.
package codec

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"facter/internal/domain"
	"facter/internal/protocol"
)

// Parser decodes one external fact source into a sink
type Parser interface {
	// Format returns the parser format identifier
	Format() string

	// Matches reports whether the file at path is handled by this parser
	Matches(path string, info fs.FileInfo) bool

	// ParseFile enumerates the facts of the source into sink. Errors are
	// *ParseError or *ExecutionFailure.
	ParseFile(ctx context.Context, path string, sink protocol.Sink) error
}

// Exporter renders a fact table
type Exporter interface {
	Export(facts *domain.FactSet, w io.Writer) error
	Format() string
}

// readerParser is implemented by parsers of plain files
type readerParser interface {
	Format() string
	Parse(r io.Reader, sink protocol.Sink) error
}

// parseFile opens path and runs p over its content
func parseFile(p readerParser, path string, sink protocol.Sink) error {
	f, err := os.Open(path)
	if err != nil {
		return &ParseError{Path: path, Format: p.Format(), Err: err}
	}
	defer f.Close()

	if err := p.Parse(f, sink); err != nil {
		return &ParseError{Path: path, Format: p.Format(), Err: err}
	}
	return nil
}

func hasExtension(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// DefaultParsers returns the parsers in dispatch order. Extension-based
// formats come first, so an executable .yaml file is still read as YAML.
func DefaultParsers(opts ...ExecOption) []Parser {
	return []Parser{
		NewYAMLParser(),
		NewJSONParser(),
		NewTOMLParser(),
		NewTextParser(),
		NewExecParser(opts...),
	}
}

// ParserFor returns the first parser in parsers matching the file, or nil
func ParserFor(parsers []Parser, path string, info fs.FileInfo) Parser {
	for _, p := range parsers {
		if p.Matches(path, info) {
			return p
		}
	}
	return nil
}

// ExporterFor returns the exporter for a format name, or nil
func ExporterFor(format string) Exporter {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter()
	case "yaml", "yml":
		return NewYAMLExporter()
	case "", "text":
		return NewTextExporter()
	default:
		return nil
	}
}
