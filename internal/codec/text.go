package codec

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"unicode/utf8"

	"facter/internal/protocol"
)

// maxLineSize bounds a single key=value line. Longer lines are skipped.
const maxLineSize = 1024 * 1024

// TextParser reads key=value fact files, one string fact per line.
// Surrounding whitespace is trimmed from key and value; lines without '=',
// with an empty key or that are not valid UTF-8 are skipped.
type TextParser struct{}

// NewTextParser creates a new text parser
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Format returns the parser format identifier
func (p *TextParser) Format() string {
	return "text"
}

// Matches selects .txt files
func (p *TextParser) Matches(path string, info fs.FileInfo) bool {
	return info.Mode().IsRegular() && hasExtension(path, ".txt")
}

// ParseFile parses the text file at path
func (p *TextParser) ParseFile(_ context.Context, path string, sink protocol.Sink) error {
	return parseFile(p, path, sink)
}

// Parse enumerates key=value lines
func (p *TextParser) Parse(r io.Reader, sink protocol.Sink) error {
	br := bufio.NewReader(r)
	var line []byte
	oversize := false

	for {
		chunk, more, err := br.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read lines: %w", err)
		}

		if !oversize {
			if len(line)+len(chunk) > maxLineSize {
				oversize = true
			} else {
				line = append(line, chunk...)
			}
		}
		if more {
			continue
		}

		if !oversize {
			if key, value, ok := SplitLine(string(line)); ok {
				if err := sink.String(key, value); err != nil {
					return err
				}
			}
		}
		line = line[:0]
		oversize = false
	}
}

// SplitLine parses one key=value line. The split happens at the first '='
// so values may contain further '=' characters.
func SplitLine(line string) (key, value string, ok bool) {
	if !utf8.ValidString(line) {
		return "", "", false
	}
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}
