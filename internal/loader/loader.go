// Package loader discovers external fact sources in a list of directories
// and merges their facts into one table.
package loader

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"facter/internal/codec"
	"facter/internal/domain"
	"facter/internal/protocol"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of directories scanned at once
const DefaultConcurrency = 4

// SourceResult reports one file considered by a load
type SourceResult struct {
	Path   string
	Format string
	Facts  int
	Err    error
}

// Result is the outcome of a load
type Result struct {
	Facts   *domain.FactSet
	Sources []SourceResult
}

// Failed returns the sources that contributed nothing because of an error
func (r *Result) Failed() []SourceResult {
	var out []SourceResult
	for _, s := range r.Sources {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Loader reads external fact directories. It keeps no state between loads.
type Loader struct {
	parsers     []codec.Parser
	execOpts    []codec.ExecOption
	concurrency int
	logger      *log.Logger
}

// Option configures a Loader
type Option func(*Loader)

// WithParsers replaces the default parser list. Order is dispatch order.
func WithParsers(parsers ...codec.Parser) Option {
	return func(l *Loader) {
		l.parsers = parsers
	}
}

// WithConcurrency bounds how many directories are scanned at once
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLogger sets the logger for skipped directories and failed sources
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithExecTimeout bounds each executable source. Ignored with WithParsers.
func WithExecTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.execOpts = append(l.execOpts, codec.WithExecTimeout(d))
	}
}

// New creates a loader
func New(opts ...Option) *Loader {
	l := &Loader{
		concurrency: DefaultConcurrency,
		logger:      log.Default().WithPrefix("loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.parsers == nil {
		execOpts := append(l.execOpts, codec.WithExecLogger(l.logger))
		l.parsers = codec.DefaultParsers(execOpts...)
	}
	return l
}

// fileFacts is the contribution of one file
type fileFacts struct {
	source SourceResult
	facts  *domain.FactSet
}

// Load reads every directory in dirs and merges the facts. Directories are
// scanned in parallel but merged strictly in order: a fact from a later
// directory overrides the same fact from an earlier one, and within a
// directory later files (by name) override earlier ones.
func (l *Loader) Load(ctx context.Context, dirs []string) *Result {
	perDir := make([][]fileFacts, len(dirs))

	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, dir := range dirs {
		g.Go(func() error {
			perDir[i] = l.loadDir(ctx, dir)
			return nil
		})
	}
	// Sources never fail the group; errors are recorded per file
	_ = g.Wait()

	result := &Result{Facts: domain.NewFactSet()}
	for _, files := range perDir {
		for _, f := range files {
			result.Sources = append(result.Sources, f.source)
			if f.facts != nil {
				result.Facts.Merge(f.facts)
			}
		}
	}

	l.logger.Debug("external facts loaded", "directories", len(dirs), "sources", len(result.Sources), "facts", result.Facts.Len())
	return result
}

// loadDir parses the fact sources of one directory in name order
func (l *Loader) loadDir(ctx context.Context, dir string) []fileFacts {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.logger.Debug("skipping fact directory", "dir", dir, "error", err)
		return nil
	}

	var out []fileFacts
	for _, entry := range entries {
		if ctx.Err() != nil {
			return out
		}

		path := filepath.Join(dir, entry.Name())
		// Stat follows symlinks
		info, err := os.Stat(path)
		if err != nil {
			l.logger.Debug("skipping unreadable entry", "path", path, "error", err)
			continue
		}
		if info.IsDir() {
			continue
		}

		parser := codec.ParserFor(l.parsers, path, info)
		if parser == nil {
			l.logger.Debug("ignoring file with no parser", "path", path)
			continue
		}

		out = append(out, l.loadFile(ctx, parser, path))
	}
	return out
}

// loadFile parses one source into its own builder. A failed source
// contributes no facts at all.
func (l *Loader) loadFile(ctx context.Context, parser codec.Parser, path string) fileFacts {
	source := SourceResult{Path: path, Format: parser.Format()}

	b := protocol.NewBuilder()
	err := parser.ParseFile(ctx, path, b)
	var facts *domain.FactSet
	if err == nil {
		facts, err = b.Finish()
	}
	if err != nil {
		source.Err = err
		l.logger.Warn("failed to load external facts", "path", path, "format", source.Format, "error", err)
		return fileFacts{source: source}
	}

	source.Facts = facts.Len()
	l.logger.Debug("loaded external facts", "path", path, "format", source.Format, "facts", source.Facts)
	return fileFacts{source: source, facts: facts}
}
