// Package native resolves the built-in facts of the local host: operating
// system, kernel, processors, memory, networking, identity and
// virtualization.
package native

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"facter/internal/domain"
	"facter/internal/protocol"

	"github.com/charmbracelet/log"
)

// Version is reported as the facterversion fact
const Version = "1.0.0"

// resolver adds one group of facts to fs
type resolver struct {
	name    string
	resolve func(p *Provider, fs *domain.FactSet)
}

// resolvers run in order; a later resolver may overwrite an earlier fact
var resolvers = []resolver{
	{"os", resolveOS},
	{"kernel", resolveKernel},
	{"resources", resolveResources},
	{"virtualization", resolveVirtualization},
	{"identity", resolveIdentity},
	{"networking", resolveNetworking},
	{"system", resolveSystem},
}

// Provider enumerates native facts. Host files are read relative to a root
// directory so tests can supply a fake /proc, /sys and /etc.
type Provider struct {
	root   string
	getenv func(string) string
	logger *log.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithRoot reads host files below root instead of "/"
func WithRoot(root string) Option {
	return func(p *Provider) {
		p.root = root
	}
}

// WithEnv replaces os.Getenv
func WithEnv(getenv func(string) string) Option {
	return func(p *Provider) {
		if getenv != nil {
			p.getenv = getenv
		}
	}
}

// WithLogger sets the provider logger
func WithLogger(logger *log.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a native fact provider
func New(opts ...Option) *Provider {
	p := &Provider{
		root:   "/",
		getenv: os.Getenv,
		logger: log.Default().WithPrefix("native"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Facts resolves every native fact
func (p *Provider) Facts(ctx context.Context) *domain.FactSet {
	fs := domain.NewFactSet()
	fs.Set("facterversion", domain.String(Version))

	for _, r := range resolvers {
		if ctx.Err() != nil {
			break
		}
		before := fs.Len()
		r.resolve(p, fs)
		p.logger.Debug("resolved native facts", "resolver", r.name, "facts", fs.Len()-before)
	}
	return fs
}

// Enumerate sends every native fact to sink
func (p *Provider) Enumerate(ctx context.Context, sink protocol.Sink) error {
	return protocol.EmitFacts(sink, p.Facts(ctx))
}

// path maps an absolute host path below the provider root
func (p *Provider) path(name string) string {
	return filepath.Join(p.root, filepath.FromSlash(name))
}

// readFile returns the trimmed content of a host file, or "" if unreadable
func (p *Provider) readFile(name string) string {
	data, err := os.ReadFile(p.path(name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *Provider) exists(name string) bool {
	_, err := os.Stat(p.path(name))
	return err == nil
}

// setString sets a string fact unless the value is empty
func setString(fs *domain.FactSet, name, value string) {
	if value != "" {
		fs.Set(name, domain.String(value))
	}
}

// putString sets a string map entry unless the value is empty
func putString(m *domain.Map, key, value string) {
	if value != "" {
		m.Set(key, domain.String(value))
	}
}
