package protocol

import (
	"fmt"

	"facter/internal/domain"
)

type frameKind int

const (
	frameArray frameKind = iota
	frameMap
)

func (k frameKind) String() string {
	if k == frameArray {
		return "array"
	}
	return "map"
}

// frame is a container under construction
type frame struct {
	kind  frameKind
	name  string // name the finished container is bound to in its parent
	array domain.Array
	m     *domain.Map
}

func (f *frame) value() domain.Value {
	if f.kind == frameArray {
		if f.array == nil {
			return domain.Array{}
		}
		return f.array
	}
	return f.m
}

// Builder decodes an enumeration into a fact set.
//
// The first protocol violation is sticky: every later call returns the same
// error and Finish reports it.
type Builder struct {
	facts    *domain.FactSet
	stack    []*frame
	maxDepth int
	err      error
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithMaxDepth overrides the container nesting limit
func WithMaxDepth(depth int) BuilderOption {
	return func(b *Builder) {
		b.maxDepth = depth
	}
}

// NewBuilder creates a builder with an empty fact set
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		facts:    domain.NewFactSet(),
		maxDepth: domain.MaxDepth,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Depth returns the number of open containers
func (b *Builder) Depth() int {
	return len(b.stack)
}

// Err returns the first error encountered, if any
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(format string, args ...any) error {
	if b.err == nil {
		b.err = fmt.Errorf("%w: %s", ErrMalformedEnumeration, fmt.Sprintf(format, args...))
	}
	return b.err
}

// add binds a finished value into the innermost open container, or into
// the fact set at top level.
func (b *Builder) add(name string, v domain.Value) error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) == 0 {
		if domain.NormalizeName(name) == "" {
			return b.fail("top-level %s value without a fact name", v.Kind())
		}
		b.facts.Set(name, v)
		return nil
	}

	top := b.stack[len(b.stack)-1]
	switch top.kind {
	case frameArray:
		top.array = append(top.array, v)
	case frameMap:
		if name == "" {
			return b.fail("%s entry without a key in map %q", v.Kind(), top.name)
		}
		top.m.Set(name, v)
	}
	return nil
}

func (b *Builder) String(name, value string) error {
	return b.add(name, domain.String(value))
}

func (b *Builder) Integer(name string, value int64) error {
	return b.add(name, domain.Integer(value))
}

func (b *Builder) Boolean(name string, value int) error {
	return b.add(name, domain.Boolean(value != 0))
}

func (b *Builder) Double(name string, value float64) error {
	return b.add(name, domain.Double(value))
}

func (b *Builder) push(kind frameKind, name string) error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) >= b.maxDepth {
		return b.fail("%s %q nested deeper than %d levels", kind, name, b.maxDepth)
	}
	if len(b.stack) == 0 && domain.NormalizeName(name) == "" {
		return b.fail("top-level %s without a fact name", kind)
	}
	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		if top.kind == frameMap && name == "" {
			return b.fail("%s entry without a key in map %q", kind, top.name)
		}
	}

	f := &frame{kind: kind, name: name}
	if kind == frameMap {
		f.m = domain.NewMap()
	}
	b.stack = append(b.stack, f)
	return nil
}

func (b *Builder) pop(kind frameKind) error {
	if b.err != nil {
		return b.err
	}
	if len(b.stack) == 0 {
		return b.fail("%s end without a matching start", kind)
	}
	top := b.stack[len(b.stack)-1]
	if top.kind != kind {
		return b.fail("%s end closes %s %q", kind, top.kind, top.name)
	}
	b.stack = b.stack[:len(b.stack)-1]
	return b.add(top.name, top.value())
}

func (b *Builder) ArrayStart(name string) error {
	return b.push(frameArray, name)
}

func (b *Builder) ArrayEnd() error {
	return b.pop(frameArray)
}

func (b *Builder) MapStart(name string) error {
	return b.push(frameMap, name)
}

func (b *Builder) MapEnd() error {
	return b.pop(frameMap)
}

// Finish returns the decoded facts. It fails if any container is still
// open or an earlier call was rejected.
func (b *Builder) Finish() (*domain.FactSet, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.stack) > 0 {
		top := b.stack[len(b.stack)-1]
		return nil, b.fail("%d unclosed container(s), innermost %s %q", len(b.stack), top.kind, top.name)
	}
	return b.facts, nil
}
