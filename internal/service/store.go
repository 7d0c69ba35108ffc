package service

import (
	"context"
	"strings"
	"sync"

	"facter/internal/domain"
	"facter/internal/loader"
	"facter/internal/protocol"

	"github.com/charmbracelet/log"
)

// NativeProvider enumerates the built-in facts of the host
type NativeProvider interface {
	Enumerate(ctx context.Context, sink protocol.Sink) error
}

// ExternalLoader loads external facts from an ordered list of directories
type ExternalLoader interface {
	Load(ctx context.Context, dirs []string) *loader.Result
}

// State is the population state of a Store
type State int

const (
	StateEmpty State = iota
	StatePopulated
)

func (s State) String() string {
	if s == StatePopulated {
		return "populated"
	}
	return "empty"
}

// PathKind selects one of the two search paths
type PathKind string

const (
	PathNative   PathKind = "native"
	PathExternal PathKind = "external"
)

// PathMode selects how ConfigureSearchPaths changes a path
type PathMode int

const (
	PathAppend PathMode = iota
	PathReplace
	PathClear
)

// Store is the merged fact table. It is populated lazily on first access:
// native facts first, then external facts on top. A Reset drops the table
// but keeps the configured search paths. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	native   NativeProvider
	external ExternalLoader
	events   *EventBus
	logger   *log.Logger

	searchPath   []string
	externalPath []string
	restrict     map[string]bool

	facts      *domain.FactSet
	state      State
	generation int
	sources    []loader.SourceResult
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithEventBus publishes store events on bus
func WithEventBus(bus *EventBus) StoreOption {
	return func(s *Store) {
		s.events = bus
	}
}

// WithStoreLogger sets the logger for population
func WithStoreLogger(logger *log.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty store. Either collaborator may be nil.
func NewStore(native NativeProvider, external ExternalLoader, opts ...StoreOption) *Store {
	s := &Store{
		native:   native,
		external: external,
		logger:   log.Default().WithPrefix("store"),
		state:    StateEmpty,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Value returns the value of the named fact
func (s *Store) Value(ctx context.Context, name string) (domain.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePopulated(ctx)
	return s.facts.Get(name)
}

// Fact returns the named fact record
func (s *Store) Fact(ctx context.Context, name string) (*domain.Fact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePopulated(ctx)
	f := s.facts.Fact(name)
	return f, f != nil
}

// Query resolves a dotted fact query such as "os.release.major"
func (s *Store) Query(ctx context.Context, query string) (domain.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePopulated(ctx)
	return s.facts.Query(query)
}

// ToMap returns a copy of the full fact table
func (s *Store) ToMap(ctx context.Context) *domain.FactSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensurePopulated(ctx)
	return s.facts.Clone()
}

// Reset drops the cached facts so the next access populates again.
// Search paths and the fact restriction are kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Store) reset() {
	if s.state == StateEmpty {
		return
	}
	s.facts = nil
	s.sources = nil
	s.state = StateEmpty
	s.events.Publish(Event{Type: EventReset})
}

// State returns the population state
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Populated reports whether the fact table is cached
func (s *Store) Populated() bool {
	return s.State() == StatePopulated
}

// Generation returns the number of completed population passes
func (s *Store) Generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Sources returns the per-file report of the last external load
func (s *Store) Sources() []loader.SourceResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]loader.SourceResult(nil), s.sources...)
}

// Search appends native fact directories
func (s *Store) Search(paths ...string) {
	s.ConfigureSearchPaths(PathNative, PathAppend, paths...)
}

// SearchPath returns the native fact directories
func (s *Store) SearchPath() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.searchPath...)
}

// ResetSearchPath clears the native fact directories
func (s *Store) ResetSearchPath() {
	s.ConfigureSearchPaths(PathNative, PathClear)
}

// SearchExternal appends external fact directories. Later directories take
// precedence over earlier ones.
func (s *Store) SearchExternal(paths ...string) {
	s.ConfigureSearchPaths(PathExternal, PathAppend, paths...)
}

// SearchExternalPath returns the external fact directories
func (s *Store) SearchExternalPath() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.externalPath...)
}

// ResetExternalSearchPath clears the external fact directories
func (s *Store) ResetExternalSearchPath() {
	s.ConfigureSearchPaths(PathExternal, PathClear)
}

// ConfigureSearchPaths changes one search path. Changing a path does not
// drop facts that are already cached; call Reset to reload.
func (s *Store) ConfigureSearchPaths(kind PathKind, mode PathMode, paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := &s.externalPath
	if kind == PathNative {
		target = &s.searchPath
	}

	switch mode {
	case PathAppend:
		*target = append(*target, paths...)
	case PathReplace:
		*target = append([]string(nil), paths...)
	case PathClear:
		*target = nil
	}

	s.events.Publish(Event{
		Type:    EventSearchPathChanged,
		Payload: SearchPathPayload{Kind: kind, Paths: append([]string{}, *target...)},
	})
}

// AddSearchPaths appends every directory of a separator-joined list, such as
// a PATH-style environment variable. Empty elements are dropped.
func (s *Store) AddSearchPaths(kind PathKind, list, separator string) {
	if list == "" || separator == "" {
		return
	}
	var paths []string
	for _, p := range strings.Split(list, separator) {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return
	}
	s.ConfigureSearchPaths(kind, PathAppend, paths...)
}

// Restrict limits population to the named facts. With no names every fact
// is kept. The restriction survives Reset and takes effect on the next
// population.
func (s *Store) Restrict(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restrict = nil
	for _, n := range names {
		if n = domain.NormalizeName(n); n != "" {
			if s.restrict == nil {
				s.restrict = make(map[string]bool)
			}
			s.restrict[n] = true
		}
	}
}

// ensurePopulated runs one population pass if the table is empty.
// The caller holds s.mu. The pass is detached from the caller's
// cancellation since its result is shared by every later caller;
// executable facts stay bounded by their own timeout.
func (s *Store) ensurePopulated(ctx context.Context) {
	if s.state == StatePopulated {
		return
	}
	ctx = context.WithoutCancel(ctx)

	facts := s.collectNative(ctx)

	failed := 0
	if s.external != nil && len(s.externalPath) > 0 {
		result := s.external.Load(ctx, append([]string(nil), s.externalPath...))
		if result != nil {
			// External facts override native ones
			facts.Merge(result.Facts)
			s.sources = result.Sources
			failed = len(result.Failed())
		}
	}

	if s.restrict != nil {
		facts.Retain(s.restrict)
	}

	s.facts = facts
	s.state = StatePopulated
	s.generation++

	s.logger.Info("facts populated", "generation", s.generation, "facts", facts.Len(), "failed_sources", failed)
	s.events.Publish(Event{
		Type:    EventPopulated,
		Payload: PopulatedPayload{Generation: s.generation, Facts: facts.Len(), Failed: failed},
	})
}

// collectNative enumerates the native provider into a fresh builder. A
// failing provider contributes no facts.
func (s *Store) collectNative(ctx context.Context) *domain.FactSet {
	if s.native == nil {
		return domain.NewFactSet()
	}

	b := protocol.NewBuilder()
	err := s.native.Enumerate(ctx, b)
	var facts *domain.FactSet
	if err == nil {
		facts, err = b.Finish()
	}
	if err != nil {
		s.logger.Warn("native facts dropped", "error", err)
		return domain.NewFactSet()
	}
	return facts
}
