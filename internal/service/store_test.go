package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"facter/internal/domain"
	"facter/internal/loader"
	"facter/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNative enumerates a fixed fact set and counts calls
type fakeNative struct {
	facts *domain.FactSet
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeNative) Enumerate(_ context.Context, sink protocol.Sink) error {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := protocol.EmitFacts(sink, f.facts); err != nil {
		return err
	}
	return f.err
}

func nativeFacts(pairs ...string) *fakeNative {
	fs := domain.NewFactSet()
	for i := 0; i+1 < len(pairs); i += 2 {
		fs.Set(pairs[i], domain.String(pairs[i+1]))
	}
	return &fakeNative{facts: fs}
}

// fakeLoader records the directories it was asked to load
type fakeLoader struct {
	mu    sync.Mutex
	dirs  [][]string
	facts *domain.FactSet
}

func (f *fakeLoader) Load(_ context.Context, dirs []string) *loader.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs = append(f.dirs, dirs)
	return &loader.Result{Facts: f.facts.Clone()}
}

func TestStoreLazyPopulation(t *testing.T) {
	ctx := context.Background()
	native := nativeFacts("kernel", "Linux")
	store := NewStore(native, nil)

	assert.Equal(t, StateEmpty, store.State())
	assert.False(t, store.Populated())
	assert.Equal(t, int32(0), native.calls.Load())

	v, ok := store.Value(ctx, "kernel")
	require.True(t, ok)
	assert.Equal(t, domain.String("Linux"), v)
	assert.True(t, store.Populated())
	assert.Equal(t, 1, store.Generation())

	first := store.ToMap(ctx)
	second := store.ToMap(ctx)
	assert.Equal(t, first.Facts(), second.Facts())
	assert.Equal(t, int32(1), native.calls.Load(), "cached table is reused")
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	native := nativeFacts("kernel", "Linux")
	store := NewStore(native, nil)

	store.Reset()
	assert.Equal(t, StateEmpty, store.State(), "reset of an empty store is a no-op")

	store.ToMap(ctx)
	store.Reset()
	store.Reset()
	assert.Equal(t, StateEmpty, store.State())

	native.facts.Set("kernel", domain.String("Darwin"))
	v, ok := store.Value(ctx, "kernel")
	require.True(t, ok)
	assert.Equal(t, domain.String("Darwin"), v)
	assert.Equal(t, 2, store.Generation())
	assert.Equal(t, int32(2), native.calls.Load())
}

func TestStoreToMapIsACopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nativeFacts("kernel", "Linux"), nil)

	m := store.ToMap(ctx)
	m.Set("kernel", domain.String("mutated"))
	m.Set("extra", domain.Integer(1))

	v, _ := store.Value(ctx, "kernel")
	assert.Equal(t, domain.String("Linux"), v)
	_, ok := store.Value(ctx, "extra")
	assert.False(t, ok)
}

func TestStoreUnknownFact(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nativeFacts("kernel", "Linux"), nil)

	v, ok := store.Value(ctx, "does_not_exist")
	assert.False(t, ok)
	assert.Nil(t, v)

	f, ok := store.Fact(ctx, "does_not_exist")
	assert.False(t, ok)
	assert.Nil(t, f)

	_, ok = store.Query(ctx, "kernel.nope")
	assert.False(t, ok)
}

func TestStoreNameNormalization(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nativeFacts("kernel", "Linux"), nil)

	f, ok := store.Fact(ctx, "  KERNEL ")
	require.True(t, ok)
	assert.Equal(t, "kernel", f.Name)
	assert.Equal(t, domain.String("Linux"), f.Value)
}

func TestStoreSearchPaths(t *testing.T) {
	store := NewStore(nil, nil)

	store.SearchExternal("a", "b")
	assert.Equal(t, []string{"a", "b"}, store.SearchExternalPath())
	store.SearchExternal("c")
	assert.Equal(t, []string{"a", "b", "c"}, store.SearchExternalPath())

	got := store.SearchExternalPath()
	got[0] = "mutated"
	assert.Equal(t, "a", store.SearchExternalPath()[0], "getter returns a copy")

	store.ResetExternalSearchPath()
	assert.Equal(t, []string{}, store.SearchExternalPath())

	store.Search("x")
	store.Search("y", "z")
	assert.Equal(t, []string{"x", "y", "z"}, store.SearchPath())
	store.ResetSearchPath()
	assert.Empty(t, store.SearchPath())
}

func TestStoreConfigureSearchPaths(t *testing.T) {
	store := NewStore(nil, nil)

	tests := []struct {
		name  string
		kind  PathKind
		mode  PathMode
		paths []string
		want  []string
	}{
		{"append", PathExternal, PathAppend, []string{"a"}, []string{"a"}},
		{"append more", PathExternal, PathAppend, []string{"b", "c"}, []string{"a", "b", "c"}},
		{"replace", PathExternal, PathReplace, []string{"d"}, []string{"d"}},
		{"clear", PathExternal, PathClear, []string{"ignored"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.ConfigureSearchPaths(tt.kind, tt.mode, tt.paths...)
			assert.Equal(t, tt.want, store.SearchExternalPath())
			assert.Empty(t, store.SearchPath(), "native path untouched")
		})
	}
}

func TestStoreAddSearchPaths(t *testing.T) {
	store := NewStore(nil, nil)

	store.AddSearchPaths(PathExternal, "/one:/two::/three", ":")
	assert.Equal(t, []string{"/one", "/two", "/three"}, store.SearchExternalPath())

	store.AddSearchPaths(PathExternal, "", ":")
	store.AddSearchPaths(PathExternal, "/four", "")
	assert.Len(t, store.SearchExternalPath(), 3)

	store.AddSearchPaths(PathNative, "/custom", ";")
	assert.Equal(t, []string{"/custom"}, store.SearchPath())
}

func TestStoreSearchPathsSurviveReset(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nil, nil)
	store.SearchExternal("a")
	store.Search("b")

	store.ToMap(ctx)
	store.Reset()

	assert.Equal(t, []string{"a"}, store.SearchExternalPath())
	assert.Equal(t, []string{"b"}, store.SearchPath())
}

func TestStoreExternalOverridesNative(t *testing.T) {
	ctx := context.Background()
	external := domain.NewFactSet()
	external.Set("os", domain.String("override"))
	external.Set("custom", domain.Boolean(true))

	ext := &fakeLoader{facts: external}
	store := NewStore(nativeFacts("os", "base", "kernel", "Linux"), ext)
	store.SearchExternal("/etc/facts.d", "/home/facts.d")

	v, ok := store.Value(ctx, "os")
	require.True(t, ok)
	assert.Equal(t, domain.String("override"), v)

	all := store.ToMap(ctx)
	assert.Equal(t, []string{"os", "kernel", "custom"}, all.Names())
	require.Len(t, ext.dirs, 1)
	assert.Equal(t, []string{"/etc/facts.d", "/home/facts.d"}, ext.dirs[0])
}

func TestStoreSkipsLoaderWithoutExternalPath(t *testing.T) {
	ext := &fakeLoader{facts: domain.NewFactSet()}
	store := NewStore(nativeFacts("a", "1"), ext)

	store.ToMap(context.Background())
	assert.Empty(t, ext.dirs)
	assert.True(t, store.Populated())
}

func TestStoreFailingNativeProvider(t *testing.T) {
	ctx := context.Background()
	native := nativeFacts("kernel", "Linux")
	native.err = errors.New("boom")

	external := domain.NewFactSet()
	external.Set("custom", domain.String("yes"))
	store := NewStore(native, &fakeLoader{facts: external})
	store.SearchExternal("dir")

	_, ok := store.Value(ctx, "kernel")
	assert.False(t, ok, "failed provider contributes nothing")
	v, ok := store.Value(ctx, "custom")
	require.True(t, ok)
	assert.Equal(t, domain.String("yes"), v)
	assert.Equal(t, StatePopulated, store.State())
}

func TestStoreMalformedNativeEnumeration(t *testing.T) {
	native := protocolProvider(func(sink protocol.Sink) error {
		if err := sink.String("fine", "1"); err != nil {
			return err
		}
		return sink.ArrayStart("unclosed")
	})

	store := NewStore(native, nil)
	all := store.ToMap(context.Background())
	assert.Equal(t, 0, all.Len())
	assert.True(t, store.Populated())
}

type protocolProvider func(sink protocol.Sink) error

func (p protocolProvider) Enumerate(_ context.Context, sink protocol.Sink) error {
	return p(sink)
}

func TestStoreConcurrentFirstAccess(t *testing.T) {
	ctx := context.Background()
	native := nativeFacts("kernel", "Linux")
	native.delay = 20 * time.Millisecond
	store := NewStore(native, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok := store.Value(ctx, "kernel")
			assert.True(t, ok)
			assert.Equal(t, domain.String("Linux"), v)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), native.calls.Load())
	assert.Equal(t, 1, store.Generation())
}

func TestStoreRestrict(t *testing.T) {
	ctx := context.Background()
	store := NewStore(nativeFacts("kernel", "Linux", "os", "linux", "hostname", "web01"), nil)

	store.Restrict(" OS ", "hostname", "")
	assert.Equal(t, []string{"os", "hostname"}, store.ToMap(ctx).Names())

	store.Reset()
	assert.Equal(t, []string{"os", "hostname"}, store.ToMap(ctx).Names(), "restriction survives reset")

	store.Restrict()
	store.Reset()
	assert.Equal(t, 3, store.ToMap(ctx).Len())
}

func TestStoreQuery(t *testing.T) {
	release := domain.NewMap()
	release.Set("major", domain.String("22"))
	release.Set("full", domain.String("22.04"))
	osv := domain.NewMap()
	osv.Set("release", release)
	osv.Set("family", domain.Array{domain.String("Debian"), domain.String("Ubuntu")})

	facts := domain.NewFactSet()
	facts.Set("os", osv)
	facts.Set("dotted.name", domain.String("literal"))
	store := NewStore(&fakeNative{facts: facts}, nil)
	ctx := context.Background()

	v, ok := store.Query(ctx, "os.release.major")
	require.True(t, ok)
	assert.Equal(t, domain.String("22"), v)

	v, ok = store.Query(ctx, "os.family.1")
	require.True(t, ok)
	assert.Equal(t, domain.String("Ubuntu"), v)

	v, ok = store.Query(ctx, "dotted.name")
	require.True(t, ok)
	assert.Equal(t, domain.String("literal"), v)

	_, ok = store.Query(ctx, "os.family.7")
	assert.False(t, ok)
}

func TestStoreEvents(t *testing.T) {
	bus := NewEventBus()
	ch := make(chan Event, 10)
	bus.Subscribe(ch)

	store := NewStore(nativeFacts("a", "1"), nil, WithEventBus(bus))
	store.SearchExternal("dir")
	store.ToMap(context.Background())
	store.Reset()

	var types []EventType
	for len(ch) > 0 {
		types = append(types, (<-ch).Type)
	}
	assert.Equal(t, []EventType{EventSearchPathChanged, EventPopulated, EventReset}, types)

	bus.Unsubscribe(ch)
	store.Reset()
	store.ToMap(context.Background())
	assert.Empty(t, ch)
}

func TestStoreWithLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "facts.yaml"), []byte("os: override\nlist: [1, 2]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	store := NewStore(nativeFacts("os", "base"), loader.New())
	store.SearchExternal(dir)

	ctx := context.Background()
	v, ok := store.Value(ctx, "os")
	require.True(t, ok)
	assert.Equal(t, domain.String("override"), v)

	sources := store.Sources()
	require.Len(t, sources, 2)
	assert.Error(t, sources[0].Err)
	assert.NoError(t, sources[1].Err)
	assert.Equal(t, 2, sources[1].Facts)
}

// ctxNative fails like a real provider when its context is done
type ctxNative struct{}

func (ctxNative) Enumerate(ctx context.Context, sink protocol.Sink) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return sink.String("kernel", "Linux")
}

func TestStoreIgnoresCallerCancellation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site.txt"), []byte("site=dc1\n"), 0o644))

	store := NewStore(ctxNative{}, loader.New())
	store.SearchExternal(dir)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	v, ok := store.Value(cancelled, "site")
	require.True(t, ok)
	assert.Equal(t, domain.String("dc1"), v)

	v, ok = store.Value(context.Background(), "kernel")
	require.True(t, ok)
	assert.Equal(t, domain.String("Linux"), v)
	assert.Equal(t, 1, store.Generation())
	require.Len(t, store.Sources(), 1)
	assert.NoError(t, store.Sources()[0].Err)
}

func TestSnapshotUsesFactHostname(t *testing.T) {
	ctx := context.Background()

	networking := domain.NewMap()
	networking.Set("fqdn", domain.String("web01.example.com"))
	fs := domain.NewFactSet()
	fs.Set("hostname", domain.String("web01"))
	fs.Set("networking", networking)

	store := NewStore(&fakeNative{facts: fs}, nil)
	snap := store.Snapshot(ctx)
	assert.Equal(t, "web01.example.com", snap.Hostname)
	assert.Empty(t, snap.ID)
	assert.Equal(t, 2, snap.Facts.Len())

	plain := NewStore(nativeFacts("hostname", "db01"), nil)
	assert.Equal(t, "db01", plain.Snapshot(ctx).Hostname)

	host, _ := os.Hostname()
	assert.Equal(t, host, NewStore(nil, nil).Snapshot(ctx).Hostname)
}
