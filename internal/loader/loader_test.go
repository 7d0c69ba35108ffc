package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"facter/internal/codec"
	"facter/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), mode))
}

func value(t *testing.T, fs *domain.FactSet, name string) domain.Value {
	t.Helper()
	v, ok := fs.Get(name)
	require.True(t, ok, "fact %q missing", name)
	return v
}

func TestLoadMultiFormatDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable fact sources need a POSIX shell")
	}
	dir := t.TempDir()

	write(t, dir, "yaml.yaml", "yaml_fact1: foo\nyaml_fact2: 5\n", 0o644)
	write(t, dir, "json.json", `{"json_fact1": "bar", "json_fact2": [1, 2]}`, 0o644)
	write(t, dir, "toml.toml", "toml_fact1 = true\n", 0o644)
	write(t, dir, "text.txt", "txt_fact1=one\ntxt_fact2 = two\nnot a fact\n", 0o644)
	write(t, dir, "exe.sh", "#!/bin/sh\necho exe_fact1=value1\n", 0o755)
	write(t, dir, "failing.sh", "#!/bin/sh\necho exe_fact3=value3\nexit 1\n", 0o755)
	write(t, dir, "broken.json", `{"txt_fact3":`, 0o644)
	write(t, dir, "README.md", "ignored\n", 0o644)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	result := New().Load(context.Background(), []string{dir})

	facts := result.Facts
	assert.Equal(t, domain.String("foo"), value(t, facts, "yaml_fact1"))
	assert.Equal(t, domain.Integer(5), value(t, facts, "yaml_fact2"))
	assert.Equal(t, domain.String("bar"), value(t, facts, "json_fact1"))
	assert.True(t, domain.Equal(domain.Array{domain.Integer(1), domain.Integer(2)}, value(t, facts, "json_fact2")))
	assert.Equal(t, domain.Boolean(true), value(t, facts, "toml_fact1"))
	assert.Equal(t, domain.String("one"), value(t, facts, "txt_fact1"))
	assert.Equal(t, domain.String("two"), value(t, facts, "txt_fact2"))
	assert.Equal(t, domain.String("value1"), value(t, facts, "exe_fact1"))

	_, ok := facts.Get("exe_fact3")
	assert.False(t, ok, "failed executable contributes nothing")
	_, ok = facts.Get("txt_fact3")
	assert.False(t, ok, "broken file contributes nothing")

	assert.Len(t, result.Sources, 7)
	failed := result.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, filepath.Join(dir, "broken.json"), failed[0].Path)
	assert.ErrorIs(t, failed[0].Err, codec.ErrParse)
	assert.Equal(t, filepath.Join(dir, "failing.sh"), failed[1].Path)
	assert.ErrorIs(t, failed[1].Err, codec.ErrExecution)
}

func TestLoadPrecedence(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	write(t, first, "a.yaml", "shared: first-a\nonly_first: 1\n", 0o644)
	write(t, first, "b.txt", "shared=first-b\n", 0o644)
	write(t, second, "a.json", `{"shared": "second"}`, 0o644)

	tests := []struct {
		name string
		dirs []string
		want string
	}{
		{"later file in directory wins", []string{first}, "first-b"},
		{"later directory wins", []string{first, second}, "second"},
		{"order reversed", []string{second, first}, "first-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New().Load(context.Background(), tt.dirs)
			assert.Equal(t, domain.String(tt.want), value(t, result.Facts, "shared"))
			assert.Equal(t, domain.Integer(1), value(t, result.Facts, "only_first"))
		})
	}
}

func TestLoadOrderIndependentOfConcurrency(t *testing.T) {
	var dirs []string
	for i := 0; i < 12; i++ {
		dir := t.TempDir()
		write(t, dir, "facts.txt", fmt.Sprintf("winner=%d\nfact_%d=x\n", i, i), 0o644)
		dirs = append(dirs, dir)
	}

	for _, n := range []int{1, 3, 16} {
		result := New(WithConcurrency(n)).Load(context.Background(), dirs)
		assert.Equal(t, domain.String("11"), value(t, result.Facts, "winner"), "concurrency %d", n)

		var paths []string
		for _, s := range result.Sources {
			paths = append(paths, filepath.Dir(s.Path))
		}
		assert.Equal(t, dirs, paths, "sources reported in directory order")
	}
}

func TestLoadIsAllOrNothingPerFile(t *testing.T) {
	dir := t.TempDir()
	// First fact is well formed, the complex key after it is not
	write(t, dir, "partial.yaml", "good: 1\n? [a, b]\n: c\n", 0o644)

	result := New().Load(context.Background(), []string{dir})
	assert.Equal(t, 0, result.Facts.Len())
	require.Len(t, result.Sources, 1)
	assert.Error(t, result.Sources[0].Err)
}

func TestLoadSkipsMissingDirectories(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "facts.txt", "present=yes\n", 0o644)

	result := New().Load(context.Background(), []string{filepath.Join(dir, "missing"), dir, ""})
	assert.Equal(t, []string{"present"}, result.Facts.Names())
	assert.Empty(t, result.Failed())

	empty := New().Load(context.Background(), nil)
	assert.Equal(t, 0, empty.Facts.Len())
	assert.Empty(t, empty.Sources)
}

func TestLoadNormalizesNames(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "facts.txt", "MixedCase=1\n", 0o644)

	result := New().Load(context.Background(), []string{dir})
	assert.Equal(t, []string{"mixedcase"}, result.Facts.Names())
}

func TestLoadWithParsers(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "facts.txt", "a=1\n", 0o644)
	write(t, dir, "facts.json", `{"b": 2}`, 0o644)

	result := New(WithParsers(codec.NewJSONParser())).Load(context.Background(), []string{dir})
	assert.Equal(t, []string{"b"}, result.Facts.Names())
}

func TestLoadExecTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable fact sources need a POSIX shell")
	}
	dir := t.TempDir()
	write(t, dir, "slow.sh", "#!/bin/sh\nsleep 10\necho late=1\n", 0o755)
	write(t, dir, "z.txt", "after=1\n", 0o644)

	start := time.Now()
	result := New(WithExecTimeout(200*time.Millisecond)).Load(context.Background(), []string{dir})
	assert.Less(t, time.Since(start), 8*time.Second)

	_, ok := result.Facts.Get("late")
	assert.False(t, ok)
	assert.Equal(t, domain.String("1"), value(t, result.Facts, "after"))
}

func TestLoadCanceledContext(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "facts.txt", "a=1\n", 0o644)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := New().Load(ctx, []string{dir})
	assert.Equal(t, 0, result.Facts.Len())
}
