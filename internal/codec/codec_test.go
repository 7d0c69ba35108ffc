package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"facter/internal/domain"
	"facter/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parse runs a reader parser over src and returns the decoded facts
func parse(t *testing.T, p readerParser, src string) (*domain.FactSet, error) {
	t.Helper()
	b := protocol.NewBuilder()
	if err := p.Parse(strings.NewReader(src), b); err != nil {
		return nil, err
	}
	return b.Finish()
}

func writeFile(t *testing.T, dir, name, content string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
	return path
}

func get(t *testing.T, fs *domain.FactSet, name string) domain.Value {
	t.Helper()
	v, ok := fs.Get(name)
	require.True(t, ok, "fact %q missing", name)
	return v
}

const yamlFacts = `
yaml_fact1: foo
yaml_fact2: 5
yaml_fact3: true
yaml_fact4: 5.1
yaml_fact5:
  - 1
  - 2
  - 3
yaml_fact6:
  element1: 1
  element2: 2
yaml_fact7: "true"
yaml_fact8: ~
`

func TestYAMLParser(t *testing.T) {
	facts, err := parse(t, NewYAMLParser(), yamlFacts)
	require.NoError(t, err)

	assert.Equal(t, domain.String("foo"), get(t, facts, "yaml_fact1"))
	assert.Equal(t, domain.Integer(5), get(t, facts, "yaml_fact2"))
	assert.Equal(t, domain.Boolean(true), get(t, facts, "yaml_fact3"))
	assert.Equal(t, domain.Double(5.1), get(t, facts, "yaml_fact4"))
	assert.True(t, domain.Equal(domain.Array{domain.Integer(1), domain.Integer(2), domain.Integer(3)}, get(t, facts, "yaml_fact5")))

	m := get(t, facts, "yaml_fact6").(*domain.Map)
	assert.Equal(t, []string{"element1", "element2"}, m.Keys())

	assert.Equal(t, domain.String("true"), get(t, facts, "yaml_fact7"))
	_, ok := facts.Get("yaml_fact8")
	assert.False(t, ok, "null facts are absent")
}

func TestYAMLParserScalars(t *testing.T) {
	facts, err := parse(t, NewYAMLParser(), `
hex: 0x1f
big: 123456789012345678901234567890
inf: .inf
negative: -3
stamp: 2001-12-14t21:59:43.10-05:00
quoted_int: "12"
`)
	require.NoError(t, err)

	assert.Equal(t, domain.Integer(31), get(t, facts, "hex"))
	assert.Equal(t, domain.Double(123456789012345678901234567890), get(t, facts, "big"))
	assert.Equal(t, domain.Double(math.Inf(1)), get(t, facts, "inf"))
	assert.Equal(t, domain.Integer(-3), get(t, facts, "negative"))
	assert.Equal(t, domain.String("2001-12-14t21:59:43.10-05:00"), get(t, facts, "stamp"))
	assert.Equal(t, domain.String("12"), get(t, facts, "quoted_int"))
}

func TestYAMLParserAliasesAndMerge(t *testing.T) {
	facts, err := parse(t, NewYAMLParser(), `
defaults: &defaults
  region: eu
  tier: 1
site:
  <<: *defaults
  tier: 2
copy: *defaults
`)
	require.NoError(t, err)

	site := get(t, facts, "site").(*domain.Map)
	region, _ := site.Get("region")
	tier, _ := site.Get("tier")
	assert.Equal(t, domain.String("eu"), region)
	assert.Equal(t, domain.Integer(2), tier)

	assert.True(t, domain.Equal(get(t, facts, "defaults"), get(t, facts, "copy")))
}

func TestYAMLParserRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax error", "key: [unclosed"},
		{"top-level sequence", "- a\n- b\n"},
		{"top-level scalar", "just a string"},
		{"complex key", "? [a, b]\n: c\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, NewYAMLParser(), tt.src)
			assert.Error(t, err)
		})
	}
}

func TestYAMLParserEmptyDocument(t *testing.T) {
	for _, src := range []string{"", "# only a comment\n", "~\n"} {
		facts, err := parse(t, NewYAMLParser(), src)
		require.NoError(t, err, "source %q", src)
		assert.Equal(t, 0, facts.Len())
	}
}

func TestYAMLParserDepthLimit(t *testing.T) {
	src := "deep: " + strings.Repeat("[", domain.MaxDepth+1) + strings.Repeat("]", domain.MaxDepth+1)
	_, err := parse(t, NewYAMLParser(), src)
	assert.Error(t, err)
}

func TestYAMLParserAliasExpansionLimit(t *testing.T) {
	var src strings.Builder
	src.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 7; i++ {
		fmt.Fprintf(&src, "l%d: &l%d [", i, i)
		for j := 0; j < 10; j++ {
			if j > 0 {
				src.WriteString(", ")
			}
			fmt.Fprintf(&src, "*l%d", i-1)
		}
		src.WriteString("]\n")
	}

	start := time.Now()
	_, err := parse(t, NewYAMLParser(), src.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than")
	assert.Less(t, time.Since(start), 10*time.Second)

	// A few levels stay well under the bound
	facts, err := parse(t, NewYAMLParser(), "a: &a [1, 2]\nb: &b [*a, *a]\nc: [*b, *b]\n")
	require.NoError(t, err)
	v, ok := facts.Query("c.1.0.1")
	require.True(t, ok)
	assert.Equal(t, domain.Integer(2), v)
}

func TestNullItemsKeepArrayIndexes(t *testing.T) {
	facts, err := parse(t, NewYAMLParser(), "ports: [80, ~, 443]\nopts: {a: ~, b: 1}\n")
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Array{domain.Integer(80), domain.String(""), domain.Integer(443)}, get(t, facts, "ports")))
	assert.Equal(t, []string{"b"}, get(t, facts, "opts").(*domain.Map).Keys())
	v, ok := facts.Query("ports.2")
	require.True(t, ok)
	assert.Equal(t, domain.Integer(443), v)

	facts, err = parse(t, NewJSONParser(), `{"ports": [80, null, 443], "opts": {"a": null}}`)
	require.NoError(t, err)
	assert.True(t, domain.Equal(domain.Array{domain.Integer(80), domain.String(""), domain.Integer(443)}, get(t, facts, "ports")))
	assert.Equal(t, 0, get(t, facts, "opts").(*domain.Map).Len())
}

const jsonFacts = `{
  "json_fact1": "foo",
  "json_fact2": 5,
  "json_fact3": true,
  "json_fact4": 5.1,
  "json_fact5": [1, 2, 3],
  "json_fact6": {"element1": 1, "element2": 2},
  "json_fact7": null,
  "json_fact8": 1e3,
  "json_fact9": 99999999999999999999
}`

func TestJSONParser(t *testing.T) {
	facts, err := parse(t, NewJSONParser(), jsonFacts)
	require.NoError(t, err)

	assert.Equal(t, domain.String("foo"), get(t, facts, "json_fact1"))
	assert.Equal(t, domain.Integer(5), get(t, facts, "json_fact2"))
	assert.Equal(t, domain.Boolean(true), get(t, facts, "json_fact3"))
	assert.Equal(t, domain.Double(5.1), get(t, facts, "json_fact4"))
	assert.True(t, domain.Equal(domain.Array{domain.Integer(1), domain.Integer(2), domain.Integer(3)}, get(t, facts, "json_fact5")))

	m := get(t, facts, "json_fact6").(*domain.Map)
	assert.Equal(t, []string{"element1", "element2"}, m.Keys())

	_, ok := facts.Get("json_fact7")
	assert.False(t, ok)
	assert.Equal(t, domain.Double(1000), get(t, facts, "json_fact8"))
	assert.Equal(t, domain.Double(1e20), get(t, facts, "json_fact9"))

	assert.Equal(t, []string{"json_fact1", "json_fact2", "json_fact3", "json_fact4", "json_fact5", "json_fact6", "json_fact8", "json_fact9"}, facts.Names())
}

func TestJSONParserRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"syntax error", `{"a": }`},
		{"array root", `[1, 2]`},
		{"string root", `"x"`},
		{"trailing garbage", `{"a": 1} x`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, NewJSONParser(), tt.src)
			assert.Error(t, err)
		})
	}
}

func TestTOMLParser(t *testing.T) {
	facts, err := parse(t, NewTOMLParser(), `
toml_fact1 = "foo"
toml_fact2 = 5
toml_fact3 = false
toml_fact4 = 5.1
toml_fact5 = [1, 2, 3]
born = 1979-05-27

[toml_fact6]
element2 = 2
element1 = 1
`)
	require.NoError(t, err)

	assert.Equal(t, domain.String("foo"), get(t, facts, "toml_fact1"))
	assert.Equal(t, domain.Integer(5), get(t, facts, "toml_fact2"))
	assert.Equal(t, domain.Boolean(false), get(t, facts, "toml_fact3"))
	assert.Equal(t, domain.Double(5.1), get(t, facts, "toml_fact4"))
	assert.True(t, domain.Equal(domain.Array{domain.Integer(1), domain.Integer(2), domain.Integer(3)}, get(t, facts, "toml_fact5")))
	assert.Equal(t, domain.String("1979-05-27"), get(t, facts, "born"))

	m := get(t, facts, "toml_fact6").(*domain.Map)
	assert.Equal(t, []string{"element1", "element2"}, m.Keys())

	_, err = parse(t, NewTOMLParser(), "key = ")
	assert.Error(t, err)
}

func TestTextParser(t *testing.T) {
	facts, err := parse(t, NewTextParser(), strings.Join([]string{
		"txt_fact1=one",
		"  txt_fact2 =  two  ",
		"no equals sign here",
		"",
		"=missing key",
		"url=http://example.com/?a=b",
		"empty=",
		"bad=\xff\xfe",
	}, "\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"txt_fact1", "txt_fact2", "url", "empty"}, facts.Names())
	assert.Equal(t, domain.String("one"), get(t, facts, "txt_fact1"))
	assert.Equal(t, domain.String("two"), get(t, facts, "txt_fact2"))
	assert.Equal(t, domain.String("http://example.com/?a=b"), get(t, facts, "url"))
	assert.Equal(t, domain.String(""), get(t, facts, "empty"))
}

func TestTextParserSkipsOversizeLines(t *testing.T) {
	src := "before=1\r\nhuge=" + strings.Repeat("x", 2*maxLineSize) + "\nafter=2"
	facts, err := parse(t, NewTextParser(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, facts.Names())
	assert.Equal(t, domain.String("1"), get(t, facts, "before"))
	assert.Equal(t, domain.String("2"), get(t, facts, "after"))
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line       string
		key, value string
		ok         bool
	}{
		{"a=b", "a", "b", true},
		{" a = b ", "a", "b", true},
		{"a==b", "a", "=b", true},
		{"a", "", "", false},
		{" = b", "", "", false},
	}

	for _, tt := range tests {
		key, value, ok := SplitLine(tt.line)
		if key != tt.key || value != tt.value || ok != tt.ok {
			t.Errorf("SplitLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.line, key, value, ok, tt.key, tt.value, tt.ok)
		}
	}
}

func TestParseFileWrapsErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.json", `{"a": `, 0o644)

	err := NewJSONParser().ParseFile(context.Background(), path, protocol.NewBuilder())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, path, pe.Path)
	assert.Equal(t, "json", pe.Format)

	err = NewYAMLParser().ParseFile(context.Background(), filepath.Join(dir, "missing.yaml"), protocol.NewBuilder())
	assert.ErrorIs(t, err, ErrParse)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("executable fact tests need a POSIX shell")
	}
}

func TestExecParser(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()

	t.Run("stdout lines become facts", func(t *testing.T) {
		path := writeFile(t, dir, "ok.sh", "#!/bin/sh\necho exe_fact1=value1\necho 'exe_fact2 = value2'\necho garbage\necho oops >&2\n", 0o755)

		b := protocol.NewBuilder()
		require.NoError(t, NewExecParser().ParseFile(context.Background(), path, b))
		facts, err := b.Finish()
		require.NoError(t, err)

		assert.Equal(t, []string{"exe_fact1", "exe_fact2"}, facts.Names())
		assert.Equal(t, domain.String("value2"), get(t, facts, "exe_fact2"))
	})

	t.Run("non-zero exit contributes nothing", func(t *testing.T) {
		path := writeFile(t, dir, "fail.sh", "#!/bin/sh\necho exe_fact3=value3\nexit 3\n", 0o755)

		b := protocol.NewBuilder()
		err := NewExecParser().ParseFile(context.Background(), path, b)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExecution)

		var ef *ExecutionFailure
		require.True(t, errors.As(err, &ef))
		assert.Equal(t, 3, ef.ExitCode)
		assert.False(t, ef.TimedOut)

		facts, err := b.Finish()
		require.NoError(t, err)
		assert.Equal(t, 0, facts.Len())
	})

	t.Run("timeout", func(t *testing.T) {
		path := writeFile(t, dir, "slow.sh", "#!/bin/sh\necho early=1\nsleep 10\n", 0o755)

		start := time.Now()
		err := NewExecParser(WithExecTimeout(200*time.Millisecond)).ParseFile(context.Background(), path, protocol.NewBuilder())
		require.Error(t, err)
		assert.Less(t, time.Since(start), 8*time.Second)

		var ef *ExecutionFailure
		require.True(t, errors.As(err, &ef))
		assert.True(t, ef.TimedOut)
	})

	t.Run("cannot start", func(t *testing.T) {
		path := writeFile(t, dir, "noexec.sh", "#!/nonexistent/interpreter\n", 0o755)
		err := NewExecParser().ParseFile(context.Background(), path, protocol.NewBuilder())
		assert.ErrorIs(t, err, ErrExecution)
	})
}

func TestParserFor(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	parsers := DefaultParsers()

	tests := []struct {
		name string
		mode os.FileMode
		want string
	}{
		{"facts.yaml", 0o644, "yaml"},
		{"facts.YML", 0o644, "yaml"},
		{"facts.json", 0o644, "json"},
		{"facts.toml", 0o644, "toml"},
		{"facts.txt", 0o644, "text"},
		{"facts.yaml.exec", 0o755, "executable"},
		{"script.json", 0o755, "json"},
		{"script", 0o700, "executable"},
		{"README.md", 0o644, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name, "", tt.mode)
			info, err := os.Stat(path)
			require.NoError(t, err)

			p := ParserFor(parsers, path, info)
			if tt.want == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.Format())
		})
	}

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Nil(t, ParserFor(parsers, dir, info), "directories are never parsed")
}

func exportFacts() *domain.FactSet {
	osv := domain.NewMap()
	osv.Set("name", domain.String("Linux"))
	osv.Set("release", domain.Array{domain.Integer(6), domain.Double(1)})

	fs := domain.NewFactSet()
	fs.Set("hostname", domain.String("web01"))
	fs.Set("is_virtual", domain.Boolean(false))
	fs.Set("os", osv)
	fs.Set("empty", domain.Array{})
	return fs
}

func TestTextExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewTextExporter().Export(exportFacts(), &buf))

	want := `hostname => web01
is_virtual => false
os => {
  name => "Linux",
  release => [
    6,
    1
  ]
}
empty => []
`
	assert.Equal(t, want, buf.String())
}

func TestJSONExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONExporter().Export(exportFacts(), &buf))

	facts, err := parse(t, NewJSONParser(), buf.String())
	require.NoError(t, err)
	assert.Equal(t, []string{"hostname", "is_virtual", "os", "empty"}, facts.Names())
	assert.Equal(t, domain.Boolean(false), get(t, facts, "is_virtual"))
}

func TestYAMLExporterRoundTrip(t *testing.T) {
	orig := exportFacts()
	orig.Set("quoted", domain.String("true"))
	orig.Set("ratio", domain.Double(2))
	orig.Set("nan", domain.Double(math.NaN()))

	var buf bytes.Buffer
	require.NoError(t, NewYAMLExporter().Export(orig, &buf))

	facts, err := parse(t, NewYAMLParser(), buf.String())
	require.NoError(t, err)
	assert.Equal(t, orig.Names(), facts.Names())
	orig.Range(func(name string, v domain.Value) bool {
		assert.True(t, domain.Equal(v, get(t, facts, name)), "fact %s: want %v, got %v", name, v, get(t, facts, name))
		return true
	})
}

func TestExporterFor(t *testing.T) {
	assert.Equal(t, "json", ExporterFor("JSON").Format())
	assert.Equal(t, "yaml", ExporterFor("yml").Format())
	assert.Equal(t, "text", ExporterFor("").Format())
	assert.Nil(t, ExporterFor("xml"))
}
