package domain

import (
	"strconv"
	"strings"
)

// Fact is a named top-level binding of a value
type Fact struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// NormalizeName canonicalizes a fact name: surrounding whitespace is
// dropped and the name is lower-cased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FactSet is an ordered table of facts keyed by normalized name
type FactSet struct {
	names []string
	facts map[string]Value
}

// NewFactSet creates an empty fact set
func NewFactSet() *FactSet {
	return &FactSet{facts: make(map[string]Value)}
}

// Set binds name to v, replacing any previous value. A replaced fact keeps
// its original position. Empty names are ignored.
func (fs *FactSet) Set(name string, v Value) {
	name = NormalizeName(name)
	if name == "" || v == nil {
		return
	}
	if fs.facts == nil {
		fs.facts = make(map[string]Value)
	}
	if _, ok := fs.facts[name]; !ok {
		fs.names = append(fs.names, name)
	}
	fs.facts[name] = v
}

// Get returns the value bound to name
func (fs *FactSet) Get(name string) (Value, bool) {
	if fs == nil {
		return nil, false
	}
	v, ok := fs.facts[NormalizeName(name)]
	return v, ok
}

// Fact returns the fact record for name, or nil when it is absent
func (fs *FactSet) Fact(name string) *Fact {
	name = NormalizeName(name)
	v, ok := fs.Get(name)
	if !ok {
		return nil
	}
	return &Fact{Name: name, Value: v}
}

// Len returns the number of facts
func (fs *FactSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.names)
}

// Names returns the fact names in insertion order
func (fs *FactSet) Names() []string {
	if fs == nil {
		return nil
	}
	out := make([]string, len(fs.names))
	copy(out, fs.names)
	return out
}

// Facts returns the facts in insertion order
func (fs *FactSet) Facts() []Fact {
	out := make([]Fact, 0, fs.Len())
	fs.Range(func(name string, v Value) bool {
		out = append(out, Fact{Name: name, Value: v})
		return true
	})
	return out
}

// Range calls fn for every fact in insertion order until fn returns false
func (fs *FactSet) Range(fn func(name string, v Value) bool) {
	if fs == nil {
		return
	}
	for _, n := range fs.names {
		if !fn(n, fs.facts[n]) {
			return
		}
	}
}

// Merge applies every fact of other on top of fs. Facts from other win.
func (fs *FactSet) Merge(other *FactSet) {
	other.Range(func(name string, v Value) bool {
		fs.Set(name, v)
		return true
	})
}

// Retain drops every fact whose name is not in names
func (fs *FactSet) Retain(names map[string]bool) {
	if fs == nil {
		return
	}
	kept := fs.names[:0]
	for _, n := range fs.names {
		if names[n] {
			kept = append(kept, n)
			continue
		}
		delete(fs.facts, n)
	}
	fs.names = kept
}

// Clone returns a deep copy of the fact set
func (fs *FactSet) Clone() *FactSet {
	out := NewFactSet()
	fs.Range(func(name string, v Value) bool {
		out.Set(name, Clone(v))
		return true
	})
	return out
}

// Lookup resolves a dotted path inside v. Map segments select keys and
// numeric segments index arrays.
func Lookup(v Value, segments []string) (Value, bool) {
	cur := v
	for _, seg := range segments {
		switch tv := cur.(type) {
		case *Map:
			next, ok := tv.Get(seg)
			if !ok {
				return nil, false
			}
			cur = next
		case Array:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(tv) {
				return nil, false
			}
			cur = tv[i]
		default:
			return nil, false
		}
	}
	return cur, cur != nil
}

// Query resolves a fact query. The whole query is tried as a fact name
// first; otherwise the first dot-separated segment names the fact and the
// rest is a path into its value.
func (fs *FactSet) Query(query string) (Value, bool) {
	if v, ok := fs.Get(query); ok {
		return v, true
	}
	segments := strings.Split(strings.TrimSpace(query), ".")
	if len(segments) < 2 {
		return nil, false
	}
	root, ok := fs.Get(segments[0])
	if !ok {
		return nil, false
	}
	return Lookup(root, segments[1:])
}
