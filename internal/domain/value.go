package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// MaxDepth bounds the nesting of arrays and maps in a single value.
const MaxDepth = 64

// ErrUnsupportedValueType is returned when a producer hands over a value
// outside the closed set of fact value kinds.
var ErrUnsupportedValueType = errors.New("unsupported value type")

// Kind identifies the concrete type of a Value
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindBoolean
	KindDouble
	KindArray
	KindMap
)

var kindNames = [...]string{
	KindString:  "string",
	KindInteger: "integer",
	KindBoolean: "boolean",
	KindDouble:  "double",
	KindArray:   "array",
	KindMap:     "map",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Value is the content of a fact. The set of implementations is closed:
// String, Integer, Boolean, Double, Array and Map.
type Value interface {
	Kind() Kind
	fmt.Stringer
	value()
}

// String is a string fact value
type String string

// Integer is a signed integer fact value
type Integer int64

// Boolean is a boolean fact value
type Boolean bool

// Double is a double precision fact value
type Double float64

// Array is an ordered sequence of values
type Array []Value

func (String) Kind() Kind  { return KindString }
func (Integer) Kind() Kind { return KindInteger }
func (Boolean) Kind() Kind { return KindBoolean }
func (Double) Kind() Kind  { return KindDouble }
func (Array) Kind() Kind   { return KindArray }
func (*Map) Kind() Kind    { return KindMap }

func (String) value()  {}
func (Integer) value() {}
func (Boolean) value() {}
func (Double) value()  {}
func (Array) value()   {}
func (*Map) value()    {}

func (s String) String() string  { return string(s) }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }
func (d Double) String() string  { return strconv.FormatFloat(float64(d), 'g', -1, 64) }

func (a Array) String() string {
	s := "["
	for i, v := range a {
		if i > 0 {
			s += ", "
		}
		s += quoted(v)
	}
	return s + "]"
}

// Map is a string-keyed collection of values that remembers insertion order.
// The zero value is an empty map ready to use.
type Map struct {
	keys    []string
	entries map[string]Value
}

// NewMap creates an empty map
func NewMap() *Map {
	return &Map{entries: make(map[string]Value)}
}

// Set stores v under key. An existing key keeps its position.
func (m *Map) Set(key string, v Value) {
	if m.entries == nil {
		m.entries = make(map[string]Value)
	}
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = v
}

// Get returns the value stored under key
func (m *Map) Get(key string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.entries[key]
	return v, ok
}

// Delete removes key from the map
func (m *Map) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.entries[key]; !ok {
		return
	}
	delete(m.entries, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false
func (m *Map) Range(fn func(key string, v Value) bool) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		if !fn(k, m.entries[k]) {
			return
		}
	}
}

func (m *Map) String() string {
	s := "{"
	i := 0
	m.Range(func(k string, v Value) bool {
		if i > 0 {
			s += ", "
		}
		s += strconv.Quote(k) + " => " + quoted(v)
		i++
		return true
	})
	return s + "}"
}

func quoted(v Value) string {
	if s, ok := v.(String); ok {
		return strconv.Quote(string(s))
	}
	return v.String()
}

// Equal reports whether a and b are the same value tree. Kinds must match
// exactly: Integer(1) is not equal to Boolean(true) or Double(1).
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Integer:
		bv, ok := b.(Integer)
		return ok && av == bv
	case Boolean:
		bv, ok := b.(Boolean)
		return ok && av == bv
	case Double:
		bv, ok := b.(Double)
		if !ok {
			return false
		}
		if math.IsNaN(float64(av)) {
			return math.IsNaN(float64(bv))
		}
		return av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv, ok := b.(*Map)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		equal := true
		av.Range(func(k string, v Value) bool {
			other, found := bv.Get(k)
			equal = found && Equal(v, other)
			return equal
		})
		return equal
	default:
		panic(fmt.Sprintf("domain: unhandled value type %T", a))
	}
}

// Clone returns a deep copy of v
func Clone(v Value) Value {
	switch tv := v.(type) {
	case nil:
		return nil
	case String, Integer, Boolean, Double:
		return tv
	case Array:
		out := make(Array, len(tv))
		for i, e := range tv {
			out[i] = Clone(e)
		}
		return out
	case *Map:
		out := NewMap()
		tv.Range(func(k string, e Value) bool {
			out.Set(k, Clone(e))
			return true
		})
		return out
	default:
		panic(fmt.Sprintf("domain: unhandled value type %T", v))
	}
}
