// Package protocol implements the enumeration protocol by which fact
// producers announce their values.
//
// A producer never hands over a value tree. It calls a Sink in a strict
// nesting discipline instead:
//
//	String/Integer/Boolean/Double(name, value)
//	ArrayStart(name) ... elements ... ArrayEnd()
//	MapStart(name)   ... entries  ... MapEnd()
//
// Top-level calls carry the fact name, entries inside a map carry their
// key, and elements of an array carry an empty name. Booleans travel as
// 0/1 integers and are rebuilt as booleans by the receiver, which relies on
// the declared kind rather than the wire value.
//
// Builder is the receiving side: it keeps an explicit stack of open array
// and map frames and reconstructs exactly one value per top-level call.
// Emit is the sending side for values that already exist in memory. Tape
// and Replay turn a call sequence into serializable Messages and back.
package protocol

import (
	"errors"

	"facter/internal/domain"
)

var (
	// ErrMalformedEnumeration reports a violation of the nesting discipline
	ErrMalformedEnumeration = errors.New("malformed enumeration")

	// ErrUnsupportedValueType reports a value kind outside the closed set
	ErrUnsupportedValueType = domain.ErrUnsupportedValueType
)

// Sink receives an enumeration. Producers stop at the first error returned.
type Sink interface {
	String(name, value string) error
	Integer(name string, value int64) error
	Boolean(name string, value int) error
	Double(name string, value float64) error
	ArrayStart(name string) error
	ArrayEnd() error
	MapStart(name string) error
	MapEnd() error
}

// Producer enumerates a set of facts into a sink
type Producer interface {
	Enumerate(sink Sink) error
}

// ProducerFunc adapts a function to the Producer interface
type ProducerFunc func(sink Sink) error

// Enumerate calls f(sink)
func (f ProducerFunc) Enumerate(sink Sink) error {
	return f(sink)
}

// Collect runs a producer against a fresh Builder and returns the decoded
// facts. The contribution is all-or-nothing: any producer or protocol error
// yields a nil fact set.
func Collect(p Producer) (*domain.FactSet, error) {
	b := NewBuilder()
	if err := p.Enumerate(b); err != nil {
		return nil, err
	}
	return b.Finish()
}
