package protocol

import (
	"fmt"
	"strconv"

	"facter/internal/domain"
)

// Op names a protocol callback
type Op string

const (
	OpString     Op = "string"
	OpInteger    Op = "integer"
	OpBoolean    Op = "boolean"
	OpDouble     Op = "double"
	OpArrayStart Op = "array_start"
	OpArrayEnd   Op = "array_end"
	OpMapStart   Op = "map_start"
	OpMapEnd     Op = "map_end"
)

// Message is the serializable form of one callback. Scalar values are
// carried as text: integers in base 10, booleans as 0 or 1 and doubles in
// the shortest form that parses back to the same bits.
type Message struct {
	Op    Op     `json:"op"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Tape is a Sink that records every call as a Message
type Tape struct {
	Messages []Message
}

func (t *Tape) record(op Op, name, value string) error {
	t.Messages = append(t.Messages, Message{Op: op, Name: name, Value: value})
	return nil
}

func (t *Tape) String(name, value string) error {
	return t.record(OpString, name, value)
}

func (t *Tape) Integer(name string, value int64) error {
	return t.record(OpInteger, name, strconv.FormatInt(value, 10))
}

func (t *Tape) Boolean(name string, value int) error {
	wire := "0"
	if value != 0 {
		wire = "1"
	}
	return t.record(OpBoolean, name, wire)
}

func (t *Tape) Double(name string, value float64) error {
	return t.record(OpDouble, name, strconv.FormatFloat(value, 'g', -1, 64))
}

func (t *Tape) ArrayStart(name string) error { return t.record(OpArrayStart, name, "") }
func (t *Tape) ArrayEnd() error              { return t.record(OpArrayEnd, "", "") }
func (t *Tape) MapStart(name string) error   { return t.record(OpMapStart, name, "") }
func (t *Tape) MapEnd() error                { return t.record(OpMapEnd, "", "") }

// Record enumerates v under name and returns the recorded messages
func Record(name string, v domain.Value) ([]Message, error) {
	var t Tape
	if err := Emit(&t, name, v); err != nil {
		return nil, err
	}
	return t.Messages, nil
}

// Replay feeds recorded messages to sink in order
func Replay(msgs []Message, sink Sink) error {
	for i, m := range msgs {
		if err := replayOne(m, sink); err != nil {
			return fmt.Errorf("message %d (%s): %w", i, m.Op, err)
		}
	}
	return nil
}

func replayOne(m Message, sink Sink) error {
	switch m.Op {
	case OpString:
		return sink.String(m.Name, m.Value)
	case OpInteger:
		i, err := strconv.ParseInt(m.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad integer %q", ErrMalformedEnumeration, m.Value)
		}
		return sink.Integer(m.Name, i)
	case OpBoolean:
		switch m.Value {
		case "0":
			return sink.Boolean(m.Name, 0)
		case "1":
			return sink.Boolean(m.Name, 1)
		default:
			return fmt.Errorf("%w: bad boolean %q", ErrMalformedEnumeration, m.Value)
		}
	case OpDouble:
		f, err := strconv.ParseFloat(m.Value, 64)
		if err != nil {
			return fmt.Errorf("%w: bad double %q", ErrMalformedEnumeration, m.Value)
		}
		return sink.Double(m.Name, f)
	case OpArrayStart:
		return sink.ArrayStart(m.Name)
	case OpArrayEnd:
		return sink.ArrayEnd()
	case OpMapStart:
		return sink.MapStart(m.Name)
	case OpMapEnd:
		return sink.MapEnd()
	default:
		return fmt.Errorf("%w: unknown op %q", ErrUnsupportedValueType, m.Op)
	}
}
