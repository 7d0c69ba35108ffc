package protocol

import (
	"fmt"

	"facter/internal/domain"
)

// Emit enumerates v into sink under name
func Emit(sink Sink, name string, v domain.Value) error {
	return emit(sink, name, v, 0)
}

// EmitFacts enumerates every fact of fs into sink in table order
func EmitFacts(sink Sink, fs *domain.FactSet) error {
	var err error
	fs.Range(func(name string, v domain.Value) bool {
		err = Emit(sink, name, v)
		return err == nil
	})
	return err
}

// FactSetProducer adapts a fact set to the Producer interface
func FactSetProducer(fs *domain.FactSet) Producer {
	return ProducerFunc(func(sink Sink) error {
		return EmitFacts(sink, fs)
	})
}

// emit enumerates v at depth, the number of containers already open. Each
// array or map opens one more, and at most domain.MaxDepth may be open, the
// same limit the Builder enforces.
func emit(sink Sink, name string, v domain.Value, depth int) error {
	switch v.(type) {
	case domain.Array, *domain.Map:
		if depth >= domain.MaxDepth {
			return fmt.Errorf("%w: value %q nested deeper than %d levels", ErrMalformedEnumeration, name, domain.MaxDepth)
		}
	}

	switch tv := v.(type) {
	case domain.String:
		return sink.String(name, string(tv))
	case domain.Integer:
		return sink.Integer(name, int64(tv))
	case domain.Boolean:
		wire := 0
		if tv {
			wire = 1
		}
		return sink.Boolean(name, wire)
	case domain.Double:
		return sink.Double(name, float64(tv))
	case domain.Array:
		if err := sink.ArrayStart(name); err != nil {
			return err
		}
		for _, e := range tv {
			if err := emit(sink, "", e, depth+1); err != nil {
				return err
			}
		}
		return sink.ArrayEnd()
	case *domain.Map:
		if err := sink.MapStart(name); err != nil {
			return err
		}
		var err error
		tv.Range(func(k string, e domain.Value) bool {
			err = emit(sink, k, e, depth+1)
			return err == nil
		})
		if err != nil {
			return err
		}
		return sink.MapEnd()
	default:
		return fmt.Errorf("%w: %T for %q", ErrUnsupportedValueType, v, name)
	}
}

// EmitNative converts a plain Go value with domain.FromNative and emits it
func EmitNative(sink Sink, name string, v any) error {
	dv, err := domain.FromNative(v)
	if err != nil {
		return fmt.Errorf("fact %q: %w", name, err)
	}
	return Emit(sink, name, dv)
}
