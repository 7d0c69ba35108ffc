package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// MarshalJSON renders non-finite doubles as strings, which JSON cannot
// otherwise represent.
func (d Double) MarshalJSON() ([]byte, error) {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(d.String())
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// MarshalJSON encodes the map as a JSON object in insertion order
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	m.Range(func(k string, v Value) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		err = writeMember(&buf, k, v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the fact set as a JSON object in insertion order
func (fs *FactSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	i := 0
	fs.Range(func(name string, v Value) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		err = writeMember(&buf, name, v)
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, v Value) error {
	kb, err := json.Marshal(key)
	if err != nil {
		return err
	}
	vb, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(kb)
	buf.WriteByte(':')
	buf.Write(vb)
	return nil
}
