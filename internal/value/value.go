// Package value implements the dynamic, JSON-like tagged-union value type
// shared across the runtime: messages, tool arguments, tool-call results,
// and document metadata are all represented as Value so that they can cross
// model-backend, cache, and tool boundaries without a fixed schema.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the variant currently held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindUnsigned
	KindSigned
	KindFloat
	KindString
	KindMap
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindUnsigned:
		return "unsigned"
	case KindSigned:
		return "signed"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindSeq:
		return "seq"
	default:
		return "unknown"
	}
}

// Map is an insertion-order-preserving string-keyed map of Value.
type Map struct {
	keys   []string
	values map[string]Value
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Set inserts or replaces the value at key, preserving original insertion
// position on replacement.
func (m *Map) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value at key and whether it was present.
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := NewMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k].Clone())
	}
	return out
}

// Value is a tagged union: null, bool, unsigned, signed, float, string,
// an ordered map, or a sequence of Value.
type Value struct {
	kind Kind
	b    bool
	u    uint64
	i    int64
	f    float64
	s    string
	m    *Map
	seq  []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Bool constructs a bool value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Unsigned constructs an unsigned-integer value.
func Unsigned(u uint64) Value { return Value{kind: KindUnsigned, u: u} }

// Signed constructs a signed-integer value.
func Signed(i int64) Value { return Value{kind: KindSigned, i: i} }

// Float constructs a floating point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String constructs a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// FromMap wraps an existing *Map.
func FromMap(m *Map) Value { return Value{kind: KindMap, m: m} }

// FromSeq wraps a slice of Value as a sequence.
func FromSeq(seq []Value) Value { return Value{kind: KindSeq, seq: seq} }

// Kind returns the variant tag currently held.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsBool() bool   { return v.kind == KindBool }
func (v Value) IsString() bool { return v.kind == KindString }
func (v Value) IsMap() bool    { return v.kind == KindMap }
func (v Value) IsSeq() bool    { return v.kind == KindSeq }
func (v Value) IsNumber() bool {
	return v.kind == KindUnsigned || v.kind == KindSigned || v.kind == KindFloat
}

// AsBool returns the bool payload, or false, ok=false if not a bool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsString returns the string payload.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsUnsigned succeeds for non-negative integers of any integer kind.
func (v Value) AsUnsigned() (uint64, bool) {
	switch v.kind {
	case KindUnsigned:
		return v.u, true
	case KindSigned:
		if v.i < 0 {
			return 0, false
		}
		return uint64(v.i), true
	case KindFloat:
		if v.f < 0 || v.f != math.Trunc(v.f) {
			return 0, false
		}
		return uint64(v.f), true
	default:
		return 0, false
	}
}

// AsInteger succeeds for both signed and unsigned values in int64 range.
func (v Value) AsInteger() (int64, bool) {
	switch v.kind {
	case KindSigned:
		return v.i, true
	case KindUnsigned:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	case KindFloat:
		if v.f != math.Trunc(v.f) {
			return 0, false
		}
		return int64(v.f), true
	default:
		return 0, false
	}
}

// AsFloat widens any numeric kind to float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindSigned:
		return float64(v.i), true
	case KindUnsigned:
		return float64(v.u), true
	default:
		return 0, false
	}
}

// AsMap returns the underlying *Map.
func (v Value) AsMap() (*Map, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// AsSeq returns the underlying slice.
func (v Value) AsSeq() ([]Value, bool) {
	if v.kind != KindSeq {
		return nil, false
	}
	return v.seq, true
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		return FromMap(v.m.Clone())
	case KindSeq:
		out := make([]Value, len(v.seq))
		for i, e := range v.seq {
			out[i] = e.Clone()
		}
		return FromSeq(out)
	default:
		return v
	}
}

// Equal reports deep structural equality (NaN-insensitive, the notion a
// JSON round-trip is expected to preserve).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		// unsigned/signed/float of equal numeric value still compare equal
		if a.IsNumber() && b.IsNumber() {
			af, aok := a.AsFloat()
			bf, bok := b.AsFloat()
			return aok && bok && af == bf
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindUnsigned:
		return a.u == b.u
	case KindSigned:
		return a.i == b.i
	case KindFloat:
		if math.IsNaN(a.f) && math.IsNaN(b.f) {
			return true
		}
		return a.f == b.f
	case KindString:
		return a.s == b.s
	case KindSeq:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !Equal(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if a.m.Len() != b.m.Len() {
			return false
		}
		for _, k := range a.m.Keys() {
			av, _ := a.m.Get(k)
			bv, ok := b.m.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON renders the value as standard JSON, preserving map insertion
// order (Go's encoding/json sorts map[string]any keys, so we build the
// object manually).
func (v Value) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	if err := v.writeJSON(&b); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func (v Value) writeJSON(b *strings.Builder) error {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.b {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindUnsigned:
		b.WriteString(strconv.FormatUint(v.u, 10))
	case KindSigned:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.FormatFloat(v.f, 'g', -1, 64))
		}
	case KindString:
		data, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		b.Write(data)
	case KindSeq:
		b.WriteByte('[')
		for i, e := range v.seq {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := e.writeJSON(b); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		for i, k := range v.m.Keys() {
			if i > 0 {
				b.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			b.Write(key)
			b.WriteByte(':')
			ev, _ := v.m.Get(k)
			if err := ev.writeJSON(b); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes standard JSON into a Value, preserving object key
// order and distinguishing integer literals from floats. It delegates to
// FromJSON, which walks the token stream directly instead of going through
// an intermediate map[string]any (which would lose key order).
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := FromJSON(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

func numberFromJSON(n json.Number) Value {
	if i, err := n.Int64(); err == nil {
		return Signed(i)
	}
	if f, err := n.Float64(); err == nil {
		return Float(f)
	}
	return Null()
}

// FromJSON decodes a JSON document into a Value, preserving object member
// order exactly as it appears in the source bytes.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return numberFromJSON(t), nil
	case json.Delim:
		switch t {
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("value: expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return FromMap(m), nil
		case '[':
			var seq []Value
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				seq = append(seq, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return FromSeq(seq), nil
		}
	}
	return Value{}, fmt.Errorf("value: unexpected token %v", tok)
}

// ToJSON renders the value to compact JSON bytes.
func ToJSON(v Value) ([]byte, error) {
	return v.MarshalJSON()
}
