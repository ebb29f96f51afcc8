// Copyright (C) 2020-2026, Evolu Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package crdt

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind tags a Value's dynamic type, the closed union of spec §3 and
// §9 ("Value is a closed tagged union {null, i64, f64, text, blob,
// json}; JSON is stored as a byte string and parsed lazily at query
// time. No reflection.").
type Kind byte

const (
	KindNull Kind = iota
	KindInt64
	KindFloat64
	KindText
	KindBlob
	KindJSON
)

// Value is a single column's dynamic value.
type Value struct {
	Kind Kind
	i64  int64
	f64  float64
	text string
	blob []byte // also holds the raw bytes of a KindJSON value
}

func NullValue() Value            { return Value{Kind: KindNull} }
func IntValue(v int64) Value      { return Value{Kind: KindInt64, i64: v} }
func FloatValue(v float64) Value  { return Value{Kind: KindFloat64, f64: v} }
func TextValue(v string) Value    { return Value{Kind: KindText, text: v} }
func BlobValue(v []byte) Value    { return Value{Kind: KindBlob, blob: append([]byte(nil), v...)} }
func JSONValue(raw []byte) Value  { return Value{Kind: KindJSON, blob: append([]byte(nil), raw...)} }

func (v Value) Int64() (int64, bool)     { return v.i64, v.Kind == KindInt64 }
func (v Value) Float64() (float64, bool) { return v.f64, v.Kind == KindFloat64 }
func (v Value) Text() (string, bool)     { return v.text, v.Kind == KindText }
func (v Value) Blob() ([]byte, bool) {
	if v.Kind != KindBlob {
		return nil, false
	}
	return append([]byte(nil), v.blob...), true
}
func (v Value) JSON() ([]byte, bool) {
	if v.Kind != KindJSON {
		return nil, false
	}
	return append([]byte(nil), v.blob...), true
}

// Equal reports whether two values carry the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindInt64:
		return v.i64 == other.i64
	case KindFloat64:
		return v.f64 == other.f64
	case KindText:
		return v.text == other.text
	case KindBlob, KindJSON:
		return string(v.blob) == string(other.blob)
	default:
		return false
	}
}

// Encode serializes a Value into the single blob stored in the
// `value` column of evolu_history, so the history table's schema
// matches the one-column-per-row model of spec §3 regardless of the
// value's dynamic kind.
func (v Value) Encode() []byte {
	switch v.Kind {
	case KindNull:
		return []byte{byte(KindNull)}
	case KindInt64:
		buf := make([]byte, 9)
		buf[0] = byte(KindInt64)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.i64))
		return buf
	case KindFloat64:
		buf := make([]byte, 9)
		buf[0] = byte(KindFloat64)
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v.f64))
		return buf
	case KindText:
		return append([]byte{byte(KindText)}, []byte(v.text)...)
	case KindBlob:
		return append([]byte{byte(KindBlob)}, v.blob...)
	case KindJSON:
		return append([]byte{byte(KindJSON)}, v.blob...)
	default:
		return []byte{byte(KindNull)}
	}
}

// DecodeValue is the inverse of Value.Encode.
func DecodeValue(raw []byte) (Value, error) {
	if len(raw) == 0 {
		return Value{}, fmt.Errorf("crdt: empty encoded value")
	}
	kind := Kind(raw[0])
	payload := raw[1:]
	switch kind {
	case KindNull:
		return NullValue(), nil
	case KindInt64:
		if len(payload) != 8 {
			return Value{}, fmt.Errorf("crdt: malformed int64 value")
		}
		return IntValue(int64(binary.BigEndian.Uint64(payload))), nil
	case KindFloat64:
		if len(payload) != 8 {
			return Value{}, fmt.Errorf("crdt: malformed float64 value")
		}
		return FloatValue(math.Float64frombits(binary.BigEndian.Uint64(payload))), nil
	case KindText:
		return TextValue(string(payload)), nil
	case KindBlob:
		return BlobValue(payload), nil
	case KindJSON:
		return JSONValue(payload), nil
	default:
		return Value{}, fmt.Errorf("crdt: unknown value kind %d", kind)
	}
}
