package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"
)

// IRValue is the payload of a Structured literal: the object or array a
// caller wrote as {a:1} or [1,2], after normalization to JSON.
//
// Only IRNull, IRString, IRInt, IRBool, IRArray and IRObject implement it.
// There is no float variant; a fragment containing one decodes as Text.
type IRValue interface {
	irValue()
}

// IRNull is a null inside a structured argument.
type IRNull struct{}

// IRString is a string inside a structured argument.
type IRString string

// IRInt is an integer inside a structured argument.
type IRInt int64

// IRBool is a boolean inside a structured argument.
type IRBool bool

// IRArray is a list such as [1,'a'].
type IRArray []IRValue

// IRObject is a key/value map such as {a:1}.
type IRObject map[string]IRValue

func (IRNull) irValue()   {}
func (IRString) irValue() {}
func (IRInt) irValue()    {}
func (IRBool) irValue()   {}
func (IRArray) irValue()  {}
func (IRObject) irValue() {}

// SortedKeys returns the object's keys ordered by UTF-16 code units, the
// order canonical JSON requires. This differs from byte order for keys
// outside the Basic Multilingual Plane.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
	})
	return keys
}

// MarshalIRValue renders v as compact JSON with sorted object keys. This is
// the form shown in call signatures; use MarshalCanonical for hashing.
func MarshalIRValue(v IRValue) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeValue(buf *bytes.Buffer, v IRValue) error {
	switch val := v.(type) {
	case IRNull:
		buf.WriteString("null")
	case IRString:
		b, err := json.Marshal(string(val))
		if err != nil {
			return err
		}
		buf.Write(b)
	case IRInt:
		fmt.Fprintf(buf, "%d", int64(val))
	case IRBool:
		fmt.Fprintf(buf, "%t", bool(val))
	case IRArray:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case IRObject:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := writeValue(buf, val[k]); err != nil {
				return fmt.Errorf("object[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown IRValue type: %T", v)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (IRNull) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON implements json.Marshaler with sorted keys.
func (obj IRObject) MarshalJSON() ([]byte, error) { return MarshalIRValue(obj) }

// MarshalJSON implements json.Marshaler.
func (arr IRArray) MarshalJSON() ([]byte, error) { return MarshalIRValue(arr) }

// UnmarshalJSON implements json.Unmarshaler.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalIRValue(data)
	if err != nil {
		return err
	}
	a, ok := v.(IRArray)
	if !ok {
		return fmt.Errorf("expected array, got %T", v)
	}
	*arr = a
	return nil
}

// UnmarshalIRValue decodes one JSON value. Numbers must be integers that
// fit in int64; null is kept as IRNull. Trailing data is an error.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return fromDecoded(raw)
}

func fromDecoded(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case json.Number:
		if strings.ContainsAny(string(val), ".eE") {
			return nil, fmt.Errorf("floats are not allowed: %s", val)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", val)
		}
		return IRInt(n), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			ev, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			ev, err := fromDecoded(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
