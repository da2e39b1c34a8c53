package ir

import (
	"strconv"
)

// LiteralKind names the variant of a Literal.
type LiteralKind string

const (
	KindInteger    LiteralKind = "integer"
	KindText       LiteralKind = "text"
	KindBoolean    LiteralKind = "boolean"
	KindStructured LiteralKind = "structured"
)

// Literal is a sealed interface for one decoded call argument.
// Only Integer, Text, Boolean and Structured implement it.
type Literal interface {
	literal() // Sealed

	// Kind reports the variant.
	Kind() LiteralKind

	// String renders the literal the way it appears in a call signature.
	String() string
}

// Integer is an unsigned decimal argument such as 10.
type Integer int64

func (Integer) literal() {}

// Kind implements Literal.
func (Integer) Kind() LiteralKind { return KindInteger }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// Text is a quoted argument such as 'abc', stored without its quotes.
// Fragments the decoder cannot classify also degrade to Text.
type Text string

func (Text) literal() {}

// Kind implements Literal.
func (Text) Kind() LiteralKind { return KindText }

func (t Text) String() string { return string(t) }

// Boolean is a bare true or false argument.
type Boolean bool

func (Boolean) literal() {}

// Kind implements Literal.
func (Boolean) Kind() LiteralKind { return KindBoolean }

func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

// Structured is an object or array argument such as {a:1} or [1,2].
type Structured struct {
	Value IRValue
}

func (Structured) literal() {}

// Kind implements Literal.
func (Structured) Kind() LiteralKind { return KindStructured }

// String renders the payload as compact JSON with sorted keys.
func (s Structured) String() string {
	if s.Value == nil {
		return "null"
	}
	data, err := MarshalIRValue(s.Value)
	if err != nil {
		return "<invalid>"
	}
	return string(data)
}

// ToIRValue converts a literal into the IRValue used for canonical encoding.
func ToIRValue(l Literal) IRValue {
	switch v := l.(type) {
	case Integer:
		return IRInt(v)
	case Text:
		return IRString(v)
	case Boolean:
		return IRBool(v)
	case Structured:
		if v.Value == nil {
			return IRNull{}
		}
		return v.Value
	default:
		return IRNull{}
	}
}

// LiteralsToIRArray converts an argument list for canonical encoding.
func LiteralsToIRArray(args []Literal) IRArray {
	arr := make(IRArray, len(args))
	for i, a := range args {
		arr[i] = ToIRValue(a)
	}
	return arr
}
