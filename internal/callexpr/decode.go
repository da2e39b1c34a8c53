package callexpr

import (
	"strconv"
	"strings"

	"github.com/roach88/cronrun/internal/ir"
)

// DecodeLiteral classifies one trimmed argument fragment.
//
// Priority: Integer, Text, Structured, Boolean. A fragment that matches none
// of them, an integer that overflows int64, or a structured literal that is
// not valid JSON is returned unchanged as ir.Text together with a
// *LiteralDecodeError. The literal is always usable.
func DecodeLiteral(fragment string) (ir.Literal, error) {
	switch {
	case isAllDigits(fragment):
		n, err := strconv.ParseInt(fragment, 10, 64)
		if err != nil {
			return ir.Text(fragment), &LiteralDecodeError{Fragment: fragment, Reason: "integer out of range", Err: err}
		}
		return ir.Integer(n), nil

	case isWrapped(fragment, '\'', '\''):
		return ir.Text(fragment[1 : len(fragment)-1]), nil

	case isWrapped(fragment, '{', '}') || isWrapped(fragment, '[', ']'):
		v, err := ir.UnmarshalIRValue([]byte(normalizeStructured(fragment)))
		if err != nil {
			return ir.Text(fragment), &LiteralDecodeError{Fragment: fragment, Reason: "invalid structured literal", Err: err}
		}
		return ir.Structured{Value: v}, nil

	case fragment == "true":
		return ir.Boolean(true), nil

	case fragment == "false":
		return ir.Boolean(false), nil

	default:
		return ir.Text(fragment), &LiteralDecodeError{Fragment: fragment, Reason: "unknown argument format"}
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isWrapped(s string, open, close byte) bool {
	return len(s) >= 2 && s[0] == open && s[len(s)-1] == close
}

// normalizeStructured turns a relaxed object/array literal into JSON:
// every single quote becomes a double quote, then each bare identifier
// immediately followed by a colon is wrapped in double quotes.
//
//	{a:1, 'b':'x'}  ->  {"a":1, "b":"x"}
//
// Identifiers inside double-quoted strings are left alone.
func normalizeStructured(s string) string {
	s = strings.ReplaceAll(s, "'", `"`)

	var b strings.Builder
	b.Grow(len(s) + 8)
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(s) {
					i++
					b.WriteByte(s[i])
				}
			case '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if !isIdentByte(c) {
			b.WriteByte(c)
			continue
		}

		end := scanIdent(s, i)
		word := s[i:end]
		if end < len(s) && s[end] == ':' {
			b.WriteByte('"')
			b.WriteString(word)
			b.WriteByte('"')
		} else {
			b.WriteString(word)
		}
		i = end - 1
	}
	return b.String()
}
