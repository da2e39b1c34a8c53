package callexpr

import (
	"strings"

	"github.com/roach88/cronrun/internal/ir"
)

// DecodeErrorHandler receives every fragment that degraded to Text.
type DecodeErrorHandler func(fragment string, err error)

// Parser turns raw call strings into ir.CallExpression values.
// A Parser holds no per-call state and is safe for concurrent use
// as long as its decode-error handler is.
type Parser struct {
	strictNesting bool
	onDecodeError DecodeErrorHandler
}

// Option configures a Parser.
type Option func(*Parser)

// WithStrictNesting makes unbalanced brackets in the argument list a
// *ParseError. By default the trailing fragment is pushed as the last
// argument regardless of the final depth.
func WithStrictNesting(strict bool) Option {
	return func(p *Parser) {
		p.strictNesting = strict
	}
}

// WithDecodeErrorHandler installs the callback invoked for each argument
// that could not be decoded.
func WithDecodeErrorHandler(h DecodeErrorHandler) Option {
	return func(p *Parser) {
		p.onDecodeError = h
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses one call expression.
//
// On a shape error the returned expression carries only RawText, so callers
// can still report which input was rejected.
func (p *Parser) Parse(raw string) (ir.CallExpression, error) {
	expr := ir.CallExpression{RawText: raw}

	service, function, inner, err := splitCall(raw)
	if err != nil {
		return expr, err
	}

	fragments, depth := splitArgs(inner)
	if p.strictNesting && depth != 0 {
		return expr, &ParseError{Input: raw, Reason: "unbalanced brackets in arguments"}
	}

	expr.ServiceName = service
	expr.FunctionName = function
	expr.Args = make([]ir.Literal, len(fragments))
	for i, frag := range fragments {
		expr.Args[i] = p.decode(frag)
	}
	return expr, nil
}

// decode classifies a fragment, reporting degraded fragments to the handler.
func (p *Parser) decode(fragment string) ir.Literal {
	lit, err := DecodeLiteral(fragment)
	if err != nil && p.onDecodeError != nil {
		p.onDecodeError(fragment, err)
	}
	return lit
}

// splitCall checks the outer `IDENT.IDENT(...)` shape and returns the
// service name, function name and the raw text between the parentheses.
func splitCall(raw string) (service, function, inner string, err error) {
	fail := func(reason string) (string, string, string, error) {
		return "", "", "", &ParseError{Input: raw, Reason: reason}
	}

	dot := scanIdent(raw, 0)
	if dot == 0 {
		return fail("missing service name")
	}
	if dot >= len(raw) || raw[dot] != '.' {
		return fail("missing '.' after service name")
	}

	open := scanIdent(raw, dot+1)
	if open == dot+1 {
		return fail("missing function name")
	}
	if open >= len(raw) || raw[open] != '(' {
		return fail("missing '(' after function name")
	}
	if !strings.HasSuffix(raw, ")") {
		return fail("missing closing ')' at end of input")
	}

	inner = raw[open+1 : len(raw)-1]
	if strings.ContainsAny(inner, "\n\r\u2028\u2029") {
		return fail("line break in arguments")
	}
	return raw[:dot], raw[dot+1 : open], inner, nil
}

// scanIdent returns the index of the first byte at or after start that is
// not an identifier character.
func scanIdent(s string, start int) int {
	i := start
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// scanState is the argument splitter's string state.
type scanState int

const (
	stateNormal scanState = iota
	stateInString
)

// splitArgs splits an argument list into trimmed fragments and returns the
// bracket depth left at the end of the scan (0 when balanced).
//
// All delimiters are ASCII, so scanning bytes is safe for UTF-8 input:
// continuation bytes never collide with them.
func splitArgs(s string) ([]string, int) {
	var (
		args  []string
		cur   strings.Builder
		state = stateNormal
		depth int
	)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && depth == 0:
			if state == stateInString {
				state = stateNormal
			} else {
				state = stateInString
			}
			cur.WriteByte(c)
		case (c == '{' || c == '[') && state != stateInString:
			depth++
			cur.WriteByte(c)
		case (c == '}' || c == ']') && state != stateInString:
			depth--
			cur.WriteByte(c)
		case c == ',' && state == stateNormal && depth == 0:
			args = append(args, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}

	if cur.Len() > 0 {
		args = append(args, strings.TrimSpace(cur.String()))
	}
	return args, depth
}
