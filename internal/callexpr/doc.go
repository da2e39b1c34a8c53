// Package callexpr parses textual call expressions of the form
//
//	Service.function(arg, arg, ...)
//
// into ir.CallExpression values.
//
// # Grammar
//
//	call    = IDENT "." IDENT "(" [ arglist ] ")"
//	IDENT   = [A-Za-z0-9_]+
//
// The whole input must match; trailing characters after the closing
// parenthesis, a missing dot or missing parentheses yield a *ParseError.
//
// # Argument splitting
//
// Arguments are split by a small state machine (Normal, InString) plus a
// bracket depth counter, not by a delimiter split, because a single
// argument may itself contain commas, braces or brackets:
//   - a single quote toggles InString, but only at depth 0
//   - { and [ increment depth, } and ] decrement it, but only outside a string
//   - a comma ends the current argument only in Normal state at depth 0
//
// The trailing fragment is always pushed, even if depth never returned to 0.
// WithStrictNesting turns that case into a *ParseError instead.
//
// # Literals
//
// Each trimmed fragment is classified in a fixed order: all-digit Integer,
// single-quoted Text, {...} or [...] Structured (single quotes become double
// quotes and bare keys are quoted before JSON decoding), then true/false.
// Anything else degrades to Text with a *LiteralDecodeError reported to the
// parser's decode-error handler; decoding never aborts a parse.
package callexpr
