package callexpr

import (
	"errors"
	"fmt"
)

// ParseError reports an input that does not have the call-expression shape.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("input string is not in the expected format: %s (%s)", e.Input, e.Reason)
}

// LiteralDecodeError reports an argument fragment that could not be
// classified, or a structured literal that is not valid JSON after
// normalization. The fragment is still returned as ir.Text.
type LiteralDecodeError struct {
	Fragment string
	Reason   string
	Err      error
}

func (e *LiteralDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Fragment, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Fragment)
}

func (e *LiteralDecodeError) Unwrap() error {
	return e.Err
}

// IsParseError returns true if err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsLiteralDecodeError returns true if err is or wraps a *LiteralDecodeError.
func IsLiteralDecodeError(err error) bool {
	var de *LiteralDecodeError
	return errors.As(err, &de)
}
