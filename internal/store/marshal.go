package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cronrun/internal/ir"
)

// marshalArgs converts call arguments to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so identical arguments always store identically.
func marshalArgs(args []ir.Literal) (string, error) {
	data, err := ir.MarshalCanonical(ir.LiteralsToIRArray(args))
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored args back into literals.
//
// The mapping is unambiguous because Structured literals are always objects
// or arrays: IRInt -> Integer, IRString -> Text, IRBool -> Boolean, anything
// else -> Structured. An empty list decodes to nil, matching a parsed call
// with no arguments.
func unmarshalArgs(data string) ([]ir.Literal, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var arr ir.IRArray
	if err := json.Unmarshal([]byte(data), &arr); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	if len(arr) == 0 {
		return nil, nil
	}

	args := make([]ir.Literal, len(arr))
	for i, v := range arr {
		switch val := v.(type) {
		case ir.IRInt:
			args[i] = ir.Integer(val)
		case ir.IRString:
			args[i] = ir.Text(val)
		case ir.IRBool:
			args[i] = ir.Boolean(val)
		default:
			args[i] = ir.Structured{Value: val}
		}
	}
	return args, nil
}
