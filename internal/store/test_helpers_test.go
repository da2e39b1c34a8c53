package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/cronrun/internal/ir"
)

// createTestStore opens a fresh journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBatch builds a three-call batch where the second call failed.
func createTestBatch(id, tag string) *ir.Batch {
	sync := ir.CallExpression{
		ServiceName: "OrderService", FunctionName: "sync",
		Args:    []ir.Literal{ir.Integer(10), ir.Text("eu"), ir.Boolean(true)},
		RawText: "OrderService.sync(10, 'eu', true)",
	}
	ping := ir.CallExpression{
		ServiceName: "UserService", FunctionName: "ping",
		Args:    []ir.Literal{ir.Structured{Value: ir.IRObject{"retries": ir.IRInt(2)}}},
		RawText: "UserService.ping({retries:2})",
	}
	flush := ir.CallExpression{RawText: "AuditService.flush()"}

	return &ir.Batch{
		ID:             id,
		Tag:            tag,
		RawExpressions: []string{sync.RawText, ping.RawText, flush.RawText},
		Outcomes: []ir.Outcome{
			{Index: 0, Expression: sync, Status: ir.StatusSuccess, Detail: sync.Signature(), Seq: 1},
			{Index: 1, Expression: ping, Status: ir.StatusFailure, Detail: ping.Signature() + ": timeout", Seq: 2},
			{Index: 2, Expression: flush, Status: ir.StatusSkipped, Detail: flush.RawText + ": " + ir.SkipMessage, Seq: 3},
		},
		Severity: ir.SeverityError,
	}
}
