package report

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/cronrun/internal/ir"
)

// assertGolden compares a rendered report against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/report -update
func assertGolden(t *testing.T, name, rendered string) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(rendered))
}

func call(service, function, raw string, args ...ir.Literal) ir.CallExpression {
	return ir.CallExpression{ServiceName: service, FunctionName: function, Args: args, RawText: raw}
}

func TestRenderAllSuccess(t *testing.T) {
	sync := call("OrderService", "sync", "OrderService.sync(10)", ir.Integer(10))
	ping := call("UserService", "ping", "UserService.ping()")
	b := &ir.Batch{
		Tag: "daily",
		Outcomes: []ir.Outcome{
			{Index: 0, Expression: sync, Status: ir.StatusSuccess, Detail: sync.Signature()},
			{Index: 1, Expression: ping, Status: ir.StatusSuccess, Detail: ping.Signature()},
		},
		Severity: ir.SeverityInfo,
	}

	assertGolden(t, "all_success", Render(b))
}

func TestRenderFailureThenSkipped(t *testing.T) {
	sync := call("OrderService", "sync", "OrderService.sync(10)", ir.Integer(10))
	ping := call("UserService", "ping", "UserService.ping()")
	flush := call("AuditService", "flush", "AuditService.flush('all', {a:1})",
		ir.Text("all"), ir.Structured{Value: ir.IRObject{"a": ir.IRInt(1)}})
	b := &ir.Batch{
		Tag: "daily",
		Outcomes: []ir.Outcome{
			{Index: 0, Expression: sync, Status: ir.StatusSuccess, Detail: sync.Signature()},
			{Index: 1, Expression: ping, Status: ir.StatusFailure, Detail: ping.Signature() + ": timeout"},
			{Index: 2, Expression: flush, Status: ir.StatusSkipped, Detail: flush.RawText + ": " + ir.SkipMessage},
		},
		Severity: ir.SeverityError,
	}

	assertGolden(t, "failure_then_skipped", Render(b))
}

func TestRenderHeaderOnly(t *testing.T) {
	assert.Equal(t, "*[cron] CronJob run(empty)*", Render(&ir.Batch{Tag: "empty"}))
}

func TestLineFallbacks(t *testing.T) {
	expr := call("S", "f", "S.f('x')", ir.Text("x"))

	assert.Equal(t, "[success] S.f(x)", Line(ir.Outcome{Expression: expr, Status: ir.StatusSuccess}))
	assert.Equal(t, "[skipped] S.f('x'): Skipped due to previous error",
		Line(ir.Outcome{Expression: expr, Status: ir.StatusSkipped}))
}

func TestLinesCountMatchesOutcomes(t *testing.T) {
	b := &ir.Batch{Tag: "n"}
	for i := 0; i < 5; i++ {
		e := call("S", "f", "S.f()")
		b.Outcomes = append(b.Outcomes, ir.Outcome{Index: i, Expression: e, Status: ir.StatusSuccess})
	}

	lines := Lines(b)
	assert.Len(t, lines, 6)
	assert.False(t, strings.HasSuffix(Render(b), "\n"))
}
