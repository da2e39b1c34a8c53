package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cronrun/internal/ir"
)

func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)
	batch := createTestBatch("run-1", "daily")

	require.NoError(t, s.WriteRun(ctx, batch, started))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, started, run.StartedAt)
	assert.Equal(t, *batch, run.Batch)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	batch := createTestBatch("run-1", "daily")

	require.NoError(t, s.WriteRun(ctx, batch, time.Now()))
	require.NoError(t, s.WriteRun(ctx, batch, time.Now()))

	var runs, outcomes int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs))
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM outcomes").Scan(&outcomes))
	assert.Equal(t, 1, runs)
	assert.Equal(t, 3, outcomes)
}

func TestWriteRun_StoresCanonicalArgs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRun(ctx, createTestBatch("run-1", "daily"), time.Now()))

	var args string
	require.NoError(t, s.db.QueryRow("SELECT args FROM outcomes WHERE idx = 0").Scan(&args))
	assert.Equal(t, `[10,"eu",true]`, args)
}

func TestWriteRun_RequiresID(t *testing.T) {
	s := createTestStore(t)
	err := s.WriteRun(context.Background(), &ir.Batch{Tag: "x"}, time.Now())
	assert.Error(t, err)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns_NewestFirstWithFilters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.WriteRun(ctx, createTestBatch("run-1", "daily"), base))
	require.NoError(t, s.WriteRun(ctx, createTestBatch("run-2", "hourly"), base.Add(time.Hour)))
	require.NoError(t, s.WriteRun(ctx, createTestBatch("run-3", "daily"), base.Add(2*time.Hour)))

	all, err := s.ListRuns(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].Batch.ID)
	assert.Equal(t, "run-1", all[2].Batch.ID)
	assert.Len(t, all[0].Batch.Outcomes, 3)

	daily, err := s.ListRuns(ctx, ListFilter{Tag: "daily", Limit: 1})
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, "run-3", daily[0].Batch.ID)

	none, err := s.ListRuns(ctx, ListFilter{Tag: "weekly"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestListRuns_ByCall(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	other := createTestBatch("run-2", "daily")
	other.Outcomes[1].Expression.Args = []ir.Literal{ir.Structured{Value: ir.IRObject{"retries": ir.IRInt(5)}}}

	require.NoError(t, s.WriteRun(ctx, createTestBatch("run-1", "daily"), base))
	require.NoError(t, s.WriteRun(ctx, other, base.Add(time.Hour)))

	ping := &ir.CallExpression{
		ServiceName:  "UserService",
		FunctionName: "ping",
		Args:         []ir.Literal{ir.Structured{Value: ir.IRObject{"retries": ir.IRInt(2)}}},
	}
	runs, err := s.ListRuns(ctx, ListFilter{Call: ping})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].Batch.ID)

	// Integer and text arguments hash differently.
	sync := &ir.CallExpression{
		ServiceName:  "OrderService",
		FunctionName: "sync",
		Args:         []ir.Literal{ir.Text("10"), ir.Text("eu"), ir.Boolean(true)},
	}
	runs, err = s.ListRuns(ctx, ListFilter{Call: sync})
	require.NoError(t, err)
	assert.Empty(t, runs)

	sync.Args[0] = ir.Integer(10)
	runs, err = s.ListRuns(ctx, ListFilter{Tag: "daily", Call: sync})
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestWriteRun_StoresArgsHash(t *testing.T) {
	s := createTestStore(t)
	batch := createTestBatch("run-1", "daily")
	require.NoError(t, s.WriteRun(context.Background(), batch, time.Now()))

	want, err := ir.ArgsHash(batch.Outcomes[0].Expression.Args)
	require.NoError(t, err)

	var got string
	require.NoError(t, s.db.QueryRow(`SELECT args_hash FROM outcomes WHERE run_id = ? AND idx = 0`, "run-1").Scan(&got))
	assert.Equal(t, want, got)
}

func TestUnmarshalArgs_Kinds(t *testing.T) {
	args, err := unmarshalArgs(`[1,"a",false,{"k":[1]},[]]`)
	require.NoError(t, err)
	assert.Equal(t, []ir.Literal{
		ir.Integer(1),
		ir.Text("a"),
		ir.Boolean(false),
		ir.Structured{Value: ir.IRObject{"k": ir.IRArray{ir.IRInt(1)}}},
		ir.Structured{Value: ir.IRArray{}},
	}, args)
}
