package services

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cronrun/internal/ir"
	"github.com/roach88/cronrun/internal/lifecycle"
	"github.com/roach88/cronrun/internal/registry"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func lookup(t *testing.T, set registry.OperationSet, name string) registry.Operation {
	t.Helper()
	op, ok := set.Lookup(name)
	require.True(t, ok, "operation %s not found", name)
	return op
}

func TestTestService_LogsArgumentKinds(t *testing.T) {
	logger, logs := newTestLogger()
	svc := NewTestService(logger)

	err := lookup(t, svc, "test4")(context.Background(),
		ir.Integer(1), ir.Text("a"), ir.Boolean(true), ir.Structured{Value: ir.IRObject{"a": ir.IRInt(1)}})
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "argc=4")
	assert.Contains(t, out, "kind=integer")
	assert.Contains(t, out, "kind=text")
	assert.Contains(t, out, "kind=boolean")
	assert.Contains(t, out, "kind=structured")
	assert.Contains(t, out, `value="{\"a\":1}"`)
}

func TestTestService_Fail(t *testing.T) {
	logger, _ := newTestLogger()
	svc := NewTestService(logger)

	assert.EqualError(t, lookup(t, svc, "fail")(context.Background(), ir.Text("timeout")), "timeout")
	assert.EqualError(t, lookup(t, svc, "fail")(context.Background()), "TestService.fail called")
}

func TestTestService_Crash(t *testing.T) {
	logger, _ := newTestLogger()
	svc := NewTestService(logger)

	assert.PanicsWithValue(t, "boom", func() {
		_ = lookup(t, svc, "crash")(context.Background(), ir.Text("boom"))
	})
}

func TestTestService_Sleep(t *testing.T) {
	logger, _ := newTestLogger()
	sleep := lookup(t, NewTestService(logger), "sleep")

	assert.NoError(t, sleep(context.Background(), ir.Integer(1)))
	assert.Error(t, sleep(context.Background()))
	assert.Error(t, sleep(context.Background(), ir.Text("10")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sleep(ctx, ir.Integer(60_000)), context.DeadlineExceeded)
}

func TestHealthCheckService_Journal(t *testing.T) {
	logger, logs := newTestLogger()
	m := lifecycle.New(logger)
	m.Provide(ResourceJournal, JournalOpener(filepath.Join(t.TempDir(), "journal.db")))
	svc := NewHealthCheckService(m, logger)

	require.NoError(t, lookup(t, svc, "journal")(context.Background()))
	assert.Contains(t, logs.String(), "journal healthy")

	m.Shutdown()
	assert.Equal(t, []string{ResourceJournal}, m.Released())

	// Acquire after shutdown fails instead of reopening.
	err := lookup(t, svc, "journal")(context.Background())
	assert.ErrorIs(t, err, lifecycle.ErrShutdown)
}

func TestHealthCheckService_NotConfigured(t *testing.T) {
	logger, _ := newTestLogger()
	m := lifecycle.New(logger)
	m.Provide(ResourceJournal, JournalOpener(""))
	m.Provide(ResourcePostgres, PostgresOpener("", logger))
	svc := NewHealthCheckService(m, logger)

	assert.ErrorIs(t, lookup(t, svc, "journal")(context.Background()), ErrNotConfigured)
	assert.ErrorIs(t, lookup(t, svc, "postgres")(context.Background()), ErrNotConfigured)
}

func TestHealthCheckService_Postgres(t *testing.T) {
	dsn := os.Getenv("CRONRUN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CRONRUN_TEST_POSTGRES_DSN not set")
	}
	logger, logs := newTestLogger()
	m := lifecycle.New(logger)
	m.Provide(ResourcePostgres, PostgresOpener(dsn, logger))
	defer m.Shutdown()

	require.NoError(t, lookup(t, NewHealthCheckService(m, logger), "postgres")(context.Background()))
	assert.Contains(t, logs.String(), "postgres healthy")
}

func TestPostgresOpener_BadDSN(t *testing.T) {
	logger, _ := newTestLogger()
	_, _, err := PostgresOpener("postgres://%zz", logger)(context.Background())
	assert.ErrorContains(t, err, "parse postgres config")
}

func TestRegister(t *testing.T) {
	logger, _ := newTestLogger()
	reg := registry.New([]string{"TestService", "HealthCheckService"})
	Register(reg, lifecycle.New(logger), logger)

	ops, ok := reg.OperationNames("TestService")
	require.True(t, ok)
	assert.Equal(t, []string{"crash", "fail", "sleep", "test1", "test2", "test3", "test4"}, ops)

	ops, ok = reg.OperationNames("HealthCheckService")
	require.True(t, ok)
	assert.Equal(t, []string{"journal", "postgres"}, ops)
}
