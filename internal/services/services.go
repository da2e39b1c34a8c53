// Package services provides the operations shipped with the cronrun binary.
//
// TestService exists to exercise the dispatcher end to end. HealthCheckService
// checks the shared resources owned by the lifecycle manager. Both are plain
// registry.OperationSet values; resources are only ever obtained through the
// manager, never opened directly.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cronrun/internal/ir"
	"github.com/roach88/cronrun/internal/lifecycle"
	"github.com/roach88/cronrun/internal/registry"
)

// Register installs every built-in service into reg.
func Register(reg *registry.Registry, m *lifecycle.Manager, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	reg.Register("TestService", NewTestService(logger))
	reg.Register("HealthCheckService", NewHealthCheckService(m, logger))
}

// NewTestService returns operations that log their arguments.
//
//	test1..test4  log every argument with its literal kind
//	fail(msg)     returns an error carrying msg
//	crash(msg)    panics with msg
//	sleep(ms)     waits ms milliseconds or until the call is cancelled
func NewTestService(logger *slog.Logger) registry.OperationSet {
	logArgs := func(name string) registry.Operation {
		return func(_ context.Context, args ...ir.Literal) error {
			logger.Info("TestService."+name, "argc", len(args))
			for i, a := range args {
				logger.Info("TestService."+name+" argument",
					"position", i,
					"kind", string(a.Kind()),
					"value", a.String(),
				)
			}
			return nil
		}
	}

	return registry.OperationSet{
		"test1": logArgs("test1"),
		"test2": logArgs("test2"),
		"test3": logArgs("test3"),
		"test4": logArgs("test4"),
		"fail": func(_ context.Context, args ...ir.Literal) error {
			return errors.New(firstText(args, "TestService.fail called"))
		},
		"crash": func(_ context.Context, args ...ir.Literal) error {
			panic(firstText(args, "TestService.crash called"))
		},
		"sleep": func(ctx context.Context, args ...ir.Literal) error {
			if len(args) != 1 {
				return fmt.Errorf("sleep takes 1 argument, got %d", len(args))
			}
			ms, ok := args[0].(ir.Integer)
			if !ok {
				return fmt.Errorf("sleep: milliseconds must be an integer, got %s", args[0].Kind())
			}
			t := time.NewTimer(time.Duration(ms) * time.Millisecond)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// NewHealthCheckService returns operations that verify shared resources.
//
//	journal()   acquire the SQLite journal and ping it
//	postgres()  acquire the Postgres pool and run SELECT 1
func NewHealthCheckService(m *lifecycle.Manager, logger *slog.Logger) registry.OperationSet {
	return registry.OperationSet{
		"journal": func(ctx context.Context, _ ...ir.Literal) error {
			s, err := Journal(ctx, m)
			if err != nil {
				return err
			}
			if err := s.Ping(ctx); err != nil {
				return fmt.Errorf("journal ping: %w", err)
			}
			logger.Info("journal healthy")
			return nil
		},
		"postgres": func(ctx context.Context, _ ...ir.Literal) error {
			pool, err := Postgres(ctx, m)
			if err != nil {
				return err
			}
			var one int
			if err := pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
				return fmt.Errorf("postgres query: %w", err)
			}
			stat := pool.Stat()
			logger.Info("postgres healthy",
				"total_conns", stat.TotalConns(),
				"idle_conns", stat.IdleConns(),
			)
			return nil
		},
	}
}

// firstText returns the first argument's text, or fallback.
func firstText(args []ir.Literal, fallback string) string {
	if len(args) == 0 {
		return fallback
	}
	return args[0].String()
}
