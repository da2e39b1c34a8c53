package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	name   string
	closes atomic.Int32
}

func provideFake(m *Manager, name string, releaseErr error) *fakeConn {
	c := &fakeConn{name: name}
	m.Provide(name, func(context.Context) (any, ReleaseFunc, error) {
		return c, func() error {
			c.closes.Add(1)
			return releaseErr
		}, nil
	})
	return c
}

func newTestManager() (*Manager, *bytes.Buffer) {
	var logs bytes.Buffer
	return New(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))), &logs
}

func TestAcquireOpensOnceAndCaches(t *testing.T) {
	m, _ := newTestManager()
	opens := 0
	m.Provide("db", func(context.Context) (any, ReleaseFunc, error) {
		opens++
		return "conn", nil, nil
	})

	v1, err := m.Acquire(context.Background(), "db")
	require.NoError(t, err)
	v2, err := m.Acquire(context.Background(), "db")
	require.NoError(t, err)

	assert.Equal(t, "conn", v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, opens)
}

func TestAcquireTyped(t *testing.T) {
	m, _ := newTestManager()
	c := provideFake(m, "db", nil)

	got, err := Acquire[*fakeConn](context.Background(), m, "db")
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = Acquire[string](context.Background(), m, "db")
	assert.Error(t, err)
}

func TestAcquireUnknownAndOpenError(t *testing.T) {
	m, _ := newTestManager()
	_, err := m.Acquire(context.Background(), "missing")
	assert.Error(t, err)

	m.Provide("bad", func(context.Context) (any, ReleaseFunc, error) {
		return nil, nil, errors.New("refused")
	})
	_, err = m.Acquire(context.Background(), "bad")
	assert.ErrorContains(t, err, "refused")
}

func TestShutdownReleasesInReverseOrder(t *testing.T) {
	m, _ := newTestManager()
	provideFake(m, "first", nil)
	provideFake(m, "second", nil)
	provideFake(m, "never", nil)

	_, err := m.Acquire(context.Background(), "first")
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), "second")
	require.NoError(t, err)

	m.Shutdown()
	assert.Equal(t, []string{"second", "first"}, m.Released())
}

func TestShutdownIsIdempotent(t *testing.T) {
	m, _ := newTestManager()
	c := provideFake(m, "db", nil)
	_, err := m.Acquire(context.Background(), "db")
	require.NoError(t, err)

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, int32(1), c.closes.Load())
	assert.Equal(t, []string{"db"}, m.Released())
	assert.True(t, m.IsShutdown())
}

func TestShutdownWithNothingOpened(t *testing.T) {
	m, _ := newTestManager()
	assert.NotPanics(t, m.Shutdown)
	assert.Empty(t, m.Released())
}

func TestShutdownContinuesPastReleaseFailures(t *testing.T) {
	m, logs := newTestManager()
	a := provideFake(m, "a", nil)
	b := provideFake(m, "b", errors.New("close failed"))
	m.Provide("c", func(context.Context) (any, ReleaseFunc, error) {
		return "c", func() error { panic("boom") }, nil
	})

	for _, name := range []string{"a", "b", "c"} {
		_, err := m.Acquire(context.Background(), name)
		require.NoError(t, err)
	}

	assert.NotPanics(t, m.Shutdown)
	assert.Equal(t, int32(1), a.closes.Load())
	assert.Equal(t, int32(1), b.closes.Load())
	assert.Equal(t, []string{"c", "b", "a"}, m.Released())
	assert.Contains(t, logs.String(), "close failed")
	assert.Contains(t, logs.String(), "panic: boom")
}

func TestAcquireAfterShutdown(t *testing.T) {
	m, _ := newTestManager()
	provideFake(m, "db", nil)
	m.Shutdown()

	_, err := m.Acquire(context.Background(), "db")
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestConcurrentShutdownAndAcquire(t *testing.T) {
	m, _ := newTestManager()
	c := provideFake(m, "db", nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.Acquire(context.Background(), "db")
		}()
		go func() {
			defer wg.Done()
			m.Shutdown()
		}()
	}
	wg.Wait()

	// Either the resource was never opened, or it was released exactly once.
	assert.LessOrEqual(t, c.closes.Load(), int32(1))
	assert.True(t, m.IsShutdown())
	_, err := m.Acquire(context.Background(), "db")
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestShutdownDoesNotWaitForSlowOpen(t *testing.T) {
	m, _ := newTestManager()
	unblock := make(chan struct{})
	var closes atomic.Int32
	m.Provide("pg", func(context.Context) (any, ReleaseFunc, error) {
		<-unblock
		return "pool", func() error {
			closes.Add(1)
			return nil
		}, nil
	})

	acquired := make(chan error, 1)
	go func() {
		_, err := m.Acquire(context.Background(), "pg")
		acquired <- err
	}()

	// Wait until the open is in flight.
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.pending["pg"] != nil
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown blocked behind an in-flight open")
	}

	close(unblock)
	select {
	case err := <-acquired:
		assert.ErrorIs(t, err, ErrShutdown)
	case <-time.After(time.Second):
		t.Fatal("Acquire did not return")
	}
	assert.Equal(t, int32(1), closes.Load(), "late resource released exactly once")
	assert.Equal(t, []string{"pg"}, m.Released())
}

func TestConcurrentAcquireSharesOneOpen(t *testing.T) {
	m, _ := newTestManager()
	unblock := make(chan struct{})
	var opens atomic.Int32
	m.Provide("db", func(context.Context) (any, ReleaseFunc, error) {
		opens.Add(1)
		<-unblock
		return "conn", nil, nil
	})

	var wg sync.WaitGroup
	results := make([]any, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := m.Acquire(context.Background(), "db")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	require.Eventually(t, func() bool { return opens.Load() == 1 }, time.Second, time.Millisecond)
	close(unblock)
	wg.Wait()

	assert.Equal(t, int32(1), opens.Load())
	for _, v := range results {
		assert.Equal(t, "conn", v)
	}
}

func TestAcquireWaiterHonoursContext(t *testing.T) {
	m, _ := newTestManager()
	unblock := make(chan struct{})
	defer close(unblock)
	m.Provide("db", func(context.Context) (any, ReleaseFunc, error) {
		<-unblock
		return "conn", nil, nil
	})

	go func() { _, _ = m.Acquire(context.Background(), "db") }()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.pending["db"] != nil
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx, "db")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecoverAndShutdownRepanics(t *testing.T) {
	m, _ := newTestManager()
	c := provideFake(m, "db", nil)
	_, err := m.Acquire(context.Background(), "db")
	require.NoError(t, err)

	assert.PanicsWithValue(t, "fatal", func() {
		defer m.RecoverAndShutdown()
		panic("fatal")
	})
	assert.Equal(t, int32(1), c.closes.Load())
}

func TestRecoverAndShutdownWithoutPanic(t *testing.T) {
	m, _ := newTestManager()
	func() {
		defer m.RecoverAndShutdown()
	}()
	assert.False(t, m.IsShutdown())
}

func TestShutdownOnSignal(t *testing.T) {
	m, _ := newTestManager()
	c := provideFake(m, "db", nil)
	_, err := m.Acquire(context.Background(), "db")
	require.NoError(t, err)

	exited := make(chan int, 1)
	stop := m.ShutdownOnSignal(func(code int) { exited <- code }, syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case code := <-exited:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("signal handler did not run")
	}
	assert.Equal(t, int32(1), c.closes.Load())

	// Normal completion path after the signal is a no-op.
	m.Shutdown()
	assert.Equal(t, int32(1), c.closes.Load())
}

func TestShutdownOnSignalStopIsIdempotent(t *testing.T) {
	m, _ := newTestManager()
	stop := m.ShutdownOnSignal(func(int) {}, syscall.SIGUSR2)
	stop()
	assert.NotPanics(t, stop)
}
