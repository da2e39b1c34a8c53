package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/roach88/cronrun/internal/callexpr"
	"github.com/roach88/cronrun/internal/ir"
	"github.com/roach88/cronrun/internal/registry"
	"github.com/roach88/cronrun/internal/report"
)

// DefaultGrace is the wait after notification before the run returns.
const DefaultGrace = 3 * time.Second

// Journal records finished batches. Implemented by *store.Store.
type Journal interface {
	WriteRun(ctx context.Context, batch *ir.Batch, startedAt time.Time) error
}

// JournalOpener returns the journal for this run, opening it if needed.
type JournalOpener func(ctx context.Context) (Journal, error)

// Notifier delivers rendered reports. Implemented by *notify.Channel.
type Notifier interface {
	Notify(ctx context.Context, message string, severity ir.Severity) []ir.NotificationAttempt
}

// Releaser tears down shared resources. Implemented by *lifecycle.Manager.
type Releaser interface {
	Shutdown()
}

// Engine is the execution orchestrator. One Engine handles one batch at a
// time; Run must not be called concurrently.
type Engine struct {
	registry *registry.Registry
	notifier Notifier
	releaser Releaser
	journal  JournalOpener
	runIDs   RunIDGenerator
	clock    *Clock
	logger   *slog.Logger

	strictNesting bool
	callTimeout   time.Duration
	grace         time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the notification channel.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithReleaser sets what finalization shuts down.
func WithReleaser(r Releaser) Option {
	return func(e *Engine) { e.releaser = r }
}

// WithJournal enables recording each batch before resources are released.
func WithJournal(open JournalOpener) Option {
	return func(e *Engine) { e.journal = open }
}

// WithRunIDGenerator overrides the default UUIDv7 run IDs.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithClock sets the logical clock used for outcome seq values.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStrictNesting rejects argument lists with unbalanced brackets.
func WithStrictNesting(strict bool) Option {
	return func(e *Engine) { e.strictNesting = strict }
}

// WithCallTimeout bounds each invocation through its context.
// Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// WithGrace sets the wait at the end of finalization.
func WithGrace(d time.Duration) Option {
	return func(e *Engine) { e.grace = d }
}

// WithSleep replaces the grace-interval sleeper.
func WithSleep(f func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = f }
}

// WithNow replaces the wall clock used for started_at.
func WithNow(f func() time.Time) Option {
	return func(e *Engine) { e.now = f }
}

// New creates an Engine dispatching through reg.
func New(reg *registry.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: reg,
		runIDs:   UUIDv7Generator{},
		clock:    NewClock(),
		grace:    DefaultGrace,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// prepared is one expression after the pre-flight pass.
type prepared struct {
	raw          string
	expr         ir.CallExpression
	parseErr     error
	decodeErrors []error
}

// Run executes one batch and finalizes it.
//
// The only error returned is *registry.UnauthorizedServiceError, in which
// case no call has run, no finalization happened and the batch is nil.
// Every other failure is recorded in the returned batch.
func (e *Engine) Run(ctx context.Context, tag string, raw []string) (*ir.Batch, error) {
	started := e.now()

	calls := e.prepare(raw)
	for _, c := range calls {
		if c.parseErr != nil {
			continue
		}
		if err := e.registry.Authorize(c.expr.ServiceName); err != nil {
			e.logger.Error("unauthorized service, aborting run",
				"tag", tag,
				"service", c.expr.ServiceName,
				"call", c.raw,
			)
			e.notify(ctx, fmt.Sprintf("[%s] %s", ir.StatusFailure, err.Error()), ir.SeverityError)
			return nil, err
		}
	}

	rawCopy := make([]string, len(raw))
	copy(rawCopy, raw)
	batch := &ir.Batch{
		ID:             e.runIDs.Generate(),
		Tag:            tag,
		RawExpressions: rawCopy,
		Outcomes:       make([]ir.Outcome, 0, len(raw)),
		Severity:       ir.SeverityInfo,
	}
	e.logger.Info("run starting", "tag", tag, "run_id", batch.ID, "calls", len(raw))

	failed := false
	for i, c := range calls {
		if failed {
			batch.Outcomes = append(batch.Outcomes, ir.Outcome{
				Index:      i,
				Expression: c.expr,
				Status:     ir.StatusSkipped,
				Detail:     c.raw + ": " + ir.SkipMessage,
				Seq:        e.clock.Next(),
			})
			continue
		}

		outcome := e.execute(ctx, i, c)
		batch.Outcomes = append(batch.Outcomes, outcome)
		if outcome.Status == ir.StatusFailure {
			failed = true
			batch.Severity = ir.SeverityError
		}
	}

	e.finalize(ctx, batch, started)
	return batch, nil
}

// prepare parses every expression up front so authorization can reject the
// run before any call executes. Decode errors are held back and reported
// when their call is reached.
func (e *Engine) prepare(raw []string) []prepared {
	calls := make([]prepared, len(raw))
	for i, text := range raw {
		c := &calls[i]
		c.raw = text
		p := callexpr.New(
			callexpr.WithStrictNesting(e.strictNesting),
			callexpr.WithDecodeErrorHandler(func(_ string, err error) {
				c.decodeErrors = append(c.decodeErrors, err)
			}),
		)
		c.expr, c.parseErr = p.Parse(text)
	}
	return calls
}

// execute runs one call that is not short-circuited and returns its outcome.
func (e *Engine) execute(ctx context.Context, index int, c prepared) ir.Outcome {
	outcome := ir.Outcome{Index: index, Expression: c.expr}

	if c.parseErr != nil {
		e.logger.Error("call expression rejected", "index", index, "call", c.raw, "error", c.parseErr)
		e.notify(ctx, fmt.Sprintf("[%s] %s", ir.StatusFailure, c.parseErr.Error()), ir.SeverityError)
		outcome.Status = ir.StatusFailure
		outcome.Detail = c.raw + ": " + c.parseErr.Error()
		outcome.Seq = e.clock.Next()
		return outcome
	}

	for _, derr := range c.decodeErrors {
		e.logger.Warn("argument decoded as text", "index", index, "call", c.raw, "error", derr)
		e.notify(ctx, fmt.Sprintf("[%s] %s", ir.StatusFailure, derr.Error()), ir.SeverityError)
	}

	sig := c.expr.Signature()
	e.logger.Debug("invoking", "index", index, "service", c.expr.ServiceName, "function", c.expr.FunctionName)

	if err := e.invoke(ctx, c.expr); err != nil {
		e.logger.Error("call failed",
			"index", index,
			"service", c.expr.ServiceName,
			"function", c.expr.FunctionName,
			"error", err,
		)
		outcome.Status = ir.StatusFailure
		outcome.Detail = sig + ": " + failureMessage(err)
		outcome.Seq = e.clock.Next()
		return outcome
	}

	e.logger.Info("call succeeded", "index", index, "call", sig)
	outcome.Status = ir.StatusSuccess
	outcome.Detail = sig
	outcome.Seq = e.clock.Next()
	return outcome
}

// invoke resolves and runs one operation, converting a panic into an
// *InvocationError carrying the stack.
func (e *Engine) invoke(ctx context.Context, expr ir.CallExpression) (err error) {
	op, err := e.registry.Operation(expr.ServiceName, expr.FunctionName)
	if err != nil {
		return err
	}

	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &InvocationError{
				Service:  expr.ServiceName,
				Function: expr.FunctionName,
				Err:      fmt.Errorf("panic: %v", r),
				Stack:    string(debug.Stack()),
			}
		}
	}()

	if err := op(ctx, expr.Args...); err != nil {
		return &InvocationError{Service: expr.ServiceName, Function: expr.FunctionName, Err: err}
	}
	return nil
}

// finalize journals the batch, releases resources, renders and sends the
// report, then waits the grace interval. Nothing here can fail the run.
func (e *Engine) finalize(ctx context.Context, batch *ir.Batch, started time.Time) {
	if e.journal != nil {
		e.record(ctx, batch, started)
	}

	if e.releaser != nil {
		e.releaser.Shutdown()
	}

	e.notify(ctx, report.Render(batch), batch.Severity)

	e.logger.Info("run finished",
		"tag", batch.Tag,
		"run_id", batch.ID,
		"severity", string(batch.Severity),
		"last_seq", e.clock.Current(),
	)

	if e.grace > 0 {
		if err := e.sleep(ctx, e.grace); err != nil {
			e.logger.Debug("grace wait interrupted", "error", err)
		}
	}
}

func (e *Engine) record(ctx context.Context, batch *ir.Batch, started time.Time) {
	j, err := e.journal(ctx)
	if err != nil {
		e.logger.Error("journal unavailable", "run_id", batch.ID, "error", err)
		return
	}
	if err := j.WriteRun(ctx, batch, started); err != nil {
		e.logger.Error("journal write failed", "run_id", batch.ID, "error", err)
		return
	}
	e.logger.Debug("run journaled", "run_id", batch.ID)
}

func (e *Engine) notify(ctx context.Context, message string, severity ir.Severity) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, message, severity)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
