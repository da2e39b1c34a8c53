// Package notify delivers rendered batch reports.
//
// Every report is logged at Info. Reports for failed batches are also
// POSTed to a webhook as {"text": "..."} when notifications are enabled,
// with a bounded number of attempts. Delivery failure is logged and
// swallowed; Notify never returns an error.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	_ "time/tzdata" // timezone names resolve without a system zoneinfo

	"github.com/roach88/cronrun/internal/ir"
)

// Defaults applied by New for zero-valued Config fields.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 3 * time.Second
	DefaultTimeout    = 10 * time.Second
	DefaultTimezone   = "Asia/Seoul"
)

// timestampLayout matches en-US locale rendering, e.g. "10/19/2026, 3:04:05 PM".
const timestampLayout = "1/2/2006, 3:04:05 PM"

// Config controls webhook delivery.
type Config struct {
	Enabled    bool
	WebhookURL string
	MaxRetries int
	Backoff    Backoff
	Timeout    time.Duration
	Location   *time.Location
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Channel is the notification channel. Safe for sequential use by one run.
type Channel struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	sleep  SleepFunc
	now    func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(ch *Channel) { ch.client = c }
}

// WithLogger sets the log sink. Nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(ch *Channel) { ch.logger = l }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(f SleepFunc) Option {
	return func(ch *Channel) { ch.sleep = f }
}

// WithNow replaces the wall clock used for message timestamps.
func WithNow(f func() time.Time) Option {
	return func(ch *Channel) { ch.now = f }
}

// New creates a Channel, filling defaults for unset Config fields.
func New(cfg Config, opts ...Option) *Channel {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff == nil {
		cfg.Backoff = ConstantBackoff{Interval: DefaultRetryDelay}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Location == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		cfg.Location = loc
	}

	ch := &Channel{
		cfg:    cfg,
		client: &http.Client{},
		sleep:  Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ch)
	}
	if ch.logger == nil {
		ch.logger = slog.Default()
	}
	return ch
}

// Notify logs message and, for error severity with delivery enabled, POSTs
// it to the webhook until one attempt returns 200 or MaxRetries attempts
// have been made. The returned attempts are informational only.
func (c *Channel) Notify(ctx context.Context, message string, severity ir.Severity) []ir.NotificationAttempt {
	c.logger.Info(message, "severity", string(severity))

	if severity != ir.SeverityError || !c.cfg.Enabled || c.cfg.WebhookURL == "" {
		return nil
	}

	text := FormatMessage(c.now().In(c.cfg.Location), severity, message)
	attempts := make([]ir.NotificationAttempt, 0, c.cfg.MaxRetries)

	for n := 1; n <= c.cfg.MaxRetries; n++ {
		err := c.deliver(ctx, text)
		attempts = append(attempts, ir.NotificationAttempt{AttemptNumber: n, Succeeded: err == nil})
		if err == nil {
			return attempts
		}

		c.logger.Warn("webhook delivery failed",
			"attempt", n,
			"max_retries", c.cfg.MaxRetries,
			"error", err,
		)
		if n == c.cfg.MaxRetries {
			break
		}
		if err := c.sleep(ctx, c.cfg.Backoff.Delay(n)); err != nil {
			c.logger.Error("webhook retry aborted", "attempt", n, "error", err)
			return attempts
		}
	}

	c.logger.Error("webhook delivery gave up", "attempts", len(attempts))
	return attempts
}

// deliver performs one POST. Only HTTP 200 counts as success.
func (c *Channel) deliver(ctx context.Context, text string) error {
	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatMessage wraps a report in the webhook text envelope:
//
//	*[10/19/2026, 3:04:05 PM]* | *[error]* | <message>
func FormatMessage(ts time.Time, severity ir.Severity, message string) string {
	return fmt.Sprintf("*[%s]* | *[%s]* | %s", ts.Format(timestampLayout), severity, message)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
