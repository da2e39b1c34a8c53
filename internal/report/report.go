// Package report renders a batch's outcomes into the single text artifact
// handed to the notification channel.
//
// The report is a header line naming the batch tag followed by one line per
// outcome in call order:
//
//	*[cron] CronJob run(daily)*
//	[success] OrderService.sync(10)
//	[failure] UserService.ping(): timeout
//	[skipped] AuditService.flush(): Skipped due to previous error
//
// Lines are joined with "\n" and the report has no trailing newline.
package report

import (
	"fmt"
	"strings"

	"github.com/roach88/cronrun/internal/ir"
)

// Header returns the first report line for tag.
func Header(tag string) string {
	return fmt.Sprintf("*[cron] CronJob run(%s)*", tag)
}

// Line renders one outcome.
//
// Success lines fall back to the call signature when Detail is empty;
// skipped lines fall back to the raw call text plus ir.SkipMessage.
func Line(o ir.Outcome) string {
	detail := o.Detail
	if detail == "" {
		switch o.Status {
		case ir.StatusSkipped:
			detail = o.Expression.RawText + ": " + ir.SkipMessage
		default:
			detail = o.Expression.Signature()
		}
	}
	return fmt.Sprintf("[%s] %s", o.Status, detail)
}

// Lines returns the header followed by one line per outcome.
func Lines(b *ir.Batch) []string {
	lines := make([]string, 0, len(b.Outcomes)+1)
	lines = append(lines, Header(b.Tag))
	for _, o := range b.Outcomes {
		lines = append(lines, Line(o))
	}
	return lines
}

// Render joins Lines with newlines.
func Render(b *ir.Batch) string {
	return strings.Join(Lines(b), "\n")
}
