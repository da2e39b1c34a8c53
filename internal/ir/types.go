package ir

import "strings"

// CallExpression is one parsed `Service.function(args)` request.
// Immutable once parsed.
type CallExpression struct {
	ServiceName  string    `json:"service_name"`
	FunctionName string    `json:"function_name"`
	Args         []Literal `json:"-"`
	RawText      string    `json:"raw_text"` // Kept for error and skip reporting
}

// Signature renders the call as `Service.function(a, b)`.
// Arguments use Literal.String, so Text arguments appear without quotes.
func (c CallExpression) Signature() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.ServiceName + "." + c.FunctionName + "(" + strings.Join(parts, ", ") + ")"
}

// Status is the terminal state of one call in a batch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Severity is the batch-level outcome used to decide escalation.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// SkipMessage is appended to the raw text of every call after a failure.
const SkipMessage = "Skipped due to previous error"

// Outcome records what happened to the call at Index.
type Outcome struct {
	Index      int            `json:"index"`
	Expression CallExpression `json:"expression"`
	Status     Status         `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Seq        int64          `json:"seq"` // Logical clock value at record time
}

// Batch is the full set of calls supplied to one run, under one tag.
//
// INVARIANTS:
//   - len(Outcomes) == len(RawExpressions) once the run reaches finalization
//   - every outcome after the first Failure is Skipped
//   - Severity == SeverityError iff some outcome is a Failure
type Batch struct {
	ID             string    `json:"id"`
	Tag            string    `json:"tag"`
	RawExpressions []string  `json:"raw_expressions"`
	Outcomes       []Outcome `json:"outcomes"`
	Severity       Severity  `json:"severity"`
}

// Failed reports whether any outcome in the batch is a Failure.
func (b *Batch) Failed() bool {
	for _, o := range b.Outcomes {
		if o.Status == StatusFailure {
			return true
		}
	}
	return false
}

// NotificationAttempt is one webhook delivery attempt. Never persisted.
type NotificationAttempt struct {
	AttemptNumber int  `json:"attempt_number"`
	Succeeded     bool `json:"succeeded"`
}
