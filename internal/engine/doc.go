// Package engine implements the batch execution orchestrator.
//
// A run takes a tag and an ordered list of raw call expressions and drives
// them strictly sequentially:
//
//  1. Every expression is parsed and its service authorized before anything
//     runs. An unauthorized service aborts the whole run with
//     *registry.UnauthorizedServiceError and no report.
//  2. Calls are invoked in order, each fully awaited. The first failure
//     (parse error, unknown service implementation, unknown function, error
//     or panic inside the operation) is recorded as a Failure and every
//     later call is recorded as Skipped without being invoked.
//  3. Finalization always runs once the loop ends: journal the batch,
//     release shared resources, render the report, notify, then wait the
//     grace interval.
//
// INVARIANTS:
//   - exactly one outcome per expression, in expression order
//   - nothing after the first Failure is ever invoked
//   - batch severity is Error iff some outcome is a Failure
//
// Outcomes are stamped with a logical seq from Clock; wall time is only used
// for the journal's started_at column.
package engine
