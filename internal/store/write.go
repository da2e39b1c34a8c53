package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/cronrun/internal/ir"
)

// WriteRun records a finished batch: one runs row and one outcomes row per
// call, in a single transaction.
//
// Uses ON CONFLICT DO NOTHING for idempotency: writing the same run twice
// leaves the journal unchanged. Outcome IDs are content-addressed from
// (run ID, index, raw text) via ir.OutcomeID. Each outcome also stores
// ir.ArgsHash of its arguments so ListRuns can find runs by call.
func (s *Store) WriteRun(ctx context.Context, batch *ir.Batch, startedAt time.Time) error {
	if batch.ID == "" {
		return fmt.Errorf("write run: batch has no ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, tag, severity, call_count, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		batch.ID,
		batch.Tag,
		string(batch.Severity),
		len(batch.Outcomes),
		startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	for _, o := range batch.Outcomes {
		id, err := ir.OutcomeID(batch.ID, o.Index, o.Expression.RawText)
		if err != nil {
			return fmt.Errorf("write run: outcome %d: %w", o.Index, err)
		}
		argsJSON, err := marshalArgs(o.Expression.Args)
		if err != nil {
			return fmt.Errorf("write run: outcome %d: %w", o.Index, err)
		}
		argsHash, err := ir.ArgsHash(o.Expression.Args)
		if err != nil {
			return fmt.Errorf("write run: outcome %d: %w", o.Index, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO outcomes
			(id, run_id, idx, raw_text, service, function, args, args_hash, status, detail, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`,
			id,
			batch.ID,
			o.Index,
			o.Expression.RawText,
			o.Expression.ServiceName,
			o.Expression.FunctionName,
			argsJSON,
			argsHash,
			string(o.Status),
			o.Detail,
			o.Seq,
		)
		if err != nil {
			return fmt.Errorf("write run: outcome %d: %w", o.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}
