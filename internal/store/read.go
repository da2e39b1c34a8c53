package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/cronrun/internal/ir"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// Run is a journaled batch plus its wall-clock start time.
type Run struct {
	Batch     ir.Batch  `json:"batch"`
	StartedAt time.Time `json:"started_at"`
}

// ListFilter narrows ListRuns. Zero values mean no restriction.
type ListFilter struct {
	Tag   string
	Limit int

	// Call keeps only runs containing this exact call: same service,
	// function and argument list (compared by ir.ArgsHash).
	Call *ir.CallExpression
}

// ReadRun returns one run with its outcomes ordered by index.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tag, severity, started_at
		FROM runs
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, err
	}

	if err := s.loadOutcomes(ctx, &run.Batch); err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns runs newest first, each with its outcomes.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	query := `SELECT id, tag, severity, started_at FROM runs`
	var (
		where []string
		args  []any
	)
	if filter.Tag != "" {
		where = append(where, `tag = ?`)
		args = append(args, filter.Tag)
	}
	if filter.Call != nil {
		argsHash, err := ir.ArgsHash(filter.Call.Args)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		where = append(where, `id IN (
			SELECT run_id FROM outcomes
			WHERE service = ? AND function = ? AND args_hash = ?
		)`)
		args = append(args, filter.Call.ServiceName, filter.Call.FunctionName, argsHash)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY started_at DESC, id COLLATE BINARY DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	// Close before loading outcomes: the store holds a single connection.
	rows.Close()

	for i := range runs {
		if err := s.loadOutcomes(ctx, &runs[i].Batch); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// loadOutcomes fills batch.Outcomes and batch.RawExpressions, ordered by index.
func (s *Store) loadOutcomes(ctx context.Context, batch *ir.Batch) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, raw_text, service, function, args, status, detail, seq
		FROM outcomes
		WHERE run_id = ?
		ORDER BY idx ASC
	`, batch.ID)
	if err != nil {
		return fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	batch.Outcomes = []ir.Outcome{}
	batch.RawExpressions = []string{}
	for rows.Next() {
		var (
			o        ir.Outcome
			status   string
			argsJSON string
		)
		if err := rows.Scan(
			&o.Index,
			&o.Expression.RawText,
			&o.Expression.ServiceName,
			&o.Expression.FunctionName,
			&argsJSON,
			&status,
			&o.Detail,
			&o.Seq,
		); err != nil {
			return fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = ir.Status(status)
		if o.Expression.Args, err = unmarshalArgs(argsJSON); err != nil {
			return fmt.Errorf("outcome %d: %w", o.Index, err)
		}
		batch.Outcomes = append(batch.Outcomes, o)
		batch.RawExpressions = append(batch.RawExpressions, o.Expression.RawText)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outcomes: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run       Run
		severity  string
		startedAt string
	)
	if err := row.Scan(&run.Batch.ID, &run.Batch.Tag, &severity, &startedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Batch.Severity = ir.Severity(severity)

	t, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.StartedAt = t
	return run, nil
}
