package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/arminwolf/ctm-estimator/internal/aggregate"
	"github.com/arminwolf/ctm-estimator/internal/tm"
)

// Run is one completed driver run as recorded in run_history.
type Run struct {
	ID                int64
	NStates           int
	MaxRuntimeSteps   uint64
	Enumeration       tm.Mode
	BlankSymbol       tm.Symbol
	HaltingTotal      uint64
	NonHaltingTotal   uint64
	DistinctOutputs   int
	CompletionApplied bool
	StartedAt         time.Time
	FinishedAt        time.Time
}

// Repo records and lists run summaries.
type Repo struct {
	db *DB
}

func NewRepo(db *DB) *Repo {
	return &Repo{db: db}
}

// RecordRun inserts a summary row for one finished run.
func (r *Repo) RecordRun(ctx context.Context, a *aggregate.Aggregator, maxSteps uint64, mode tm.Mode, blank tm.Symbol, startedAt, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_history
			(n_states, max_runtime_steps, enumeration, blank_symbol, halting_total,
			 non_halting_total, distinct_outputs, completion_applied, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		a.NStates, maxSteps, string(mode), int(blank), a.TotalHalting,
		a.NonHaltingTotal(), len(a.Counts), a.CompletionApplied, startedAt, finishedAt,
	)
	if err != nil {
		return fmt.Errorf("runstore: record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs for n_states, newest first.
func (r *Repo) ListRuns(ctx context.Context, nStates int, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, n_states, max_runtime_steps, enumeration, blank_symbol, halting_total,
		       non_halting_total, distinct_outputs, completion_applied, started_at, finished_at
		FROM run_history
		WHERE n_states = $1
		ORDER BY finished_at DESC
		LIMIT $2
	`, nStates, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var blank int
		var mode string
		if err := rows.Scan(
			&run.ID, &run.NStates, &run.MaxRuntimeSteps, &mode, &blank, &run.HaltingTotal,
			&run.NonHaltingTotal, &run.DistinctOutputs, &run.CompletionApplied, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("runstore: scan run: %w", err)
		}
		run.Enumeration = tm.Mode(mode)
		run.BlankSymbol = tm.Symbol(blank)
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: rows: %w", err)
	}
	return out, nil
}
