package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Outcome is the result of recompiling one recorded query.
type Outcome struct {
	SpecHash  string
	ErrorCode string
}

// RecompileFunc recompiles a recorded compilation.
type RecompileFunc func(ctx context.Context, c Compilation) (Outcome, error)

// Drift describes a recorded compilation whose replay outcome differs.
type Drift struct {
	Compilation Compilation
	Got         Outcome
}

// ReplayReport summarizes one replay run.
type ReplayReport struct {
	RunID   string
	Total   int
	Matched int
	Drifts  []Drift
}

// Replay recompiles every recorded compilation matching opts in seq order
// and persists one replay_results row per record under a fresh run ID.
//
// A record drifts when its recompiled spec hash or error code differs from
// what was recorded. An error from fn aborts the run; rows written before
// the failure stay.
func (s *Store) Replay(ctx context.Context, opts ListOptions, fn RecompileFunc) (ReplayReport, error) {
	records, err := s.ListCompilations(ctx, opts)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("replay: %w", err)
	}

	report := ReplayReport{RunID: uuid.Must(uuid.NewV7()).String()}
	for _, rec := range records {
		got, err := fn(ctx, rec)
		if err != nil {
			return report, fmt.Errorf("replay %s: %w", rec.ID, err)
		}

		drift := got.SpecHash != rec.SpecHash || got.ErrorCode != rec.ErrorCode
		if err := s.writeReplayResult(ctx, report.RunID, rec, got, drift); err != nil {
			return report, err
		}

		report.Total++
		if drift {
			report.Drifts = append(report.Drifts, Drift{Compilation: rec, Got: got})
		} else {
			report.Matched++
		}
	}
	return report, nil
}

func (s *Store) writeReplayResult(ctx context.Context, runID string, rec Compilation, got Outcome, drift bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replay_results
		(run_id, compilation_id, seq, spec_hash, error_code, drift)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		runID,
		rec.ID,
		rec.Seq,
		nullable(got.SpecHash),
		nullable(got.ErrorCode),
		drift,
	)
	if err != nil {
		return fmt.Errorf("write replay result: %w", err)
	}
	return nil
}

// ReplayDriftCount returns how many records drifted in a stored run.
func (s *Store) ReplayDriftCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM replay_results WHERE run_id = ? AND drift = 1`, runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count drift: %w", err)
	}
	return n, nil
}
