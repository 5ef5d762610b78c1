package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/jsonapiq/internal/canonical"
	"github.com/roach88/jsonapiq/internal/compiler"
	"github.com/roach88/jsonapiq/internal/config"
	"github.com/roach88/jsonapiq/internal/input"
	"github.com/roach88/jsonapiq/internal/queryspec"
	"github.com/roach88/jsonapiq/internal/querysql"
	"github.com/roach88/jsonapiq/internal/store"
)

// Harness runs scenarios against one compile log.
type Harness struct {
	store  *store.Store
	cfg    config.Config
	passID string
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory compile log:
//  1. compile the query with a fixed pass ID
//  2. record the compilation
//  3. replay the log, failing on drift
//  4. render SQL if the scenario expects it
//  5. compare expectations
//
// The returned error is non-nil only when the scenario could not run; a
// mismatch is reported through Result.Pass and Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := config.Config{}
	if scenario.Config != nil {
		cfg = *scenario.Config
	}

	h := &Harness{
		store:  st,
		cfg:    cfg,
		passID: "pass-" + scenario.Name,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	first, err := h.compile(ctx, scenario.Query, scenario.Resource)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result, err := newResult(h.passID, first)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	if err := h.recordAndReplay(ctx, scenario, first, result); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	if scenario.Expect.SQL != "" && first.spec != nil {
		h.render(scenario, first.spec, result)
	}

	for _, msg := range EvaluateExpect(result, scenario.Expect) {
		result.Failf("%s", msg)
	}
	return result, nil
}

// compile runs one pass. Input errors become a rejected outcome; any
// other error aborts the scenario.
func (h *Harness) compile(ctx context.Context, rawQuery, resource string) (outcome, error) {
	params, err := input.ParseQuery(rawQuery)
	if err != nil {
		return outcome{}, fmt.Errorf("parse query: %w", err)
	}

	c := compiler.New(h.cfg,
		compiler.WithLogger(h.logger),
		compiler.WithPassIDGenerator(compiler.NewFixedGenerator(h.passID)),
	)
	spec, err := c.Compile(ctx, params, resource)
	if err != nil {
		code, ok := queryspec.CodeOf(err)
		if !ok || !errors.Is(err, queryspec.ErrInvalidQuery) {
			return outcome{}, err
		}
		return outcome{errorCode: string(code), err: err.Error()}, nil
	}

	data, err := canonical.SpecJSON(spec)
	if err != nil {
		return outcome{}, err
	}
	hash, err := canonical.Fingerprint(spec)
	if err != nil {
		return outcome{}, err
	}
	return outcome{spec: spec, specJSON: string(data), hash: hash}, nil
}

// recordAndReplay appends the first outcome to the compile log, then
// replays the log. A drifting record fails the scenario.
func (h *Harness) recordAndReplay(ctx context.Context, scenario *Scenario, first outcome, result *Result) error {
	_, err := h.store.Append(ctx, store.Compilation{
		Resource:        scenario.Resource,
		RawQuery:        scenario.Query,
		InputHash:       canonical.InputFingerprint(scenario.Query, scenario.Resource),
		SpecJSON:        first.specJSON,
		SpecHash:        first.hash,
		ErrorCode:       first.errorCode,
		Error:           first.err,
		CompilerVersion: compiler.Version,
	})
	if err != nil {
		return err
	}

	report, err := h.store.Replay(ctx, store.ListOptions{}, func(ctx context.Context, rec store.Compilation) (store.Outcome, error) {
		again, err := h.compile(ctx, rec.RawQuery, rec.Resource)
		if err != nil {
			return store.Outcome{}, err
		}
		return store.Outcome{SpecHash: again.hash, ErrorCode: again.errorCode}, nil
	})
	if err != nil {
		return err
	}

	for _, d := range report.Drifts {
		result.Failf("replay drift: recorded (%s%s), recompiled (%s%s)",
			d.Compilation.SpecHash, d.Compilation.ErrorCode, d.Got.SpecHash, d.Got.ErrorCode)
	}
	h.logger.Info("scenario replayed", "run_id", report.RunID, "matched", report.Matched)
	return nil
}

func (h *Harness) render(scenario *Scenario, spec *queryspec.QuerySpec, result *Result) {
	dialect := querysql.SQLite
	if scenario.Dialect != "" {
		// validated on load
		dialect, _ = querysql.ParseDialect(scenario.Dialect)
	}

	resource := h.cfg.RemapFunc()(scenario.Resource)
	sql, args, err := querysql.NewSQLCompiler(dialect, h.cfg).Compile(resource, spec)
	if err != nil {
		result.Failf("render SQL: %v", err)
		return
	}
	result.SQL = sql
	result.Args = args
}
