package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/jsonapiq/internal/compiler"
	"github.com/roach88/jsonapiq/internal/store"
)

// ReplayOptions are the replay command's flags.
type ReplayOptions struct {
	*RootOptions
	Database string
	Resource string // optional - one resource only
	AfterSeq int64
	Limit    int
}

// ReplayDrift describes one recorded compilation whose outcome changed.
type ReplayDrift struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	Resource      string `json:"resource"`
	RawQuery      string `json:"raw_query"`
	RecordedHash  string `json:"recorded_hash,omitempty"`
	RecordedError string `json:"recorded_error,omitempty"`
	GotHash       string `json:"got_hash,omitempty"`
	GotError      string `json:"got_error,omitempty"`
	OlderCompiler bool   `json:"older_compiler,omitempty"`
}

// ReplayResult is the report of one replay run.
type ReplayResult struct {
	RunID   string        `json:"run_id"`
	Total   int           `json:"total"`
	Matched int           `json:"matched"`
	Drifts  []ReplayDrift `json:"drifts"`
}

// NewReplayCommand returns `jsonapiq replay`.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Recompile the compile log and report drift",
		Long: `Recompile every recorded query in seq order and compare each outcome
with what was recorded. A record drifts when its spec fingerprint or error
code changed. Each run is stored in the log under a fresh run ID.

Exit codes:
  0 - Every record matched
  1 - One or more records drifted
  2 - Command error (database not found, etc.)

Examples:
  jsonapiq replay --db ./compile.db
  jsonapiq replay --db ./compile.db --resource users
  jsonapiq replay --db ./compile.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite compile log (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Resource, "resource", "", "replay one resource only")
	cmd.Flags().Int64Var(&opts.AfterSeq, "after-seq", 0, "skip records with seq <= this value")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "replay at most this many records")

	return cmd
}

func runReplay(ctx context.Context, opts *ReplayOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	// Open would create an empty log
	if _, err := os.Stat(opts.Database); err != nil {
		return outputCommandError(formatter, ErrCodeStore, fmt.Errorf("database not found: %s", opts.Database))
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCommandError(formatter, ErrCodeConfig, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err)
	}
	defer st.Close()

	if stats, err := st.Stats(ctx); err == nil {
		formatter.VerboseLog("Compile log: %d record(s), %d rejected, %d distinct input(s), last seq %d, %d earlier replay run(s)",
			stats.Compilations, stats.Rejected, stats.Inputs, stats.LastSeq, stats.ReplayRuns)
	}

	logger := opts.newLogger(formatter.GetErrWriter())
	report, err := st.Replay(ctx, store.ListOptions{
		Resource: opts.Resource,
		AfterSeq: opts.AfterSeq,
		Limit:    opts.Limit,
	}, func(ctx context.Context, rec store.Compilation) (store.Outcome, error) {
		result, err := opts.compileQuery(ctx, cfg, logger, rec.Resource, rec.RawQuery)
		if err != nil {
			return store.Outcome{}, err
		}
		formatter.VerboseLog("Replayed seq %d (%s) in pass %s", rec.Seq, rec.Resource, result.PassID)
		return store.Outcome{SpecHash: result.Fingerprint, ErrorCode: result.Code}, nil
	})
	if err != nil {
		return outputCommandError(formatter, ErrCodeStore, err)
	}

	result := ReplayResult{
		RunID:   report.RunID,
		Total:   report.Total,
		Matched: report.Matched,
		Drifts:  make([]ReplayDrift, 0, len(report.Drifts)),
	}
	for _, d := range report.Drifts {
		result.Drifts = append(result.Drifts, ReplayDrift{
			ID:            d.Compilation.ID,
			Seq:           d.Compilation.Seq,
			Resource:      d.Compilation.Resource,
			RawQuery:      d.Compilation.RawQuery,
			RecordedHash:  d.Compilation.SpecHash,
			RecordedError: d.Compilation.ErrorCode,
			GotHash:       d.Got.SpecHash,
			GotError:      d.Got.ErrorCode,
			OlderCompiler: d.Compilation.CompilerVersion != compiler.Version,
		})
	}

	if formatter.IsJSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// outputReplayJSON reports drift as E_REPLAY_DRIFT with exit code 1.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	if len(result.Drifts) == 0 {
		return formatter.Report(result, nil)
	}
	if err := formatter.Report(result, &CLIError{
		Code:    ErrCodeReplayDrift,
		Message: fmt.Sprintf("%d of %d record(s) drifted", len(result.Drifts), result.Total),
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, "replay drift detected")
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Replay %s: %d record(s), %d matched\n", result.RunID, result.Total, result.Matched)

	for _, d := range result.Drifts {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "✗ seq %d %s %q\n", d.Seq, d.Resource, d.RawQuery)
		fmt.Fprintf(w, "  Recorded: %s\n", outcomeLabel(d.RecordedHash, d.RecordedError))
		fmt.Fprintf(w, "  Got:      %s\n", outcomeLabel(d.GotHash, d.GotError))
		if d.OlderCompiler {
			fmt.Fprintln(w, "  Note: recorded by a different compiler version")
		}
	}

	fmt.Fprintln(w)
	if len(result.Drifts) == 0 {
		fmt.Fprintln(w, "✓ No drift")
		return nil
	}
	fmt.Fprintln(w, "✗ Replay drift detected")
	return NewExitError(ExitFailure, "replay drift detected")
}

func outcomeLabel(hash, code string) string {
	if code != "" {
		return "rejected " + code
	}
	return "spec " + hash
}
