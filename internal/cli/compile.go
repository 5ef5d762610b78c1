package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/jsonapiq/internal/canonical"
	"github.com/roach88/jsonapiq/internal/compiler"
	"github.com/roach88/jsonapiq/internal/config"
	"github.com/roach88/jsonapiq/internal/input"
	"github.com/roach88/jsonapiq/internal/queryspec"
	"github.com/roach88/jsonapiq/internal/store"
)

// Error codes for failures that are not compiler input errors.
const (
	ErrCodeQueryParse  = "E_QUERY_PARSE"
	ErrCodeConfig      = "E_CONFIG"
	ErrCodeStore       = "E_STORE"
	ErrCodeWriteFailed = "E_WRITE_FAILED"
	ErrCodeUnsupported = "E_UNSUPPORTED"
	ErrCodeInternal    = "E_INTERNAL"
	ErrCodeReplayDrift = "E_REPLAY_DRIFT"
	ErrCodeTestsFailed = "E_TEST_FAILED"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // spec output file path
	Record string // compile log database path
}

// CompileOutput is the success payload of the compile command.
type CompileOutput struct {
	Resource    string               `json:"resource"`
	Spec        *queryspec.QuerySpec `json:"spec"`
	Fingerprint string               `json:"fingerprint"`
	RecordID    string               `json:"record_id,omitempty"`
}

// compiledQuery is the outcome of one CLI compilation pass.
type compiledQuery struct {
	PassID      string
	Resource    string
	RawQuery    string
	Spec        *queryspec.QuerySpec
	SpecJSON    []byte
	Fingerprint string

	// Code and Err are set when the query was rejected.
	Code string
	Err  error
}

func (c *compiledQuery) rejected() bool { return c.Err != nil }

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <resource> <query>",
		Short: "Compile a query string to a query spec",
		Long: `Compile a raw query string for a default resource and print the
resulting query spec.

Exit codes:
  0 - Query compiled
  1 - Query rejected (unknown operator, malformed filter, ...)
  2 - Command error (unreadable config, database error, etc.)

Examples:
  jsonapiq compile users 'filter[users][age]=>18&sort=-createdAt'
  jsonapiq compile users 'include=posts.comments' --format json
  jsonapiq compile users 'limit=10' --record ./compile.db`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the spec JSON to this file")
	cmd.Flags().StringVar(&opts.Record, "record", "", "append the compilation to this SQLite compile log")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, resource, rawQuery string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCommandError(formatter, ErrCodeConfig, err)
	}

	result, err := opts.compileQuery(ctx, cfg, opts.newLogger(formatter.GetErrWriter()), resource, rawQuery)
	if err != nil {
		return outputCommandError(formatter, ErrCodeInternal, err)
	}
	formatter.TraceID = result.PassID
	formatter.VerboseLog("Compiled %s in pass %s", resource, result.PassID)

	var recordID string
	if opts.Record != "" {
		rec, err := recordCompilation(ctx, opts.Record, result)
		if err != nil {
			return outputCommandError(formatter, ErrCodeStore, err)
		}
		recordID = rec.ID
		formatter.VerboseLog("Recorded compilation %s (seq %d)", rec.ID, rec.Seq)
	}

	if result.rejected() {
		return outputRejected(formatter, result, recordID)
	}

	if opts.Output != "" {
		if err := writeSpecToFile(result.Spec, opts.Output); err != nil {
			return outputCommandError(formatter, ErrCodeWriteFailed, err)
		}
	}

	out := CompileOutput{
		Resource:    resource,
		Spec:        result.Spec,
		Fingerprint: result.Fingerprint,
		RecordID:    recordID,
	}
	if formatter.IsJSON() {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %s\n\n", resource)
	pretty, err := json.MarshalIndent(result.Spec, "", "  ")
	if err != nil {
		return outputCommandError(formatter, ErrCodeInternal, err)
	}
	fmt.Fprintln(w, string(pretty))
	fmt.Fprintf(w, "\nFingerprint: %s\n", result.Fingerprint)
	if recordID != "" {
		fmt.Fprintf(w, "Recorded: %s\n", recordID)
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "Wrote spec to %s\n", opts.Output)
	}
	return nil
}

// compileQuery runs one pass with a fresh pass ID. Input errors are
// reported in the result; the returned error is for anything else.
func (o *RootOptions) compileQuery(ctx context.Context, cfg config.Config, logger *slog.Logger, resource, rawQuery string) (*compiledQuery, error) {
	result := &compiledQuery{
		PassID:   compiler.UUIDv7Generator{}.Generate(),
		Resource: resource,
		RawQuery: rawQuery,
	}

	params, err := input.ParseQuery(rawQuery)
	if err != nil {
		result.Code = ErrCodeQueryParse
		result.Err = err
		return result, nil
	}

	spec, err := o.newCompiler(cfg, logger, result.PassID).Compile(ctx, params, resource)
	if err != nil {
		code, ok := queryspec.CodeOf(err)
		if !ok || !errors.Is(err, queryspec.ErrInvalidQuery) {
			return nil, err
		}
		result.Code = string(code)
		result.Err = err
		return result, nil
	}

	if result.SpecJSON, err = canonical.SpecJSON(spec); err != nil {
		return nil, err
	}
	if result.Fingerprint, err = canonical.Fingerprint(spec); err != nil {
		return nil, err
	}
	result.Spec = spec
	return result, nil
}

// recordCompilation appends result to the compile log at path.
func recordCompilation(ctx context.Context, path string, result *compiledQuery) (store.Compilation, error) {
	st, err := store.Open(path)
	if err != nil {
		return store.Compilation{}, err
	}
	defer st.Close()

	c := store.Compilation{
		Resource:        result.Resource,
		RawQuery:        result.RawQuery,
		InputHash:       canonical.InputFingerprint(result.RawQuery, result.Resource),
		CompilerVersion: compiler.Version,
	}
	if result.rejected() {
		c.ErrorCode = result.Code
		c.Error = result.Err.Error()
	} else {
		c.SpecJSON = string(result.SpecJSON)
		c.SpecHash = result.Fingerprint
	}
	return st.Append(ctx, c)
}

// outputRejected reports a rejected query (exit code 1).
func outputRejected(formatter *OutputFormatter, result *compiledQuery, recordID string) error {
	details := map[string]string{"resource": result.Resource}
	if recordID != "" {
		details["record_id"] = recordID
	}
	_ = formatter.Error(result.Code, result.Err.Error(), details)
	return WrapExitError(ExitFailure, "query rejected", result.Err)
}

// outputCommandError reports a command-level error (exit code 2).
func outputCommandError(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error(), nil)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return WrapExitError(ExitCommandError, code, err)
}

// writeSpecToFile writes the spec as indented JSON.
func writeSpecToFile(spec *queryspec.QuerySpec, filename string) error {
	// indented for readability; canonical JSON is used only for hashing
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling spec: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
