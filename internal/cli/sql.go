package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/jsonapiq/internal/querysql"
)

// SQLOptions holds flags for the sql command.
type SQLOptions struct {
	*RootOptions
	Dialect string
}

// SQLOutput is the success payload of the sql command.
type SQLOutput struct {
	Dialect querysql.Dialect `json:"dialect"`
	SQL     string           `json:"sql"`
	Args    []any            `json:"args"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SQLOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sql <resource> <query>",
		Short: "Compile a query string and render it as SQL",
		Long: `Compile a raw query string and render the query spec as a
parameterised SELECT for the chosen dialect.

Includes become joins. The foreign key of an included relation defaults
to <parent>_id referencing the parent's id; override it per relation in
the config file.

Exit codes:
  0 - SQL rendered
  1 - Query rejected, or the spec uses a construct SQL rendering cannot express
  2 - Command error

Examples:
  jsonapiq sql users 'filter[users][age]=>18&include=posts'
  jsonapiq sql users 'limit=10&offset=20' --dialect sqlserver`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dialect, "dialect", string(querysql.SQLite), "SQL dialect (sqlite|postgres|sqlserver)")

	return cmd
}

func runSQL(ctx context.Context, opts *SQLOptions, resource, rawQuery string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	dialect, err := querysql.ParseDialect(opts.Dialect)
	if err != nil {
		return outputCommandError(formatter, ErrCodeUnsupported, err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputCommandError(formatter, ErrCodeConfig, err)
	}

	result, err := opts.compileQuery(ctx, cfg, opts.newLogger(formatter.GetErrWriter()), resource, rawQuery)
	if err != nil {
		return outputCommandError(formatter, ErrCodeInternal, err)
	}
	formatter.TraceID = result.PassID
	if result.rejected() {
		return outputRejected(formatter, result, "")
	}

	root := cfg.RemapFunc()(resource)
	sql, args, err := querysql.NewSQLCompiler(dialect, cfg).Compile(root, result.Spec)
	if err != nil {
		_ = formatter.Error(ErrCodeUnsupported, err.Error(), nil)
		return WrapExitError(ExitFailure, "cannot render SQL", err)
	}
	if args == nil {
		args = []any{}
	}

	if formatter.IsJSON() {
		return formatter.Success(SQLOutput{Dialect: dialect, SQL: sql, Args: args})
	}

	w := formatter.Writer
	fmt.Fprintln(w, sql)
	if len(args) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Args:")
		for i, a := range args {
			fmt.Fprintf(w, "  %d: %#v\n", i+1, a)
		}
	}
	return nil
}
