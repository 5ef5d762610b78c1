package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/jsonapiq/internal/compiler"
	"github.com/roach88/jsonapiq/internal/config"
)

// RootOptions are the persistent flags shared by every subcommand.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // compiler config file (.yaml, .yml or .cue)
	Lenient    bool   // drop malformed limit/offset instead of rejecting
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

// EnvPrefix prefixes environment overrides: JSONAPIQ_FORMAT, JSONAPIQ_CONFIG...
const EnvPrefix = "JSONAPIQ"

// NewRootCommand creates the root command for the jsonapiq CLI.
//
// Global settings resolve flags first, then JSONAPIQ_* environment
// variables, then defaults.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "jsonapiq",
		Short: "jsonapiq - JSON:API query compiler",
		Long: `Compile JSON:API style query parameters (filter, include, fields,
sort, limit, offset) into a query specification for a relational engine.`,
		// main prints the returned error to stderr
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(v)
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("format", "text", "output format (json|text)")
	flags.StringP("config", "c", "", "compiler config file (.yaml, .yml, .cue)")
	flags.Bool("lenient", false, "ignore malformed limit/offset instead of rejecting the query")
	for _, name := range []string{"verbose", "format", "config", "lenient"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewSQLCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve copies the merged settings into opts.
func (o *RootOptions) resolve(v *viper.Viper) error {
	o.Verbose = v.GetBool("verbose")
	o.Format = v.GetString("format")
	o.ConfigPath = v.GetString("config")
	o.Lenient = v.GetBool("lenient")

	if !slices.Contains(ValidFormats, o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}
	return nil
}

// loadConfig loads the compiler config, or the zero Config when no path is
// set.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.ConfigPath == "" {
		return config.Config{}, nil
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// newLogger logs to w: debug when verbose, warnings otherwise.
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newCompiler builds a compiler whose single pass uses passID.
func (o *RootOptions) newCompiler(cfg config.Config, logger *slog.Logger, passID string) *compiler.Compiler {
	opts := []compiler.Option{
		compiler.WithLogger(logger),
		compiler.WithPassIDGenerator(compiler.NewFixedGenerator(passID)),
	}
	if o.Lenient {
		opts = append(opts, compiler.WithLenientPagination())
	}
	return compiler.New(cfg, opts...)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
