package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/jsonapiq/internal/config"
)

// Validation error codes.
const (
	ErrCodeConfigNotFound    = "E_CONFIG_NOT_FOUND"
	ErrCodeConfigFormat      = "E_CONFIG_FORMAT"
	ErrCodeConfigInvalid     = "E_CONFIG_INVALID"
	ErrCodeConfigSchema      = "E_CONFIG_SCHEMA"
	ErrCodeConfigUnreachable = "E_CONFIG_UNREACHABLE"
)

// ConfigIssue is one problem found in a config file.
type ConfigIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool          `json:"valid"`
	Resources int           `json:"resources"`
	Aliases   int           `json:"aliases"`
	Relations int           `json:"relations"`
	Errors    []ConfigIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a compiler config file",
		Long: `Validate a YAML or CUE compiler config file without compiling a query.

YAML files reject unknown keys. CUE files are unified with the config
schema, so constraint violations are reported with their positions.

Exit codes:
  0 - Config valid
  1 - Config invalid
  2 - Command error (file not found, unsupported extension)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := config.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return outputValidateError(formatter, ErrCodeConfigNotFound, fmt.Sprintf("config file not found: %s", path))
	case errors.Is(err, config.ErrUnsupportedFormat):
		return outputValidateError(formatter, ErrCodeConfigFormat, err.Error())
	case err != nil:
		return outputValidationErrors(formatter, issuesFrom(err))
	}

	formatter.VerboseLog("Loaded %s", path)
	issues := unreachableAliases(cfg)
	if len(issues) > 0 {
		return outputValidationErrors(formatter, issues)
	}

	result := ValidationResult{
		Valid:     true,
		Resources: len(cfg.Resources),
		Aliases:   len(cfg.Remap),
		Relations: len(cfg.Relations),
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid (%d resource(s), %d alias(es), %d relation(s))\n",
		path, result.Resources, result.Aliases, result.Relations)
	return nil
}

// issuesFrom converts a load error into issues, one per CUE error when
// the error came from CUE evaluation.
func issuesFrom(err error) []ConfigIssue {
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		return []ConfigIssue{{Code: ErrCodeConfigInvalid, Field: verr.Field, Message: verr.Message}}
	}

	var cerr cueerrors.Error
	if errors.As(err, &cerr) {
		var issues []ConfigIssue
		for _, e := range cueerrors.Errors(cerr) {
			issue := ConfigIssue{Code: ErrCodeConfigSchema, Message: e.Error()}
			if path := e.Path(); len(path) > 0 {
				issue.Field = strings.Join(path, ".")
			}
			if pos := e.Position(); pos.IsValid() {
				issue.Line = pos.Line()
				issue.Column = pos.Column()
			}
			issues = append(issues, issue)
		}
		return issues
	}

	return []ConfigIssue{{Code: ErrCodeConfigInvalid, Message: err.Error()}}
}

// unreachableAliases reports aliases whose target is itself an alias.
// Remapping is applied once, so such an alias never reaches a resource.
func unreachableAliases(cfg config.Config) []ConfigIssue {
	aliases := make([]string, 0, len(cfg.Remap))
	for alias := range cfg.Remap {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	var issues []ConfigIssue
	for _, alias := range aliases {
		target := cfg.Remap[alias]
		if _, chained := cfg.Remap[target]; chained && target != alias {
			issues = append(issues, ConfigIssue{
				Code:    ErrCodeConfigUnreachable,
				Field:   "remap." + alias,
				Message: fmt.Sprintf("target %q is itself an alias; remapping is not transitive", target),
			})
		}
	}
	return issues
}

// outputValidateError outputs a single command-level error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every issue found.
func outputValidationErrors(formatter *OutputFormatter, issues []ConfigIssue) error {
	if formatter.IsJSON() {
		failure := &CLIError{Code: issues[0].Code, Message: issues[0].Message}
		if err := formatter.Report(ValidationResult{Valid: false, Errors: issues}, failure); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d:%d\n", issue.Line, issue.Column)
		}
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", issue.Code, issue.Field, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
