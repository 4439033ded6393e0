package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/nback/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	File   string                   `json:"file"`
	Config *config.Config           `json:"config,omitempty"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a config file",
		Long: `Validate a config file against the configuration schema.

Every out-of-range or mistyped value is reported with its field path.
Environment overrides (NBACK_*) are applied, so the result matches what
"nback run --config <file>" would use.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(config.Options{File: file})
	if err != nil {
		var verrs *config.Errors
		if errors.As(err, &verrs) {
			return outputValidationErrors(formatter, file, verrs.List)
		}
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, File: file, Config: cfg})
	}

	fmt.Fprintf(formatter.Writer, "✓ %s is valid\n", file)
	formatter.VerboseLog("test: %d-back, %d trials, %gs per trial, %g%% matches",
		cfg.Test.NBack, cfg.Test.TotalTrials, cfg.Test.SecondsPerTrial, cfg.Test.MatchPercentage)
	formatter.VerboseLog("archive: %s", cfg.Archive.Path)
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, file string, errs []config.ValidationError) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				File:   file,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "✗ %s is invalid\n", file)
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", e.Code, e.Field, e.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
