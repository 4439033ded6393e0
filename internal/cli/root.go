package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/nback/internal/config"
	"github.com/roach88/nback/internal/logging"
	"github.com/roach88/nback/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	Database   string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nback CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nback",
		Short: "Spatial N-back working-memory test",
		Long: `nback runs the spatial N-back working-memory test in the terminal.

A position on a 3x3 grid lights up every few seconds. Answer MATCH when it
is the same position shown N trials earlier. Finished runs are archived so
progress at each level can be followed over time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./nback.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "archive database (overrides archive.path)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// loadConfig loads the configuration with the global flags and the given
// overrides applied.
func (o *RootOptions) loadConfig(overrides map[string]any) (*config.Config, error) {
	merged := make(map[string]any, len(overrides)+1)
	for k, v := range overrides {
		merged[k] = v
	}
	if o.Database != "" {
		merged["archive.path"] = o.Database
	}
	return config.Load(config.Options{File: o.ConfigFile, Overrides: merged})
}

// newLogger builds the logger for a command. --verbose lowers the console
// level to debug.
func (o *RootOptions) newLogger(cfg *config.Config, w io.Writer) (*zap.Logger, error) {
	lc := cfg.Logging
	if o.Verbose {
		lc.Level = "debug"
	}
	return logging.New(lc, w)
}

// session is the shared setup of the archive commands.
type session struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.Store
	out   *OutputFormatter
}

// openSession loads config, builds the logger and opens the archive.
// Failures are reported through the formatter.
func (o *RootOptions) openSession(cmd *cobra.Command) (*session, error) {
	out := newFormatter(o, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := o.loadConfig(nil)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	log, err := o.newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "failed to create logger", err)
	}

	out.VerboseLog("Opening archive %s", cfg.Archive.Path)
	st, err := store.Open(cfg.Archive.Path, store.WithLogger(log))
	if err != nil {
		_ = log.Sync()
		return nil, out.Fail(ExitCommandError, ErrCodeArchive, "failed to open archive", err)
	}
	return &session{cfg: cfg, log: log, store: st, out: out}, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.log.Error("error closing archive", zap.Error(err))
	}
	_ = s.log.Sync()
}
