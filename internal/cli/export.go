package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/nback/internal/export"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	As     string
	Output string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export an archived run as CSV or text",
		Long: `Export an archived run.

The file is named nback_test_<id>.csv (or .txt) in the working directory
unless -o is given. Use -o - to write to stdout.

Example:
  nback export 0192a3b4-c5d6-7e8f-9012-3456789abcde
  nback export 0192a3b4-c5d6-7e8f-9012-3456789abcde --as text -o report.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", "csv", "export format (csv|text)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output path, - for stdout")

	return cmd
}

func runExport(opts *ExportOptions, id string, cmd *cobra.Command) error {
	format, err := export.ParseFormat(opts.As)
	if err != nil {
		out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		return out.Fail(ExitCommandError, ErrCodeInvalidArgs, "invalid --as", err)
	}

	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rec, err := s.store.Get(cmd.Context(), id)
	if err != nil {
		return archiveLookupError(s.out, id, err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, rec, format); err != nil {
		return s.out.Fail(ExitFailure, ErrCodeGeneric, "failed to render export", err)
	}

	if opts.Output == "-" {
		_, err := s.out.Writer.Write(buf.Bytes())
		return err
	}

	path := opts.Output
	if path == "" {
		path = export.FileName(rec.ID, format)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeWriteFailed, "failed to write export", err)
	}

	if s.out.JSON() {
		return s.out.Success(map[string]string{"id": rec.ID, "format": string(format), "path": path})
	}
	fmt.Fprintf(s.out.Writer, "Exported %s to %s\n", rec.ID, path)
	return nil
}
