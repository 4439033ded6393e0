package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/roach88/nback/internal/export"
	"github.com/roach88/nback/internal/results"
	"github.com/roach88/nback/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	NBack int
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Runs   []store.RunInfo `json:"runs"`
	Advice *results.Advice `json:"advice,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived runs",
		Long: `List archived runs, newest first.

With --n-back, only runs at that level are listed and the level advice
for the recent series is printed.

Example:
  nback history
  nback history --n-back 2 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.NBack, "n-back", "n", 0, "only runs at this level, with advice")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	runs, err := s.store.List(ctx)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeArchive, "failed to list runs", err)
	}

	result := HistoryResult{Runs: runs}
	if opts.NBack > 0 {
		filtered := []store.RunInfo{}
		for _, r := range runs {
			if r.NBack == opts.NBack {
				filtered = append(filtered, r)
			}
		}
		result.Runs = filtered

		th := s.cfg.Thresholds()
		accuracies, err := s.store.History(ctx, opts.NBack, max(th.FallbackCount, 1))
		if err != nil {
			return s.out.Fail(ExitCommandError, ErrCodeArchive, "failed to read level history", err)
		}
		advice := results.AdviseHistory(accuracies, opts.NBack, th)
		result.Advice = &advice
	}

	if s.out.JSON() {
		return s.out.Success(result)
	}

	w := s.out.Writer
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No archived runs.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tLEVEL\tTRIALS\tACCURACY")
	for _, r := range result.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%d-back\t%d/%d\t%d%%\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.NBack, r.CompletedTrials, r.TotalTrials, r.Accuracy)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if result.Advice != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, adviceText(*result.Advice))
	}
	return nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an archived run",
		Long: `Show the summary and the per-trial log of an archived run.

Example:
  nback show 0192a3b4-c5d6-7e8f-9012-3456789abcde
  nback show 0192a3b4-c5d6-7e8f-9012-3456789abcde --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	rec, err := s.store.Get(cmd.Context(), id)
	if err != nil {
		return archiveLookupError(s.out, id, err)
	}

	if s.out.JSON() {
		return s.out.Success(rec)
	}
	return export.WriteText(s.out.Writer, rec, language.English)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete an archived run",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDelete(opts *RootOptions, id string, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.store.Delete(cmd.Context(), id); err != nil {
		return archiveLookupError(s.out, id, err)
	}

	if s.out.JSON() {
		return s.out.Success(map[string]string{"deleted": id})
	}
	fmt.Fprintf(s.out.Writer, "Deleted %s\n", id)
	return nil
}

// archiveLookupError reports a failed lookup of run id.
func archiveLookupError(out *OutputFormatter, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	return out.Fail(ExitCommandError, ErrCodeArchive, "archive error", err)
}
