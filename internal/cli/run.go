package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/nback/internal/config"
	"github.com/roach88/nback/internal/engine"
	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/results"
	"github.com/roach88/nback/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	NBack      int
	Trials     int
	Seconds    float64
	Match      float64
	Seed       uint64
	NoFeedback bool
	NoSave     bool

	// EngineOptions are appended to the engine options (for testing).
	EngineOptions []engine.Option
}

// RunResult is the JSON payload printed when a run ends.
type RunResult struct {
	ID      string         `json:"id"`
	Config  model.Config   `json:"config"`
	Summary model.Summary  `json:"summary"`
	Advice  results.Advice `json:"advice"`
	Saved   bool           `json:"saved"`
}

const runHelp = `Controls: Enter or m = MATCH, p = pause/resume, r = results view, s = stop, q = quit`

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Take an N-back test in the terminal",
		Long: `Run an interactive N-back test.

Each trial shows one lit cell of the grid. Press Enter (or type m) when the
position matches the one shown N trials earlier. The finished run is saved
to the archive unless --no-save is given.

` + runHelp + `

With --format json every engine update is printed as one JSON object per
line, followed by the final result.

Example:
  nback run
  nback run --n-back 3 --trials 40 --seconds 2.5
  nback run --db ./progress.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.NBack, "n-back", "n", 0, "comparison lag (overrides test.n_back)")
	cmd.Flags().IntVar(&opts.Trials, "trials", 0, "number of trials (overrides test.total_trials)")
	cmd.Flags().Float64Var(&opts.Seconds, "seconds", 0, "response window in seconds (overrides test.seconds_per_trial)")
	cmd.Flags().Float64Var(&opts.Match, "match", 0, "target match percentage (overrides test.match_percentage)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "sequence seed (overrides test.seed)")
	cmd.Flags().BoolVar(&opts.NoFeedback, "no-feedback", false, "hide miss and false alarm feedback")
	cmd.Flags().BoolVar(&opts.NoSave, "no-save", false, "do not save the run to the archive")

	return cmd
}

// overrides maps the flags the user actually set to config keys.
func (o *RunOptions) overrides(cmd *cobra.Command) map[string]any {
	m := map[string]any{}
	flags := cmd.Flags()
	if flags.Changed("n-back") {
		m["test.n_back"] = o.NBack
	}
	if flags.Changed("trials") {
		m["test.total_trials"] = o.Trials
	}
	if flags.Changed("seconds") {
		m["test.seconds_per_trial"] = o.Seconds
	}
	if flags.Changed("match") {
		m["test.match_percentage"] = o.Match
	}
	if flags.Changed("seed") {
		m["test.seed"] = o.Seed
	}
	if o.NoFeedback {
		m["test.show_feedback"] = false
	}
	return m
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := opts.loadConfig(opts.overrides(cmd))
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	log, err := opts.newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "failed to create logger", err)
	}
	defer func() { _ = log.Sync() }()

	var st *store.Store
	if !opts.NoSave {
		st, err = store.Open(cfg.Archive.Path, store.WithLogger(log))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeArchive, "failed to open archive", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				log.Error("error closing archive", zap.Error(closeErr))
			}
		}()
	}

	engineOpts := []engine.Option{engine.WithLogger(log)}
	if cfg.Test.Seed != 0 {
		engineOpts = append(engineOpts, engine.WithSeed(cfg.Test.Seed))
	}
	engineOpts = append(engineOpts, opts.EngineOptions...)
	eng := engine.New(cfg.Model(), engineOpts...)
	defer eng.Close()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	out := &syncWriter{w: cmd.OutOrStdout()}
	r := &renderer{
		w:      out,
		json:   formatter.JSON(),
		eng:    eng,
		cfg:    cfg,
		log:    log,
		last:   -1,
		doneCh: make(chan struct{}),
	}
	go r.loop(eng.Updates())

	stopInput := make(chan struct{})
	defer close(stopInput)
	lines := readLines(cmd.InOrStdin(), stopInput)

	if !formatter.JSON() {
		fmt.Fprintf(out, "%d-back test, %d trials, %gs per trial\n", cfg.Test.NBack, cfg.Test.TotalTrials, cfg.Test.SecondsPerTrial)
		fmt.Fprintln(out, runHelp)
	}
	eng.Start()

loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("interrupted, stopping test")
			break loop
		case <-r.doneCh:
			break loop
		case line, ok := <-lines:
			if !ok || handleInput(eng, line, formatter) {
				break loop
			}
		}
	}

	eng.Stop()
	<-r.doneCh

	return finishRun(ctx, opts, cfg, eng.Record(), st, out, formatter)
}

// handleInput applies one line of user input and reports whether the user
// asked to quit.
func handleInput(eng *engine.Engine, line string, formatter *OutputFormatter) (quit bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "m", "match":
		eng.Respond()
	case "p", "pause", "resume":
		if eng.Phase() == model.PhasePaused {
			eng.Resume()
		} else {
			eng.Pause()
		}
	case "r", "results":
		if eng.Snapshot().ViewingResults {
			eng.BackToTest()
		} else {
			eng.ViewResults()
		}
	case "s", "stop":
		eng.Stop()
	case "q", "quit", "exit":
		return true
	default:
		fmt.Fprintln(formatter.GetErrWriter(), runHelp)
	}
	return false
}

// readLines forwards lines from r until EOF or until done is closed. A read
// already blocked on r stays blocked; the goroutine exits once it returns.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return ch
}

// finishRun prints the result, saves it and reports level advice.
func finishRun(ctx context.Context, opts *RunOptions, cfg *config.Config, rec model.RunRecord, st *store.Store, out io.Writer, formatter *OutputFormatter) error {
	th := cfg.Thresholds()
	advice := results.Advise(rec.Summary, rec.Config.NBack, th)
	saved := false

	if st != nil {
		if _, err := st.Save(ctx, rec); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeArchive, "failed to save run", err)
		}
		saved = true

		history, err := st.History(ctx, rec.Config.NBack, max(th.FallbackCount, 1))
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeArchive, "failed to read level history", err)
		}
		advice = results.AdviseHistory(history, rec.Config.NBack, th)
	}

	if formatter.JSON() {
		return formatter.Success(RunResult{
			ID:      rec.ID,
			Config:  rec.Config,
			Summary: rec.Summary,
			Advice:  advice,
			Saved:   saved,
		})
	}

	fmt.Fprintln(out)
	writeSummary(out, rec.Summary, rec.Config)
	fmt.Fprintln(out, adviceText(advice))
	if saved {
		fmt.Fprintf(out, "Saved as %s\n", rec.ID)
	}
	return nil
}

// writeSummary prints the summary block shared by run and the results view.
func writeSummary(w io.Writer, s model.Summary, cfg model.Config) {
	fmt.Fprintf(w, "Results: %d-back, %d/%d trials\n", cfg.NBack, s.CompletedTrials, cfg.TotalTrials)
	fmt.Fprintf(w, "  Hits: %d  Misses: %d  False alarms: %d  Correct rejections: %d\n",
		s.Hits, s.Misses, s.FalseAlarms, s.CorrectRejects)
	fmt.Fprintf(w, "  Accuracy: %d%%\n", s.Accuracy)
	if s.Hits > 0 {
		fmt.Fprintf(w, "  Average reaction time: %dms\n", s.AverageReactionTimeMs)
	}
}

func adviceText(a results.Advice) string {
	if a.Message != "" {
		return a.Message
	}
	return fmt.Sprintf("Keep practicing at %d-back.", a.NextNBack)
}

// renderer draws engine updates until the run completes.
type renderer struct {
	w    io.Writer
	json bool
	eng  *engine.Engine
	cfg  *config.Config
	log  *zap.Logger

	last    int // trial index drawn last
	paused  bool
	results bool
	message string

	doneCh chan struct{}
}

func (r *renderer) loop(q *engine.UpdateQueue) {
	defer close(r.doneCh)
	for range q.Wait() {
		for _, u := range q.Drain() {
			if r.render(u) {
				return
			}
		}
	}
}

// render draws one update and reports whether rendering is done: the run is
// complete or the JSON stream can no longer be written.
func (r *renderer) render(u engine.Update) (done bool) {
	if r.json {
		err := json.NewEncoder(r.w).Encode(struct {
			Event    *model.TrialEvent `json:"event,omitempty"`
			Snapshot *model.Snapshot   `json:"snapshot,omitempty"`
		}{u.Event, u.Snapshot})
		if err != nil {
			r.log.Error("failed to write update", zap.Error(err))
			return true
		}
		return u.Snapshot != nil && u.Snapshot.Phase == model.PhaseComplete
	}

	s := u.Snapshot
	if s == nil {
		return false
	}

	if s.VisiblePosition != nil && s.CurrentTrialIndex != r.last {
		r.last = s.CurrentTrialIndex
		fmt.Fprintln(r.w)
		if r.cfg.Test.ShowTrialNumber {
			fmt.Fprintf(r.w, "Trial %d/%d\n", s.CurrentTrialIndex+1, r.cfg.Test.TotalTrials)
		}
		writeGrid(r.w, r.cfg.Model().Cells(), r.cfg.Test.GridSize, *s.VisiblePosition)
	}

	if s.ErrorMessage != r.message {
		r.message = s.ErrorMessage
		if s.ErrorMessage != "" {
			fmt.Fprintf(r.w, "! %s\n", s.ErrorMessage)
		}
	}

	if s.IsPaused != r.paused {
		r.paused = s.IsPaused
		if s.IsPaused {
			fmt.Fprintln(r.w, "-- paused, p to resume --")
		} else {
			fmt.Fprintln(r.w, "-- resumed --")
		}
	}

	if s.ViewingResults != r.results {
		r.results = s.ViewingResults
		if s.ViewingResults {
			fmt.Fprintln(r.w)
			writeSummary(r.w, r.eng.Summary(), r.cfg.Model())
			fmt.Fprintln(r.w, "-- r to return to the test --")
		}
	}

	return s.Phase == model.PhaseComplete
}

// writeGrid draws a size x size grid with the cell at pos lit.
func writeGrid(w io.Writer, cells, size, pos int) {
	if size <= 0 {
		size = model.DefaultGridSize
	}
	var b strings.Builder
	for i := range cells {
		if i%size == 0 {
			b.WriteString("  ")
		}
		if i == pos {
			b.WriteString("#")
		} else {
			b.WriteString(".")
		}
		if i%size == size-1 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	io.WriteString(w, b.String())
}
