// Package export renders a finished run as a downloadable report.
//
// Two formats are supported: CSV for spreadsheets and a fixed-width plain-text
// report. Both start with the summary block followed by the detailed log of
// outcome events; TRIAL_START and TRIAL_END are bookkeeping and never
// exported. Trial numbers are 1-based.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/roach88/nback/internal/model"
)

// Format is a report format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

const (
	dateLayout = "2006-01-02 15:04"
	timeLayout = "15:04:05.000"
)

// ParseFormat maps a format name to a Format. "txt" is accepted for text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or text)", s)
	}
}

// Extension returns the file extension of the format, without the dot.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return string(f)
}

// FileName returns the default file name of a report for run id.
func FileName(id string, f Format) string {
	return "nback_test_" + id + "." + f.Extension()
}

// Write renders rec in format f.
func Write(w io.Writer, rec model.RunRecord, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rec)
	case FormatText:
		return WriteText(w, rec, language.English)
	default:
		return fmt.Errorf("unknown export format %q", f)
	}
}

// WriteCSV renders rec as CSV.
func WriteCSV(w io.Writer, rec model.RunRecord) error {
	s := rec.Summary
	cw := csv.NewWriter(w)

	header := [][]string{
		{"N-Back Test Results"},
		{"Test Date", formatDate(s)},
		{"N-Back Level", strconv.Itoa(rec.Config.NBack)},
		{"Total Trials", strconv.Itoa(rec.Config.TotalTrials)},
		{"Accuracy", strconv.Itoa(s.Accuracy) + "%"},
		{"Hits", strconv.Itoa(s.Hits)},
		{"Misses", strconv.Itoa(s.Misses)},
		{"False Alarms", strconv.Itoa(s.FalseAlarms)},
		{"Correct Rejections", strconv.Itoa(s.CorrectRejects)},
		{"Average Reaction Time", strconv.Itoa(s.AverageReactionTimeMs) + "ms"},
	}
	if err := cw.WriteAll(header); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	// csv.Writer cannot emit an empty record.
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	rows := [][]string{
		{"Detailed Log"},
		{"Trial", "Time", "Event", "Position", "Is Match", "Correct", "Reaction Time"},
	}
	for _, ev := range rec.OutcomeEvents() {
		correct := ""
		if ev.Correct != nil {
			correct = strconv.FormatBool(*ev.Correct)
		}
		rt := ""
		if ev.ReactionTimeMs != nil {
			rt = strconv.Itoa(*ev.ReactionTimeMs)
		}
		rows = append(rows, []string{
			strconv.Itoa(ev.TrialIndex + 1),
			ev.Time.Format(timeLayout),
			string(ev.Type),
			strconv.Itoa(ev.Position),
			strconv.FormatBool(ev.IsMatch),
			correct,
			rt,
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing detailed log: %w", err)
	}
	return nil
}

// WriteText renders rec as a fixed-width plain-text report. Summary numbers
// are formatted for tag.
func WriteText(w io.Writer, rec model.RunRecord, tag language.Tag) error {
	s := rec.Summary
	p := message.NewPrinter(tag)
	b := &strings.Builder{}

	b.WriteString("N-Back Test Results\n")
	b.WriteString("===================\n\n")
	fmt.Fprintf(b, "Test Date: %s\n", formatDate(s))
	fmt.Fprintf(b, "N-Back Level: %s\n", p.Sprintf("%d", rec.Config.NBack))
	fmt.Fprintf(b, "Total Trials: %s\n", p.Sprintf("%d", rec.Config.TotalTrials))
	fmt.Fprintf(b, "Accuracy: %s%%\n", p.Sprintf("%d", s.Accuracy))
	fmt.Fprintf(b, "Hits: %s\n", p.Sprintf("%d", s.Hits))
	fmt.Fprintf(b, "Misses: %s\n", p.Sprintf("%d", s.Misses))
	fmt.Fprintf(b, "False Alarms: %s\n", p.Sprintf("%d", s.FalseAlarms))
	fmt.Fprintf(b, "Correct Rejections: %s\n", p.Sprintf("%d", s.CorrectRejects))
	fmt.Fprintf(b, "Average Reaction Time: %sms\n\n", p.Sprintf("%d", s.AverageReactionTimeMs))

	b.WriteString("Detailed Log\n")
	b.WriteString("===========\n\n")

	header := fmt.Sprintf("%-5s | %-12s | %-15s | %-8s | %-8s | %-7s | %s",
		"Trial", "Time", "Event", "Position", "Is Match", "Correct", "Reaction Time")
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("-", len(header)) + "\n")

	for _, ev := range rec.OutcomeEvents() {
		correct := "-"
		if ev.Correct != nil {
			correct = yesNo(*ev.Correct)
		}
		rt := "-"
		if ev.ReactionTimeMs != nil {
			rt = strconv.Itoa(*ev.ReactionTimeMs) + "ms"
		}
		fmt.Fprintf(b, "%-5d | %-12s | %-15s | %-8d | %-8s | %-7s | %s\n",
			ev.TrialIndex+1,
			ev.Time.Format(timeLayout),
			ev.Type,
			ev.Position,
			yesNo(ev.IsMatch),
			correct,
			rt,
		)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatDate(s model.Summary) string {
	if s.StartTime.IsZero() {
		return "N/A"
	}
	return s.StartTime.Format(dateLayout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
