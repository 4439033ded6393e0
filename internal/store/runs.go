package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/nback/internal/model"
)

var (
	// ErrNotFound is returned when no run has the requested ID.
	ErrNotFound = errors.New("run not found")

	// ErrIncomplete is returned when saving a run that has not finished.
	ErrIncomplete = errors.New("run is not complete")
)

// timeLayout keeps sub-second precision and sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RunInfo is one row of the run listing.
type RunInfo struct {
	ID              string    `json:"id"`
	NBack           int       `json:"n_back"`
	TotalTrials     int       `json:"total_trials"`
	CompletedTrials int       `json:"completed_trials"`
	Accuracy        int       `json:"accuracy"`
	StartedAt       time.Time `json:"started_at"`
	SavedAt         time.Time `json:"saved_at"`
}

// Save archives a completed run with its event and response logs. A record
// without Complete set is rejected with ErrIncomplete.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - saving the same run twice
// is a no-op and reports inserted=false.
func (s *Store) Save(ctx context.Context, rec model.RunRecord) (inserted bool, err error) {
	if rec.ID == "" || !rec.Complete {
		return false, fmt.Errorf("save run %q: %w", rec.ID, ErrIncomplete)
	}

	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return false, fmt.Errorf("save run: marshal config: %w", err)
	}
	sequenceJSON, err := json.Marshal(rec.Sequence)
	if err != nil {
		return false, fmt.Errorf("save run: marshal sequence: %w", err)
	}
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return false, fmt.Errorf("save run: marshal summary: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, n_back, total_trials, accuracy, completed_trials, config, sequence, summary, started_at, ended_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Config.NBack,
		rec.Config.TotalTrials,
		rec.Summary.Accuracy,
		rec.Summary.CompletedTrials,
		string(configJSON),
		string(sequenceJSON),
		string(summaryJSON),
		formatTime(rec.Summary.StartTime),
		formatTime(rec.Summary.EndTime),
		formatTime(s.clock.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("save run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save run: rows affected: %w", err)
	}
	if n == 0 {
		s.log.Debug("run already archived", zap.String("run_id", rec.ID))
		return false, nil
	}

	for _, ev := range rec.Events {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trial_events
			(run_id, seq, trial_index, time, type, position, is_match, correct, reaction_time_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			ev.Seq,
			ev.TrialIndex,
			formatTime(ev.Time),
			string(ev.Type),
			ev.Position,
			ev.IsMatch,
			nullBool(ev.Correct),
			nullInt(ev.ReactionTimeMs),
		)
		if err != nil {
			return false, fmt.Errorf("save run: event %d: %w", ev.Seq, err)
		}
	}

	for i, r := range rec.Responses {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO responses
			(run_id, idx, trial_index, time, position, is_match, is_response, correct, reaction_time_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID,
			i,
			r.TrialIndex,
			formatTime(r.Time),
			r.Position,
			r.IsMatch,
			r.IsResponse,
			r.Correct,
			nullInt(r.ReactionTimeMs),
		)
		if err != nil {
			return false, fmt.Errorf("save run: response %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save run: commit: %w", err)
	}

	s.log.Info("run archived",
		zap.String("run_id", rec.ID),
		zap.Int("n_back", rec.Config.NBack),
		zap.Int("accuracy", rec.Summary.Accuracy),
		zap.Int("events", len(rec.Events)),
	)
	return true, nil
}

// Get returns the archived run with the given ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (model.RunRecord, error) {
	var (
		rec                                model.RunRecord
		configJSON, sequenceJSON, summJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, config, sequence, summary
		FROM runs
		WHERE id = ?
	`, id).Scan(&rec.ID, &configJSON, &sequenceJSON, &summJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, fmt.Errorf("get run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.RunRecord{}, fmt.Errorf("get run %q: %w", id, err)
	}

	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return model.RunRecord{}, fmt.Errorf("get run %q: config: %w", id, err)
	}
	if err := json.Unmarshal([]byte(sequenceJSON), &rec.Sequence); err != nil {
		return model.RunRecord{}, fmt.Errorf("get run %q: sequence: %w", id, err)
	}
	if err := json.Unmarshal([]byte(summJSON), &rec.Summary); err != nil {
		return model.RunRecord{}, fmt.Errorf("get run %q: summary: %w", id, err)
	}

	if rec.Events, err = s.readEvents(ctx, id); err != nil {
		return model.RunRecord{}, err
	}
	if rec.Responses, err = s.readResponses(ctx, id); err != nil {
		return model.RunRecord{}, err
	}
	rec.Complete = true
	return rec, nil
}

// readEvents returns the event log of a run in log order.
func (s *Store) readEvents(ctx context.Context, id string) ([]model.TrialEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, trial_index, time, type, position, is_match, correct, reaction_time_ms
		FROM trial_events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []model.TrialEvent{}
	for rows.Next() {
		var (
			ev      model.TrialEvent
			ts, typ string
			correct sql.NullBool
			rt      sql.NullInt64
		)
		if err := rows.Scan(&ev.Seq, &ev.TrialIndex, &ts, &typ, &ev.Position, &ev.IsMatch, &correct, &rt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.Time, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		ev.Type = model.EventType(typ)
		ev.Correct = fromNullBool(correct)
		ev.ReactionTimeMs = fromNullInt(rt)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// readResponses returns the response log of a run in log order.
func (s *Store) readResponses(ctx context.Context, id string) ([]model.ResponseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trial_index, time, position, is_match, is_response, correct, reaction_time_ms
		FROM responses
		WHERE run_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	responses := []model.ResponseRecord{}
	for rows.Next() {
		var (
			r  model.ResponseRecord
			ts string
			rt sql.NullInt64
		)
		if err := rows.Scan(&r.TrialIndex, &ts, &r.Position, &r.IsMatch, &r.IsResponse, &r.Correct, &rt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if r.Time, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("response for trial %d: %w", r.TrialIndex, err)
		}
		r.ReactionTimeMs = fromNullInt(rt)
		responses = append(responses, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return responses, nil
}

// List returns every archived run, newest first.
//
// Returns an empty slice (not nil) if the archive is empty.
func (s *Store) List(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, n_back, total_trials, completed_trials, accuracy, started_at, saved_at
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunInfo{}
	for rows.Next() {
		var (
			info             RunInfo
			started, savedAt string
		)
		if err := rows.Scan(&info.ID, &info.NBack, &info.TotalTrials, &info.CompletedTrials, &info.Accuracy, &started, &savedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if info.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("run %q: %w", info.ID, err)
		}
		if info.SavedAt, err = parseTime(savedAt); err != nil {
			return nil, fmt.Errorf("run %q: %w", info.ID, err)
		}
		runs = append(runs, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// History returns the accuracies of the latest limit runs at level nBack,
// oldest first, as consumed by results.AdviseHistory.
func (s *Store) History(ctx context.Context, nBack, limit int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT accuracy
		FROM runs
		WHERE n_back = ?
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, nBack, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var newestFirst []int
	for rows.Next() {
		var acc int
		if err := rows.Scan(&acc); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		newestFirst = append(newestFirst, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	out := make([]int, len(newestFirst))
	for i, acc := range newestFirst {
		out[len(out)-1-i] = acc
	}
	return out, nil
}

// Delete removes a run and its logs, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run %q: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run %q: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %q: %w", id, ErrNotFound)
	}

	s.log.Info("run deleted", zap.String("run_id", id))
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func fromNullBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	return model.Bool(b.Bool)
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	return model.Int(int(n.Int64))
}
