package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nback/internal/engine"
	"github.com/roach88/nback/internal/model"
	"github.com/roach88/nback/internal/testutil"
)

func TestSave_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := testutil.SampleRecord("run-1")

	inserted, err := s.Save(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestSave_PreservesEventOrderAndNulls(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, testutil.SampleRecord("run-1"))
	require.NoError(t, err)

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)

	for i, ev := range got.Events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	start := got.Events[0]
	assert.Equal(t, model.EventTrialStart, start.Type)
	assert.Nil(t, start.Correct)
	assert.Nil(t, start.ReactionTimeMs)

	miss := got.Responses[1]
	assert.False(t, miss.IsResponse)
	assert.Nil(t, miss.ReactionTimeMs)
}

func TestSave_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := testutil.SampleRecord("run-1")

	_, err := s.Save(ctx, rec)
	require.NoError(t, err)

	inserted, err := s.Save(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM trial_events WHERE run_id = 'run-1'").Scan(&count))
	assert.Equal(t, len(rec.Events), count)
}

func TestSave_RejectsIncompleteRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	running := testutil.SampleRecord("run-1")
	running.Complete = false
	_, err := s.Save(ctx, running)
	assert.True(t, errors.Is(err, ErrIncomplete))

	_, err = s.Save(ctx, testutil.SampleRecord(""))
	assert.True(t, errors.Is(err, ErrIncomplete))

	runs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSave_RejectsRecordOfRunningEngine(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	clk := testutil.NewFakeClock(time.Time{})
	eng := engine.New(model.Config{
		NBack:           2,
		SecondsPerTrial: 3,
		MatchPercentage: 30,
		TotalTrials:     10,
		GridSize:        3,
	}, engine.WithClock(clk), engine.WithSeed(1))
	defer eng.Close()

	require.True(t, eng.Start())
	clk.Advance(3 * time.Second)

	live := eng.Record()
	require.False(t, live.Summary.EndTime.IsZero(), "live summaries carry an end time")
	_, err := s.Save(ctx, live)
	assert.True(t, errors.Is(err, ErrIncomplete))

	eng.Stop()
	inserted, err := s.Save(ctx, eng.Record())
	require.NoError(t, err)
	assert.True(t, inserted)

	got, err := s.Get(ctx, live.ID)
	require.NoError(t, err)
	assert.True(t, got.Complete)
}

func TestSave_StampsSavedAt(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, testutil.SampleRecord("run-1"))
	require.NoError(t, err)

	runs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, testutil.Epoch, runs[0].SavedAt)
}

func TestGet_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, rec := range []model.RunRecord{
		createTestRun("b", time.Hour, 2, 70),
		createTestRun("a", 0, 2, 60),
		createTestRun("c", 2*time.Hour, 3, 90),
	} {
		_, err := s.Save(ctx, rec)
		require.NoError(t, err)
	}

	runs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "a", runs[2].ID)

	assert.Equal(t, 3, runs[0].NBack)
	assert.Equal(t, 90, runs[0].Accuracy)
	assert.Equal(t, 7, runs[0].TotalTrials)
	assert.Equal(t, 7, runs[0].CompletedTrials)
	assert.Equal(t, testutil.Epoch.Add(2*time.Hour), runs[0].StartedAt)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestHistory_OldestFirstPerLevel(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, acc := range []int{40, 45, 48, 95} {
		_, err := s.Save(ctx, createTestRun(string(rune('a'+i)), time.Duration(i)*time.Hour, 2, acc))
		require.NoError(t, err)
	}
	_, err := s.Save(ctx, createTestRun("other", 10*time.Hour, 3, 10))
	require.NoError(t, err)

	got, err := s.History(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{45, 48, 95}, got)

	got, err = s.History(ctx, 4, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, testutil.SampleRecord("run-1"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "run-1"))

	_, err = s.Get(ctx, "run-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM trial_events").Scan(&count))
	assert.Zero(t, count, "events cascade with the run")
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM responses").Scan(&count))
	assert.Zero(t, count, "responses cascade with the run")
}

func TestDelete_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestQuery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, testutil.SampleRecord("run-1"))
	require.NoError(t, err)

	rows, err := s.Query(ctx, "SELECT type FROM trial_events WHERE run_id = ? AND type = ? ORDER BY seq", "run-1", "HIT")
	require.NoError(t, err)
	defer rows.Close()

	n := 0
	for rows.Next() {
		n++
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, 2, n)
}
