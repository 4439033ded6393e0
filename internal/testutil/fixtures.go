package testutil

import (
	"time"

	"github.com/roach88/nback/internal/model"
)

// SampleRecord returns a completed 2-back run of seven trials with a 3s
// window, started at Epoch. The two lead-in trials carry no outcome; then
// come a 500ms hit, a miss, a 2500ms hit and two correct rejections.
func SampleRecord(id string) model.RunRecord {
	at := func(ms int) time.Time {
		return Epoch.Add(time.Duration(ms) * time.Millisecond)
	}

	seq := model.Sequence{NBack: 2, Positions: []int{1, 2, 1, 2, 1, 5, 7}}

	var events []model.TrialEvent
	add := func(trial, ms int, typ model.EventType, correct *bool, rt *int) {
		events = append(events, model.TrialEvent{
			Seq:            int64(len(events) + 1),
			TrialIndex:     trial,
			Time:           at(ms),
			Type:           typ,
			Position:       seq.At(trial),
			IsMatch:        seq.IsMatch(trial),
			Correct:        correct,
			ReactionTimeMs: rt,
		})
	}

	add(0, 1000, model.EventTrialStart, nil, nil)
	add(0, 4000, model.EventTrialEnd, nil, nil)
	add(1, 4500, model.EventTrialStart, nil, nil)
	add(1, 7500, model.EventTrialEnd, nil, nil)
	add(2, 8000, model.EventTrialStart, nil, nil)
	add(2, 8500, model.EventHit, model.Bool(true), model.Int(500))
	add(2, 11000, model.EventTrialEnd, nil, nil)
	add(3, 11500, model.EventTrialStart, nil, nil)
	add(3, 14500, model.EventMiss, model.Bool(false), nil)
	add(3, 14500, model.EventTrialEnd, nil, nil)
	add(4, 15000, model.EventTrialStart, nil, nil)
	add(4, 17500, model.EventHit, model.Bool(true), model.Int(2500))
	add(4, 18000, model.EventTrialEnd, nil, nil)
	add(5, 18500, model.EventTrialStart, nil, nil)
	add(5, 21500, model.EventCorrectReject, model.Bool(true), nil)
	add(5, 21500, model.EventTrialEnd, nil, nil)
	add(6, 22000, model.EventTrialStart, nil, nil)
	add(6, 25000, model.EventCorrectReject, model.Bool(true), nil)
	add(6, 25000, model.EventTrialEnd, nil, nil)

	return model.RunRecord{
		ID: id,
		Config: model.Config{
			NBack:           2,
			SecondsPerTrial: 3,
			MatchPercentage: 30,
			TotalTrials:     7,
			ShowFeedback:    true,
			GridSize:        3,
		},
		Sequence: seq,
		Summary: model.Summary{
			Hits:                  2,
			Misses:                1,
			FalseAlarms:           0,
			CorrectRejects:        2,
			Accuracy:              80,
			AverageReactionTimeMs: 1500,
			ReactionTimeSDMs:      1000,
			TotalMatchTrials:      3,
			TotalNonMatchTrials:   2,
			CompletedTrials:       7,
			StartTime:             Epoch,
			EndTime:               at(25500),
			DurationSeconds:       25.5,
		},
		Events:   events,
		Complete: true,
		Responses: []model.ResponseRecord{
			{TrialIndex: 2, Time: at(8500), Position: 1, IsMatch: true, IsResponse: true, Correct: true, ReactionTimeMs: model.Int(500)},
			{TrialIndex: 3, Time: at(14500), Position: 2, IsMatch: true},
			{TrialIndex: 4, Time: at(17500), Position: 1, IsMatch: true, IsResponse: true, Correct: true, ReactionTimeMs: model.Int(2500)},
		},
	}
}
