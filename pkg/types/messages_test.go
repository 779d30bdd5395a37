package types

import (
	"encoding/json"
	"testing"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestBallSubmission_ToBallEvent(t *testing.T) {
	tests := []struct {
		name    string
		in      BallSubmission
		want    engine.BallEvent
		wantErr bool
	}{
		{
			name: "runs",
			in:   BallSubmission{Action: "runs", Runs: intPtr(4)},
			want: engine.BallEvent{Action: engine.ActionRuns, Runs: 4},
		},
		{
			name: "dot ball is explicit zero",
			in:   BallSubmission{Action: "runs", Runs: intPtr(0)},
			want: engine.BallEvent{Action: engine.ActionRuns},
		},
		{
			name: "wicket defaults to bowled",
			in:   BallSubmission{Action: "wicket", NextBatter: "L4"},
			want: engine.BallEvent{Action: engine.ActionWicket, Dismissal: engine.DismissalBowled, NextBatter: "L4"},
		},
		{
			name: "wide without runs",
			in:   BallSubmission{Action: "wide", Bowler: "T2"},
			want: engine.BallEvent{Action: engine.ActionWide, Bowler: "T2"},
		},
		{
			name: "bye run out of non-striker",
			in:   BallSubmission{Action: "bye", Runs: intPtr(1), WicketType: "run_out", Dismissed: "L2"},
			want: engine.BallEvent{Action: engine.ActionBye, Runs: 1, Dismissal: engine.DismissalRunOut, Dismissed: "L2"},
		},
		{name: "missing action", in: BallSubmission{}, wantErr: true},
		{name: "unknown action", in: BallSubmission{Action: "dead_ball"}, wantErr: true},
		{name: "runs missing", in: BallSubmission{Action: "runs"}, wantErr: true},
		{name: "negative runs", in: BallSubmission{Action: "leg_bye", Runs: intPtr(-1)}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.ToBallEvent()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidSubmission)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBallSubmission_DecodesWireNames(t *testing.T) {
	raw := `{"matchId":"m1","action":"no_ball","runs":2,"wicketType":"run_out","dismissed":"L1","nextBatter":"L5","bowler":"T3"}`
	var b BallSubmission
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	assert.Equal(t, "m1", b.MatchID)
	require.NotNil(t, b.Runs)
	assert.Equal(t, 2, *b.Runs)

	ev, err := b.ToBallEvent()
	require.NoError(t, err)
	assert.Equal(t, engine.ActionNoBall, ev.Action)
	assert.Equal(t, "L5", ev.NextBatter)
}

func TestSnapshotMessage(t *testing.T) {
	teams := [2]engine.Team{
		{Name: "Lions", Players: []engine.Player{{Name: "L1"}, {Name: "L2"}, {Name: "L3"}}},
		{Name: "Tigers", Players: []engine.Player{{Name: "T1"}, {Name: "T2"}, {Name: "T3"}}},
	}
	m, err := engine.NewMatch("m1", engine.Config{OversPerInnings: 2}, teams)
	require.NoError(t, err)

	msg := SnapshotMessage(engine.Snapshot{Version: 0, Match: m})
	assert.Equal(t, MsgStateSnapshot, msg.Type)
	require.NotNil(t, msg.Scoreboard)
	assert.Equal(t, "0.0", msg.Scoreboard.Overs)
	assert.Nil(t, msg.Scoreboard.LastBall)

	m, err = engine.Start(m, engine.StartOptions{Bowler: "T1"})
	require.NoError(t, err)
	_, m, err = engine.Apply(m, engine.BallEvent{Action: engine.ActionRuns, Runs: 3})
	require.NoError(t, err)

	msg = SnapshotMessage(engine.Snapshot{Version: 1, Match: m})
	sb := msg.Scoreboard
	assert.Equal(t, 1, sb.Version)
	assert.Equal(t, "Lions", sb.Batting)
	assert.Equal(t, 3, sb.Runs)
	assert.Equal(t, "0.1", sb.Overs)
	assert.Equal(t, "L2", sb.Striker)
	require.NotNil(t, sb.LastBall)
	assert.Equal(t, 3, sb.LastBall.RunsOffBat)
}
