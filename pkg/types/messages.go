package types

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/cricket-live-backend/internal/engine"
)

var ErrInvalidSubmission = errors.New("invalid ball submission")

// Server message types.
const (
	MsgStateSnapshot = "StateSnapshot"
	MsgError         = "Error"
)

// Client message types accepted over the websocket.
const (
	MsgSubmitBall   = "SubmitBall"
	MsgChangeBowler = "ChangeBowler"
)

// BallSubmission is what a scorer sends for one delivery. Runs is a pointer
// so a missing value can be told apart from a dot ball.
type BallSubmission struct {
	MatchID    string `json:"matchId"`
	Action     string `json:"action"`
	Runs       *int   `json:"runs,omitempty"`
	WicketType string `json:"wicketType,omitempty"`
	Dismissed  string `json:"dismissed,omitempty"`
	NextBatter string `json:"nextBatter,omitempty"`
	Bowler     string `json:"bowler,omitempty"`
}

// ToBallEvent checks the submission's shape. Cricket rules are the engine's
// job; this only rejects what cannot be a delivery at all.
func (b BallSubmission) ToBallEvent() (engine.BallEvent, error) {
	ev := engine.BallEvent{
		Action:     engine.Action(b.Action),
		Dismissal:  engine.Dismissal(b.WicketType),
		Dismissed:  b.Dismissed,
		NextBatter: b.NextBatter,
		Bowler:     b.Bowler,
	}
	if b.Runs != nil {
		if *b.Runs < 0 {
			return engine.BallEvent{}, fmt.Errorf("%w: runs must not be negative", ErrInvalidSubmission)
		}
		ev.Runs = *b.Runs
	}

	switch ev.Action {
	case engine.ActionRuns, engine.ActionBye, engine.ActionLegBye:
		if b.Runs == nil {
			return engine.BallEvent{}, fmt.Errorf("%w: %s needs runs", ErrInvalidSubmission, b.Action)
		}
	case engine.ActionWicket:
		if ev.Dismissal == "" {
			ev.Dismissal = engine.DismissalBowled
		}
	case engine.ActionWide, engine.ActionNoBall:
	case "":
		return engine.BallEvent{}, fmt.Errorf("%w: action is required", ErrInvalidSubmission)
	default:
		return engine.BallEvent{}, fmt.Errorf("%w: unknown action %q", ErrInvalidSubmission, b.Action)
	}

	return ev, nil
}

type StartRequest struct {
	TossWinner string    `json:"tossWinner"`
	Elected    string    `json:"elected"`
	Openers    [2]string `json:"openers"`
	Bowler     string    `json:"bowler"`
}

func (s StartRequest) Options() engine.StartOptions {
	return engine.StartOptions{TossWinner: s.TossWinner, Elected: s.Elected, Openers: s.Openers, Bowler: s.Bowler}
}

type BowlerRequest struct {
	Bowler string `json:"bowler"`
}

type ClientMessage struct {
	Type   string          `json:"type"`
	Ball   *BallSubmission `json:"ball,omitempty"`
	Bowler string          `json:"bowler,omitempty"`
}

type ServerMessage struct {
	Type       string        `json:"type"` // "StateSnapshot" | "Error"
	Version    int           `json:"version,omitempty"`
	Scoreboard *Scoreboard   `json:"scoreboard,omitempty"`
	State      *engine.Match `json:"state,omitempty"`
	Code       string        `json:"code,omitempty"`
	Error      string        `json:"error,omitempty"`
}

func SnapshotMessage(snap engine.Snapshot) ServerMessage {
	board := NewScoreboard(snap)
	state := snap.Match
	return ServerMessage{Type: MsgStateSnapshot, Version: snap.Version, Scoreboard: &board, State: &state}
}

func ErrorMessage(code string, err error) ServerMessage {
	return ServerMessage{Type: MsgError, Code: code, Error: err.Error()}
}
