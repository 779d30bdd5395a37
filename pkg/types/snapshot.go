package types

import "github.com/DoyleJ11/cricket-live-backend/internal/engine"

// Scoreboard is the compact summary pushed alongside each snapshot, enough
// for a ticker without walking the full ball log.
type Scoreboard struct {
	MatchID    string         `json:"matchId"`
	Version    int            `json:"version"`
	Status     engine.Status  `json:"status"`
	Innings    int            `json:"innings"`
	Batting    string         `json:"batting,omitempty"`
	Runs       int            `json:"runs"`
	Wickets    int            `json:"wickets"`
	Overs      string         `json:"overs"`
	Target     int            `json:"target,omitempty"`
	Striker    string         `json:"striker,omitempty"`
	NonStriker string         `json:"nonStriker,omitempty"`
	Bowler     string         `json:"bowler,omitempty"`
	LastBall   *engine.Ball   `json:"lastBall,omitempty"`
	Result     *engine.Result `json:"result,omitempty"`
}

func NewScoreboard(snap engine.Snapshot) Scoreboard {
	m := snap.Match
	sb := Scoreboard{
		MatchID: m.ID,
		Version: snap.Version,
		Status:  m.Status,
		Overs:   engine.FormatOvers(0),
		Result:  m.Result,
	}
	if len(m.Innings) == 0 {
		return sb
	}

	inn := m.Innings[m.Current]
	sb.Innings = inn.Number
	sb.Batting = m.Teams[inn.Batting].Name
	sb.Runs = inn.Runs
	sb.Wickets = inn.Wickets
	sb.Overs = engine.FormatOvers(inn.LegalBalls)
	sb.Target = inn.Target
	sb.Striker = inn.Striker
	sb.NonStriker = inn.NonStriker
	sb.Bowler = inn.Bowler
	if n := len(inn.Overs); n > 0 {
		if balls := inn.Overs[n-1].Balls; len(balls) > 0 {
			last := balls[len(balls)-1]
			sb.LastBall = &last
		}
	}
	return sb
}
