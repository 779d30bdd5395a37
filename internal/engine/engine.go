package engine

import (
	"errors"
	"fmt"
	"slices"
)

// ErrRuleViolation is wrapped by every error that rejects a ball against the
// current match state. Nothing is applied when it is returned.
var ErrRuleViolation = errors.New("rule violation")

var ErrInningsNotActive = fmt.Errorf("%w: innings not active", ErrRuleViolation)
var ErrUnknownAction = fmt.Errorf("%w: unknown action", ErrRuleViolation)
var ErrInvalidRuns = fmt.Errorf("%w: invalid runs", ErrRuleViolation)
var ErrBowlerRequired = fmt.Errorf("%w: bowler required for new over", ErrRuleViolation)
var ErrUnknownPlayer = fmt.Errorf("%w: unknown player", ErrRuleViolation)
var ErrConsecutiveOvers = fmt.Errorf("%w: bowler cannot bowl consecutive overs", ErrRuleViolation)
var ErrOverInProgress = fmt.Errorf("%w: over in progress", ErrRuleViolation)
var ErrDismissalNotAllowed = fmt.Errorf("%w: dismissal not allowed on this delivery", ErrRuleViolation)
var ErrBatterUnavailable = fmt.Errorf("%w: batter unavailable", ErrRuleViolation)
var ErrAlreadyStarted = fmt.Errorf("%w: match already started", ErrRuleViolation)
var ErrUnknownTeam = fmt.Errorf("%w: unknown team", ErrRuleViolation)

var ErrInvalidMatch = errors.New("invalid match")

const maxRunsPerBall = 7

type Action string

const (
	ActionRuns   Action = "runs"
	ActionWicket Action = "wicket"
	ActionWide   Action = "wide"
	ActionNoBall Action = "no_ball"
	ActionBye    Action = "bye"
	ActionLegBye Action = "leg_bye"
)

/*
	ActionRuns   -> ball (legal, runs off bat)            -> OverCompleted?
	ActionWicket -> ball (legal) + dismissal              -> WicketFallen -> OverCompleted?
	ActionWide   -> ball (illegal, penalty + runs run)
	ActionNoBall -> ball (illegal, penalty, runs off bat)
	ActionBye    -> ball (legal, runs as extras)          -> OverCompleted?
	ActionLegBye -> same as bye

	Any ball may carry a Dismissal; InningsTargetReached is added whenever the
	innings can no longer continue after the ball.
*/

type BallEvent struct {
	Action Action
	// Runs is what the batters ran or hit; penalties for wides and no-balls
	// are added from the match config.
	Runs       int
	Dismissal  Dismissal
	Dismissed  string // defaults to the striker
	NextBatter string // defaults to the next batter in the order
	Bowler     string // required when a new over starts without a bowler
}

type EffectType string

const (
	EffOverCompleted        EffectType = "OverCompleted"
	EffWicketFallen         EffectType = "WicketFallen"
	EffInningsTargetReached EffectType = "InningsTargetReached"
)

type Effect struct {
	Type   EffectType
	Over   int
	Player string
}

func Apply(m Match, ev BallEvent) ([]Effect, Match, error) {
	return DefaultPolicy.Apply(m, ev)
}

// Apply records one delivery against the current innings and returns the new
// match. The input match is never modified.
func (p Policy) Apply(m Match, ev BallEvent) ([]Effect, Match, error) {
	if !inningsActive(m) {
		return nil, m, ErrInningsNotActive
	}

	ball, err := buildBall(ev, m.Config)
	if err != nil {
		return nil, m, err
	}

	next := m.Clone()
	inn := &next.Innings[next.Current]
	bat := &next.Teams[inn.Batting]
	field := &next.Teams[inn.Bowling]

	if ev.Bowler != "" && ev.Bowler != inn.Bowler {
		if err := setBowler(inn, *field, ev.Bowler); err != nil {
			return nil, m, err
		}
	}
	if inn.Bowler == "" {
		return nil, m, ErrBowlerRequired
	}

	striker := playerIndex(*bat, inn.Striker)
	bowler := playerIndex(*field, inn.Bowler)
	if striker < 0 || bowler < 0 {
		return nil, m, ErrUnknownPlayer
	}

	dismissed := -1
	if ball.Wicket != nil {
		name := ev.Dismissed
		if name == "" {
			name = inn.Striker
		}
		if name != inn.Striker && name != inn.NonStriker {
			return nil, m, ErrUnknownPlayer
		}
		if name != inn.Striker && !canDismissNonStriker(ball.Wicket.Kind) {
			return nil, m, ErrDismissalNotAllowed
		}
		ball.Wicket.Player = name
		dismissed = playerIndex(*bat, name)
	}

	events := []Effect{}

	// Over bookkeeping
	if _, ok := inn.CurrentOver(); !ok {
		inn.Overs = append(inn.Overs, Over{Number: len(inn.Overs) + 1, Bowler: inn.Bowler})
	}
	over := &inn.Overs[len(inn.Overs)-1]
	ball.Seq = deliveries(*inn) + 1
	ball.Over = over.Number
	ball.Striker = inn.Striker
	ball.NonStriker = inn.NonStriker
	ball.Bowler = inn.Bowler
	over.Balls = append(over.Balls, ball)
	if ball.Legal {
		over.LegalBalls++
		inn.LegalBalls++
		bat.BallsFaced++
		field.BallsBowled++
	}

	// Totals
	inn.Runs += ball.Total()
	inn.Extras += ball.ExtraRuns
	bat.Runs += ball.Total()
	field.Extras += ball.ExtraRuns

	// Batter
	sp := &bat.Players[striker]
	sp.Runs += ball.RunsOffBat
	switch ball.RunsOffBat {
	case 4:
		sp.Fours++
	case 6:
		sp.Sixes++
	}
	if ball.Extra != ExtraWide {
		sp.BallsFaced++
	}
	if ball.Legal && ball.Total() == 0 {
		sp.Dots++
	}

	// Bowler
	bp := &field.Players[bowler]
	bp.RunsConceded += ball.RunsOffBat
	if ball.Extra == ExtraWide || ball.Extra == ExtraNoBall {
		bp.RunsConceded += ball.ExtraRuns
	}
	if ball.Legal {
		bp.BallsBowled++
	}

	// Wicket
	incoming := ""
	if ball.Wicket != nil {
		out := &bat.Players[dismissed]
		out.Out = true
		out.Dismissal = ball.Wicket.Kind
		if ball.Wicket.ToBowler {
			bp.Wickets++
		}
		inn.Wickets++
		bat.Wickets++
		events = append(events, Effect{Type: EffWicketFallen, Over: over.Number, Player: out.Name})

		if inn.Wickets < inn.AllOutAt {
			incoming, err = chooseIncoming(*bat, *inn, ev.NextBatter)
			if err != nil {
				return nil, m, err
			}
		}
		if inn.Striker == out.Name {
			inn.Striker = incoming
		} else {
			inn.NonStriker = incoming
		}
	}

	overDone := over.LegalBalls == BallsPerOver
	key := StrikeKey{
		Legal:        ball.Legal,
		OddRuns:      ev.Runs%2 == 1 && (ball.Wicket == nil || !incomingTakesStrike(ball.Wicket.Kind)),
		OverBoundary: overDone,
	}
	if p.Rotate(key) {
		inn.Striker, inn.NonStriker = inn.NonStriker, inn.Striker
	}

	if overDone {
		over.Complete = true
		inn.LastBowler = inn.Bowler
		inn.Bowler = ""
		events = append(events, Effect{Type: EffOverCompleted, Over: over.Number})
	}

	if completionReason(*inn, next.Config) != ReasonNone {
		events = append(events, Effect{Type: EffInningsTargetReached, Over: over.Number})
	}

	return events, next, nil
}

// ChangeBowler names the bowler for the next over.
func ChangeBowler(m Match, name string) (Match, error) {
	if !inningsActive(m) {
		return m, ErrInningsNotActive
	}
	next := m.Clone()
	inn := &next.Innings[next.Current]
	if err := setBowler(inn, next.Teams[inn.Bowling], name); err != nil {
		return m, err
	}
	return next, nil
}

type StartOptions struct {
	TossWinner string
	Elected    string // "bat" or "bowl"
	Openers    [2]string
	Bowler     string
}

// Start moves an upcoming match to live and opens the first innings. Zero
// options fall back to the configured batting side and its first two batters.
func Start(m Match, opts StartOptions) (Match, error) {
	if m.Status != StatusUpcoming {
		return m, ErrAlreadyStarted
	}
	next := m.Clone()

	batting := next.Config.BattingFirst
	if opts.TossWinner != "" {
		winner := teamIndex(next, opts.TossWinner)
		if winner < 0 {
			return m, ErrUnknownTeam
		}
		switch opts.Elected {
		case "bat", "":
			batting = winner
		case "bowl":
			batting = 1 - winner
		default:
			return m, fmt.Errorf("%w: toss decision %q", ErrRuleViolation, opts.Elected)
		}
		next.Toss = &Toss{Winner: opts.TossWinner, Elected: opts.Elected}
	}

	inn := newInnings(next, 1, batting)
	if opts.Openers[0] != "" || opts.Openers[1] != "" {
		bat := next.Teams[batting]
		if opts.Openers[0] == opts.Openers[1] || playerIndex(bat, opts.Openers[0]) < 0 || playerIndex(bat, opts.Openers[1]) < 0 {
			return m, ErrBatterUnavailable
		}
		inn.Striker, inn.NonStriker = opts.Openers[0], opts.Openers[1]
	}
	if opts.Bowler != "" {
		if err := setBowler(&inn, next.Teams[inn.Bowling], opts.Bowler); err != nil {
			return m, err
		}
	}

	next.Innings = append(next.Innings, inn)
	next.Current = 0
	next.Status = StatusLive
	return next, nil
}

func buildBall(ev BallEvent, cfg Config) (Ball, error) {
	if ev.Runs < 0 || ev.Runs > maxRunsPerBall {
		return Ball{}, ErrInvalidRuns
	}

	b := Ball{Legal: true}
	switch ev.Action {
	case ActionRuns:
		b.RunsOffBat = ev.Runs
	case ActionWicket:
		b.RunsOffBat = ev.Runs
		if ev.Dismissal == "" {
			ev.Dismissal = DismissalBowled
		}
	case ActionWide:
		b.Extra = ExtraWide
		b.ExtraRuns = cfg.WidePenalty + ev.Runs
		b.Legal = false
	case ActionNoBall:
		b.Extra = ExtraNoBall
		b.ExtraRuns = cfg.NoBallPenalty
		b.RunsOffBat = ev.Runs
		b.Legal = false
	case ActionBye:
		b.Extra = ExtraBye
		b.ExtraRuns = ev.Runs
	case ActionLegBye:
		b.Extra = ExtraLegBye
		b.ExtraRuns = ev.Runs
	default:
		return Ball{}, ErrUnknownAction
	}

	if ev.Dismissal != "" {
		if !dismissalAllowed(b.Extra, ev.Dismissal) {
			return Ball{}, ErrDismissalNotAllowed
		}
		b.Wicket = &Wicket{Kind: ev.Dismissal, ToBowler: creditedToBowler(ev.Dismissal)}
	}
	return b, nil
}

var knownDismissals = []Dismissal{
	DismissalBowled, DismissalCaught, DismissalLBW, DismissalStumped,
	DismissalRunOut, DismissalHitWicket, DismissalObstructing, DismissalRetiredOut,
}

func dismissalAllowed(extra Extra, kind Dismissal) bool {
	if !slices.Contains(knownDismissals, kind) {
		return false
	}
	switch extra {
	case ExtraNoBall, ExtraBye, ExtraLegBye:
		// Nothing the bowler could be credited with.
		return kind == DismissalRunOut || kind == DismissalObstructing || kind == DismissalRetiredOut
	case ExtraWide:
		return kind == DismissalRunOut || kind == DismissalObstructing || kind == DismissalRetiredOut ||
			kind == DismissalStumped || kind == DismissalHitWicket
	default:
		return true
	}
}

func creditedToBowler(kind Dismissal) bool {
	return kind != DismissalRunOut && kind != DismissalObstructing && kind != DismissalRetiredOut
}

func canDismissNonStriker(kind Dismissal) bool {
	return kind == DismissalRunOut || kind == DismissalObstructing || kind == DismissalRetiredOut
}

// The new batter walks in facing unless the batters were running.
func incomingTakesStrike(kind Dismissal) bool {
	return kind != DismissalRunOut
}

func setBowler(inn *Innings, field Team, name string) error {
	if _, ok := inn.CurrentOver(); ok {
		return ErrOverInProgress
	}
	if playerIndex(field, name) < 0 {
		return ErrUnknownPlayer
	}
	if name == inn.LastBowler {
		return ErrConsecutiveOvers
	}
	inn.Bowler = name
	return nil
}

func chooseIncoming(bat Team, inn Innings, requested string) (string, error) {
	available := func(p Player) bool {
		return !p.Out && p.Name != inn.Striker && p.Name != inn.NonStriker
	}
	if requested != "" {
		i := playerIndex(bat, requested)
		if i < 0 || !available(bat.Players[i]) {
			return "", ErrBatterUnavailable
		}
		return requested, nil
	}
	for _, p := range bat.Players {
		if available(p) {
			return p.Name, nil
		}
	}
	return "", ErrBatterUnavailable
}

func inningsActive(m Match) bool {
	if m.Status != StatusLive || m.Current < 0 || m.Current >= len(m.Innings) {
		return false
	}
	return !m.Innings[m.Current].Complete
}
