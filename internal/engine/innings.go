package engine

type Outcome struct {
	Innings    int    `json:"innings"`
	Reason     Reason `json:"reason"`
	Runs       int    `json:"runs"`
	Wickets    int    `json:"wickets"`
	LegalBalls int    `json:"legal_balls"`
}

// Evaluate reports whether the innings is over after a ball produced effects.
// Apply flags every ball that ends an innings with EffInningsTargetReached.
func Evaluate(inn Innings, effects []Effect, cfg Config) (Outcome, bool) {
	if !ContainsEffect(effects, EffInningsTargetReached) {
		return Outcome{}, false
	}
	reason := completionReason(inn, cfg)
	if reason == ReasonNone {
		return Outcome{}, false
	}
	return Outcome{
		Innings:    inn.Number,
		Reason:     reason,
		Runs:       inn.Runs,
		Wickets:    inn.Wickets,
		LegalBalls: inn.LegalBalls,
	}, true
}

// Advance closes the current innings with out and either opens the next one
// or completes the match.
func Advance(m Match, out Outcome) Match {
	next := m.Clone()
	inn := &next.Innings[next.Current]
	inn.Complete = true
	inn.Reason = out.Reason
	inn.Bowler = ""

	if len(next.Innings) < next.Config.Innings {
		second := newInnings(next, inn.Number+1, inn.Bowling)
		second.Target = inn.Runs + 1
		next.Innings = append(next.Innings, second)
		next.Current = len(next.Innings) - 1
		return next
	}

	next.Status = StatusCompleted
	next.Reason = out.Reason
	result := decide(next)
	next.Result = &result
	return next
}

// Target first, so a chase completed on the last ball or with the last
// wicket still counts as chased.
func completionReason(inn Innings, cfg Config) Reason {
	switch {
	case inn.Target > 0 && inn.Runs >= inn.Target:
		return ReasonTargetReached
	case inn.Wickets >= inn.AllOutAt:
		return ReasonAllOut
	case cfg.OversPerInnings > 0 && inn.LegalBalls >= cfg.OversPerInnings*BallsPerOver:
		return ReasonOversExhausted
	default:
		return ReasonNone
	}
}

func decide(m Match) Result {
	if len(m.Innings) < 2 {
		return Result{Kind: ResultNoResult}
	}
	first, second := m.Innings[0], m.Innings[1]
	switch {
	case second.Runs > first.Runs:
		return Result{
			Kind:       ResultWin,
			Winner:     m.Teams[second.Batting].Name,
			Margin:     second.AllOutAt - second.Wickets,
			MarginUnit: "wickets",
		}
	case first.Runs > second.Runs:
		return Result{
			Kind:       ResultWin,
			Winner:     m.Teams[first.Batting].Name,
			Margin:     first.Runs - second.Runs,
			MarginUnit: "runs",
		}
	default:
		return Result{Kind: ResultTie}
	}
}
