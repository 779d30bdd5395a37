package engine

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
)

type Extra string

const (
	ExtraNone   Extra = ""
	ExtraWide   Extra = "wide"
	ExtraNoBall Extra = "no_ball"
	ExtraBye    Extra = "bye"
	ExtraLegBye Extra = "leg_bye"
)

type Dismissal string

const (
	DismissalBowled      Dismissal = "bowled"
	DismissalCaught      Dismissal = "caught"
	DismissalLBW         Dismissal = "lbw"
	DismissalStumped     Dismissal = "stumped"
	DismissalRunOut      Dismissal = "run_out"
	DismissalHitWicket   Dismissal = "hit_wicket"
	DismissalObstructing Dismissal = "obstructing_field"
	DismissalRetiredOut  Dismissal = "retired_out"
)

type Reason string

const (
	ReasonNone           Reason = ""
	ReasonAllOut         Reason = "all_out"
	ReasonOversExhausted Reason = "overs_exhausted"
	ReasonTargetReached  Reason = "target_reached"
)

type ResultKind string

const (
	ResultWin      ResultKind = "win"
	ResultTie      ResultKind = "tie"
	ResultNoResult ResultKind = "no_result"
)

const BallsPerOver = 6

type Player struct {
	Name         string    `json:"name"`
	Captain      bool      `json:"captain,omitempty"`
	Keeper       bool      `json:"keeper,omitempty"`
	Runs         int       `json:"runs"`
	BallsFaced   int       `json:"balls_faced"`
	Fours        int       `json:"fours"`
	Sixes        int       `json:"sixes"`
	Dots         int       `json:"dots"`
	Out          bool      `json:"out"`
	Dismissal    Dismissal `json:"dismissal,omitempty"`
	BallsBowled  int       `json:"balls_bowled"`
	RunsConceded int       `json:"runs_conceded"`
	Wickets      int       `json:"wickets"`
}

// Team totals are batting figures except BallsBowled, which counts legal
// deliveries the side has bowled in the field.
type Team struct {
	Name        string   `json:"name"`
	Players     []Player `json:"players"`
	Runs        int      `json:"runs"`
	Wickets     int      `json:"wickets"`
	BallsFaced  int      `json:"balls_faced"`
	BallsBowled int      `json:"balls_bowled"`
	Extras      int      `json:"extras_conceded"`
}

type Wicket struct {
	Kind     Dismissal `json:"kind"`
	Player   string    `json:"player"`
	ToBowler bool      `json:"to_bowler"`
}

type Ball struct {
	Seq        int     `json:"seq"`
	Over       int     `json:"over"`
	Striker    string  `json:"striker"`
	NonStriker string  `json:"non_striker"`
	Bowler     string  `json:"bowler"`
	RunsOffBat int     `json:"runs_off_bat"`
	Extra      Extra   `json:"extra,omitempty"`
	ExtraRuns  int     `json:"extra_runs"`
	Wicket     *Wicket `json:"wicket,omitempty"`
	Legal      bool    `json:"legal"`
}

func (b Ball) Total() int { return b.RunsOffBat + b.ExtraRuns }

type Over struct {
	Number     int    `json:"number"`
	Bowler     string `json:"bowler"`
	Balls      []Ball `json:"balls"`
	LegalBalls int    `json:"legal_balls"`
	Complete   bool   `json:"complete"`
}

func (o Over) Runs() int {
	total := 0
	for _, b := range o.Balls {
		total += b.Total()
	}
	return total
}

type Innings struct {
	Number     int    `json:"number"`
	Batting    int    `json:"batting"`
	Bowling    int    `json:"bowling"`
	Striker    string `json:"striker"`
	NonStriker string `json:"non_striker"`
	Bowler     string `json:"bowler"`
	LastBowler string `json:"last_bowler,omitempty"`
	Overs      []Over `json:"overs"`
	Runs       int    `json:"runs"`
	Wickets    int    `json:"wickets"`
	LegalBalls int    `json:"legal_balls"`
	Extras     int    `json:"extras"`
	Target     int    `json:"target,omitempty"`
	AllOutAt   int    `json:"all_out_at"`
	Complete   bool   `json:"complete"`
	Reason     Reason `json:"reason,omitempty"`
}

// CurrentOver returns the over in progress, if any.
func (inn Innings) CurrentOver() (Over, bool) {
	if len(inn.Overs) == 0 {
		return Over{}, false
	}
	last := inn.Overs[len(inn.Overs)-1]
	if last.Complete {
		return Over{}, false
	}
	return last, true
}

// Config holds the format rules for one match.
type Config struct {
	OversPerInnings int `json:"overs_per_innings"`
	Innings         int `json:"innings"`
	// AllOutWickets of 0 means every batter but one, capped at 10.
	AllOutWickets int `json:"all_out_wickets,omitempty"`
	WidePenalty   int `json:"wide_penalty"`
	NoBallPenalty int `json:"no_ball_penalty"`
	BattingFirst  int `json:"batting_first"`
}

type Result struct {
	Kind       ResultKind `json:"kind"`
	Winner     string     `json:"winner,omitempty"`
	Margin     int        `json:"margin,omitempty"`
	MarginUnit string     `json:"margin_unit,omitempty"`
}

type Toss struct {
	Winner  string `json:"winner"`
	Elected string `json:"elected"`
}

type Match struct {
	ID      string    `json:"id"`
	Config  Config    `json:"config"`
	Teams   [2]Team   `json:"teams"`
	Toss    *Toss     `json:"toss,omitempty"`
	Innings []Innings `json:"innings"`
	Current int       `json:"current"`
	Status  Status    `json:"status"`
	Reason  Reason    `json:"reason,omitempty"`
	Result  *Result   `json:"result,omitempty"`
}

// Snapshot is the versioned, immutable view of a match handed to readers,
// subscribers and persistence.
type Snapshot struct {
	Version int   `json:"version"`
	Match   Match `json:"match"`
}
