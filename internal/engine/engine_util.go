package engine

import "fmt"

const maxWickets = 10

// NewMatch builds an upcoming match, filling config defaults.
func NewMatch(id string, cfg Config, teams [2]Team) (Match, error) {
	if cfg.OversPerInnings <= 0 {
		return Match{}, fmt.Errorf("%w: overs per innings must be positive", ErrInvalidMatch)
	}
	if cfg.Innings == 0 {
		cfg.Innings = 2
	}
	if cfg.Innings != 1 && cfg.Innings != 2 {
		return Match{}, fmt.Errorf("%w: innings must be 1 or 2", ErrInvalidMatch)
	}
	if cfg.AllOutWickets < 0 || cfg.BattingFirst < 0 || cfg.BattingFirst > 1 {
		return Match{}, fmt.Errorf("%w: bad config %+v", ErrInvalidMatch, cfg)
	}
	if cfg.WidePenalty == 0 {
		cfg.WidePenalty = 1
	}
	if cfg.NoBallPenalty == 0 {
		cfg.NoBallPenalty = 1
	}
	if teams[0].Name == "" || teams[1].Name == "" || teams[0].Name == teams[1].Name {
		return Match{}, fmt.Errorf("%w: teams need distinct names", ErrInvalidMatch)
	}

	m := Match{ID: id, Config: cfg, Status: StatusUpcoming, Innings: []Innings{}}
	for i, t := range teams {
		if len(t.Players) < 2 {
			return Match{}, fmt.Errorf("%w: team %q needs at least two players", ErrInvalidMatch, t.Name)
		}
		seen := map[string]bool{}
		players := make([]Player, 0, len(t.Players))
		for _, p := range t.Players {
			if p.Name == "" || seen[p.Name] {
				return Match{}, fmt.Errorf("%w: team %q has a blank or duplicate player", ErrInvalidMatch, t.Name)
			}
			seen[p.Name] = true
			players = append(players, Player{Name: p.Name, Captain: p.Captain, Keeper: p.Keeper})
		}
		m.Teams[i] = Team{Name: t.Name, Players: players}
	}
	return m, nil
}

func ContainsEffect(effects []Effect, effectType EffectType) bool {
	for _, effect := range effects {
		if effect.Type == effectType {
			return true
		}
	}
	return false
}

// AllOutThreshold is the wicket count that ends an innings for a side of
// the given size.
func AllOutThreshold(cfg Config, players int) int {
	limit := min(players-1, maxWickets)
	if cfg.AllOutWickets > 0 && cfg.AllOutWickets < limit {
		limit = cfg.AllOutWickets
	}
	return max(limit, 1)
}

// FormatOvers renders legal balls the way a scoreboard does, e.g. 14 -> "2.2".
func FormatOvers(balls int) string {
	return fmt.Sprintf("%d.%d", balls/BallsPerOver, balls%BallsPerOver)
}

// Clone returns a deep copy that shares no slices or pointers with m.
func (m Match) Clone() Match {
	c := m
	for i, t := range m.Teams {
		c.Teams[i].Players = append([]Player(nil), t.Players...)
	}
	if m.Toss != nil {
		toss := *m.Toss
		c.Toss = &toss
	}
	if m.Result != nil {
		r := *m.Result
		c.Result = &r
	}
	c.Innings = make([]Innings, len(m.Innings))
	for i, inn := range m.Innings {
		c.Innings[i] = inn
		c.Innings[i].Overs = make([]Over, len(inn.Overs))
		for j, o := range inn.Overs {
			c.Innings[i].Overs[j] = o
			balls := make([]Ball, len(o.Balls))
			for k, b := range o.Balls {
				if b.Wicket != nil {
					w := *b.Wicket
					b.Wicket = &w
				}
				balls[k] = b
			}
			c.Innings[i].Overs[j].Balls = balls
		}
	}
	return c
}

func newInnings(m Match, number, batting int) Innings {
	bat := m.Teams[batting]
	return Innings{
		Number:     number,
		Batting:    batting,
		Bowling:    1 - batting,
		Striker:    bat.Players[0].Name,
		NonStriker: bat.Players[1].Name,
		Overs:      []Over{},
		AllOutAt:   AllOutThreshold(m.Config, len(bat.Players)),
	}
}

func deliveries(inn Innings) int {
	n := 0
	for _, o := range inn.Overs {
		n += len(o.Balls)
	}
	return n
}

func playerIndex(t Team, name string) int {
	for i, p := range t.Players {
		if p.Name == name {
			return i
		}
	}
	return -1
}

func teamIndex(m Match, name string) int {
	for i, t := range m.Teams {
		if t.Name == name {
			return i
		}
	}
	return -1
}
