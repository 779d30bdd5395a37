package engine

type StrikeKey struct {
	Legal        bool
	OddRuns      bool
	OverBoundary bool
}

// StrikeTable gives the net strike change for one delivery. The end of an over
// always swaps ends, so an odd run off the last ball leaves the same batter
// facing. Illegal deliveries never end an over.
var StrikeTable = map[StrikeKey]bool{
	// Legal deliveries
	{Legal: true, OddRuns: false, OverBoundary: false}: false,
	{Legal: true, OddRuns: true, OverBoundary: false}:  true,
	{Legal: true, OddRuns: false, OverBoundary: true}:  true,
	{Legal: true, OddRuns: true, OverBoundary: true}:   false,
	// Wides and no-balls
	{Legal: false, OddRuns: false, OverBoundary: false}: false,
	{Legal: false, OddRuns: true, OverBoundary: false}:  true,
}

type Policy struct {
	Table map[StrikeKey]bool
}

var DefaultPolicy = Policy{Table: StrikeTable}

func (p Policy) Rotate(k StrikeKey) bool {
	return p.Table[k]
}
