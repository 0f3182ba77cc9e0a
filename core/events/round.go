package events

// RoundEvent traces the dispatch round loop for a breakdown.
// Action can be "started", "matched", "widened" or "exhausted".
type RoundEvent struct {
	BreakdownID string
	Attempt     int
	RadiusKm    float64
	Candidates  int
	Action      string
	Err         error
}

// DisputeRaised is published when a new dispute is opened.
type DisputeRaised struct {
	DisputeID string
	RelatedID string
	RaisedBy  string
	Priority  string
}

// DisputeResolved is published when a dispute reaches RESOLVED or CLOSED.
type DisputeResolved struct {
	DisputeID  string
	ResolvedBy string
	Final      string
}
