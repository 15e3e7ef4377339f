package model

// PollOption is one candidate venue inside a session.
//
// ID is the venue provider's stable identifier and is what makes options
// distinct when sampling. Name doubles as the lookup key carried on vote
// buttons, so it must be unique within a session. Votes are append-only in
// arrival order.
type PollOption struct {
	ID          string `json:"id" firestore:"id"`
	Name        string `json:"name" firestore:"name"`
	Description string `json:"description" firestore:"description"`
	Votes       []Vote `json:"votes" firestore:"votes"`
}

// AddVote appends a vote for this option. Repeat votes by the same voter
// are recorded as-is; the ledger does not deduplicate.
func (o *PollOption) AddVote(voter, avatar string) {
	o.Votes = append(o.Votes, Vote{Voter: voter, Avatar: avatar})
}
