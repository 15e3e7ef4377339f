package model

// Vote is one voter's endorsement of one option. Immutable once cast;
// owned exclusively by the option it was cast on.
type Vote struct {
	Voter  string `json:"voter" firestore:"voter"`
	Avatar string `json:"avatar" firestore:"avatar"`
}
