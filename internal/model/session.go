package model

import "errors"

// ErrOptionNotFound reports a vote against an option name that is not part
// of the session, usually a stale button on an old message.
var ErrOptionNotFound = errors.New("option not found")

// PollSession is one lunch poll: a prompt and a fixed, ordered set of
// options. The option set is finalized at creation time and only the vote
// ledgers change afterwards.
//
// Key is the identifier of the chat message the poll is attached to. It is
// only known once that message has been posted, so a freshly built session
// carries an empty key until then.
type PollSession struct {
	Key     string       `json:"key" firestore:"key"`
	Message string       `json:"message" firestore:"message"`
	Options []PollOption `json:"options" firestore:"options"`
}

// NewPollSession builds an unpersisted session around a finalized option set.
func NewPollSession(message string, options []PollOption) *PollSession {
	return &PollSession{Message: message, Options: options}
}

// Option finds an option by its display name, the key carried on vote
// interactions. Returns ErrOptionNotFound on a miss.
func (s *PollSession) Option(name string) (*PollOption, error) {
	for i := range s.Options {
		if s.Options[i].Name == name {
			return &s.Options[i], nil
		}
	}
	return nil, ErrOptionNotFound
}

// ApplyVote appends a vote to the named option.
func (s *PollSession) ApplyVote(optionName, voter, avatar string) error {
	o, err := s.Option(optionName)
	if err != nil {
		return err
	}
	o.AddVote(voter, avatar)
	return nil
}

// Clone returns a deep copy. Stores hand copies to transaction bodies so a
// retried body never observes its own previous attempt's mutations.
func (s *PollSession) Clone() *PollSession {
	c := &PollSession{Key: s.Key, Message: s.Message}
	if s.Options != nil {
		c.Options = make([]PollOption, len(s.Options))
		copy(c.Options, s.Options)
		for i := range c.Options {
			if s.Options[i].Votes != nil {
				c.Options[i].Votes = make([]Vote, len(s.Options[i].Votes))
				copy(c.Options[i].Votes, s.Options[i].Votes)
			}
		}
	}
	return c
}
