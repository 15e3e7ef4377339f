package model

// BlockType discriminates the elements of a rendered poll.
type BlockType string

const (
	BlockHeading BlockType = "heading"
	BlockDivider BlockType = "divider"
	BlockOption  BlockType = "option"
	BlockVoters  BlockType = "voters"
)

// Action identifiers carried on interactive blocks. Chat adapters echo them
// back on button interactions so the engine can route the action.
const (
	ActionVote      = "vote_button"
	ActionAddChoice = "add_choice"
)

// Block is one element of a rendered poll, neutral with respect to the chat
// platform. Adapters translate blocks into their native layout primitives
// (Slack Block Kit sections, dividers and context blocks).
type Block struct {
	Type        BlockType    `json:"type"`
	Text        string       `json:"text,omitempty"`
	Description string       `json:"description,omitempty"`
	Action      string       `json:"action,omitempty"`
	Value       string       `json:"value,omitempty"`
	Markers     []VoteMarker `json:"markers,omitempty"`
}

// VoteMarker is one visual marker in a voters block, one per vote in
// arrival order.
type VoteMarker struct {
	Image string `json:"image"`
	Alt   string `json:"alt"`
}

// Render projects the session into display blocks: a heading, a divider,
// then per option an interactive vote block followed by a voters block when
// the option has at least one vote. Pure; identical state renders
// identically, which is what lets the engine re-post the same session after
// every committed vote.
func (s *PollSession) Render() []Block {
	blocks := []Block{
		{Type: BlockHeading, Text: s.Message},
		{Type: BlockDivider},
	}

	for i := range s.Options {
		o := &s.Options[i]
		blocks = append(blocks, Block{
			Type:        BlockOption,
			Text:        o.Name,
			Description: o.Description,
			Action:      ActionVote,
			Value:       o.Name,
		})

		if len(o.Votes) == 0 {
			continue
		}
		markers := make([]VoteMarker, 0, len(o.Votes))
		for _, v := range o.Votes {
			markers = append(markers, VoteMarker{Image: v.Avatar, Alt: v.Voter})
		}
		blocks = append(blocks, Block{Type: BlockVoters, Markers: markers})
	}

	return blocks
}
