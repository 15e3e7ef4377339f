package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *PollSession {
	return NewPollSession("Where to for lunch?", []PollOption{
		{ID: "p1", Name: "Noodle House", Description: "123 4th Ave"},
		{ID: "p2", Name: "Taco Stand", Description: "88 Centre St"},
	})
}

func TestOptionLookup(t *testing.T) {
	s := testSession()

	o, err := s.Option("Taco Stand")
	require.NoError(t, err)
	assert.Equal(t, "p2", o.ID)

	_, err = s.Option("Closed Diner")
	assert.ErrorIs(t, err, ErrOptionNotFound)
}

func TestApplyVoteAppendsInOrder(t *testing.T) {
	s := testSession()

	require.NoError(t, s.ApplyVote("Noodle House", "michael", "https://avatars/m.png"))
	require.NoError(t, s.ApplyVote("Noodle House", "dwight", "https://avatars/d.png"))

	o, err := s.Option("Noodle House")
	require.NoError(t, err)
	require.Len(t, o.Votes, 2)
	assert.Equal(t, "michael", o.Votes[0].Voter)
	assert.Equal(t, "dwight", o.Votes[1].Voter)
}

func TestApplyVoteDoesNotDeduplicateVoters(t *testing.T) {
	s := testSession()

	require.NoError(t, s.ApplyVote("Taco Stand", "pam", "https://avatars/p.png"))
	require.NoError(t, s.ApplyVote("Taco Stand", "pam", "https://avatars/p.png"))

	o, err := s.Option("Taco Stand")
	require.NoError(t, err)
	assert.Len(t, o.Votes, 2)
}

func TestApplyVoteUnknownOption(t *testing.T) {
	s := testSession()

	err := s.ApplyVote("Closed Diner", "jim", "https://avatars/j.png")
	assert.ErrorIs(t, err, ErrOptionNotFound)
}

func TestCloneIsIndependent(t *testing.T) {
	s := testSession()
	require.NoError(t, s.ApplyVote("Noodle House", "michael", "https://avatars/m.png"))

	c := s.Clone()
	require.NoError(t, c.ApplyVote("Noodle House", "dwight", "https://avatars/d.png"))
	require.NoError(t, c.ApplyVote("Taco Stand", "pam", "https://avatars/p.png"))

	orig, err := s.Option("Noodle House")
	require.NoError(t, err)
	assert.Len(t, orig.Votes, 1)

	origTaco, err := s.Option("Taco Stand")
	require.NoError(t, err)
	assert.Empty(t, origTaco.Votes)
}

func TestRenderShape(t *testing.T) {
	s := testSession()
	require.NoError(t, s.ApplyVote("Taco Stand", "pam", "https://avatars/p.png"))

	blocks := s.Render()
	require.Len(t, blocks, 5)

	assert.Equal(t, BlockHeading, blocks[0].Type)
	assert.Equal(t, "Where to for lunch?", blocks[0].Text)
	assert.Equal(t, BlockDivider, blocks[1].Type)

	assert.Equal(t, BlockOption, blocks[2].Type)
	assert.Equal(t, "Noodle House", blocks[2].Value)
	assert.Equal(t, ActionVote, blocks[2].Action)

	assert.Equal(t, BlockOption, blocks[3].Type)
	assert.Equal(t, BlockVoters, blocks[4].Type)
	require.Len(t, blocks[4].Markers, 1)
	assert.Equal(t, "pam", blocks[4].Markers[0].Alt)
	assert.Equal(t, "https://avatars/p.png", blocks[4].Markers[0].Image)
}

func TestRenderSkipsEmptyVoterBlocks(t *testing.T) {
	s := testSession()

	blocks := s.Render()
	require.Len(t, blocks, 4)
	for _, b := range blocks {
		assert.NotEqual(t, BlockVoters, b.Type)
	}
}

func TestRenderDeterministic(t *testing.T) {
	s := testSession()
	require.NoError(t, s.ApplyVote("Noodle House", "michael", "https://avatars/m.png"))

	assert.Equal(t, s.Render(), s.Render())
}
