package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	pages    map[string]Page
	pageErr  map[string]error
	requests []PageRequest
}

func (f *fakeProvider) SearchPage(_ context.Context, req PageRequest) (Page, error) {
	f.requests = append(f.requests, req)
	if err := f.pageErr[req.PageToken]; err != nil {
		return Page{}, err
	}
	return f.pages[req.PageToken], nil
}

func TestNearbyAggregatesAllPages(t *testing.T) {
	p := &fakeProvider{pages: map[string]Page{
		"": {
			Venues:        []Venue{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}},
			NextPageToken: "page-2",
		},
		"page-2": {
			Venues: []Venue{{ID: "c", Name: "C"}},
		},
	}}

	n := NewNearby(p, 0, zerolog.Nop())
	venues, err := n.Search(context.Background(), "pizza")
	require.NoError(t, err)

	require.Len(t, venues, 3)
	assert.Equal(t, "a", venues[0].ID)
	assert.Equal(t, "c", venues[2].ID)

	require.Len(t, p.requests, 2)
	assert.Equal(t, "pizza", p.requests[0].Keyword)
	assert.Equal(t, "page-2", p.requests[1].PageToken)
}

func TestNearbyFirstPageFailure(t *testing.T) {
	p := &fakeProvider{pageErr: map[string]error{"": errors.New("quota exceeded")}}

	n := NewNearby(p, 0, zerolog.Nop())
	_, err := n.Search(context.Background(), "")
	assert.Error(t, err)
}

func TestNearbyLaterPageFailureKeepsPartialPool(t *testing.T) {
	p := &fakeProvider{
		pages: map[string]Page{
			"": {Venues: []Venue{{ID: "a", Name: "A"}}, NextPageToken: "page-2"},
		},
		pageErr: map[string]error{"page-2": errors.New("token not ready")},
	}

	n := NewNearby(p, 0, zerolog.Nop())
	venues, err := n.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, venues, 1)
}

func TestStaticKeywordFilter(t *testing.T) {
	s := NewStatic([]Venue{
		{ID: "a", Name: "Pizza Palace"},
		{ID: "b", Name: "Noodle House"},
	})

	all, err := s.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pizza, err := s.Search(context.Background(), "pizza")
	require.NoError(t, err)
	require.Len(t, pizza, 1)
	assert.Equal(t, "a", pizza[0].ID)
}
