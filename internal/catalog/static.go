package catalog

import (
	"context"
	"strings"
)

// Static serves a fixed venue list, for development and tests where no
// provider credentials exist.
type Static struct {
	venues []Venue
}

// NewStatic builds a catalog over the given venues.
func NewStatic(venues []Venue) *Static {
	return &Static{venues: venues}
}

// Search returns venues whose name contains the keyword, or every venue
// when the keyword is empty.
func (s *Static) Search(_ context.Context, keyword string) ([]Venue, error) {
	if keyword == "" {
		out := make([]Venue, len(s.venues))
		copy(out, s.venues)
		return out, nil
	}

	var out []Venue
	needle := strings.ToLower(keyword)
	for _, v := range s.venues {
		if strings.Contains(strings.ToLower(v.Name), needle) {
			out = append(out, v)
		}
	}
	return out, nil
}
