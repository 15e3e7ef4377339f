package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Nearby aggregates a provider's paged results into one candidate pool.
//
// Providers hand out the next-page token before it is usable; a fixed
// settle delay between page requests accommodates that.
type Nearby struct {
	provider Provider
	settle   time.Duration
	log      zerolog.Logger
}

// NewNearby wraps a paged provider. settle is the delay honored between
// page requests; pass 0 in tests.
func NewNearby(provider Provider, settle time.Duration, log zerolog.Logger) *Nearby {
	return &Nearby{provider: provider, settle: settle, log: log}
}

// Search fetches every page for the keyword and returns the combined pool.
func (n *Nearby) Search(ctx context.Context, keyword string) ([]Venue, error) {
	var venues []Venue
	token := ""

	for {
		page, err := n.provider.SearchPage(ctx, PageRequest{Keyword: keyword, PageToken: token})
		if err != nil {
			// A later page failing still leaves a usable partial pool.
			if len(venues) > 0 {
				n.log.Warn().Err(err).Int("venues", len(venues)).
					Msg("venue page fetch failed, continuing with partial pool")
				return venues, nil
			}
			return nil, fmt.Errorf("search venues: %w", err)
		}

		venues = append(venues, page.Venues...)
		if page.NextPageToken == "" {
			return venues, nil
		}
		token = page.NextPageToken

		if n.settle > 0 {
			select {
			case <-time.After(n.settle):
			case <-ctx.Done():
				return venues, ctx.Err()
			}
		}
	}
}
