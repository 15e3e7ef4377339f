package catalog

import "context"

// Venue is one candidate restaurant as returned by a venue provider.
type Venue struct {
	ID      string `json:"id" firestore:"id"`
	Name    string `json:"name" firestore:"name"`
	Address string `json:"address" firestore:"address"`
}

// Catalog produces the full candidate pool for a search. Implementations
// own pagination: the returned slice covers every page so sampling is not
// skewed toward first-page results.
type Catalog interface {
	Search(ctx context.Context, keyword string) ([]Venue, error)
}

// PageRequest asks a provider for one page of nearby venues.
type PageRequest struct {
	Keyword   string
	PageToken string
}

// Page is one provider page plus the token for the next one, if any.
type Page struct {
	Venues        []Venue
	NextPageToken string
}

// Provider is the raw paged search surface of an external venue provider.
type Provider interface {
	SearchPage(ctx context.Context, req PageRequest) (Page, error)
}
