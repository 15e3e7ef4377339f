package catalog

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

// PlacesConfig carries the fixed search bias used for every lookup.
type PlacesConfig struct {
	Latitude  float64
	Longitude float64
	Radius    uint
}

// PlacesProvider fetches nearby restaurants from the Google Places API,
// one page per call.
type PlacesProvider struct {
	client *maps.Client
	cfg    PlacesConfig
}

// NewPlacesProvider builds a provider around an authenticated maps client.
func NewPlacesProvider(apiKey string, cfg PlacesConfig) (*PlacesProvider, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &PlacesProvider{client: c, cfg: cfg}, nil
}

// SearchPage runs one NearbySearch request. A non-empty PageToken continues
// a previous search; the bias parameters are ignored by the API in that
// case but sent regardless.
func (p *PlacesProvider) SearchPage(ctx context.Context, req PageRequest) (Page, error) {
	resp, err := p.client.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location:  &maps.LatLng{Lat: p.cfg.Latitude, Lng: p.cfg.Longitude},
		Radius:    p.cfg.Radius,
		OpenNow:   true,
		Type:      maps.PlaceTypeRestaurant,
		Keyword:   req.Keyword,
		PageToken: req.PageToken,
	})
	if err != nil {
		return Page{}, fmt.Errorf("places nearby search: %w", err)
	}

	venues := make([]Venue, 0, len(resp.Results))
	for _, r := range resp.Results {
		address := r.Vicinity
		if address == "" {
			address = r.FormattedAddress
		}
		venues = append(venues, Venue{ID: r.PlaceID, Name: r.Name, Address: address})
	}

	return Page{Venues: venues, NextPageToken: resp.NextPageToken}, nil
}
