package engine

import (
	"context"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/model"
	"github.com/vmglabs/luncheon-roulette/internal/sampling"
	"github.com/vmglabs/luncheon-roulette/internal/store"
)

// OptionSource produces the finalized option set for a new session. The
// live implementation samples the venue catalog; the mock implementation
// needs no provider at all. Which one backs the engine is a construction
// choice, not a code path.
type OptionSource interface {
	Options(ctx context.Context, count int) ([]model.PollOption, error)
}

// LiveSource samples real venues: the catalog's candidate pool merged with
// the user-curated venue pool, drawn without replacement.
type LiveSource struct {
	catalog catalog.Catalog
	pool    store.PoolStore
	log     zerolog.Logger

	// rand.Rand is not safe for concurrent use; spins may race.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLiveSource builds a source over a catalog, an optional venue pool and
// a caller-supplied randomness source.
func NewLiveSource(c catalog.Catalog, pool store.PoolStore, rng *rand.Rand, log zerolog.Logger) *LiveSource {
	return &LiveSource{catalog: c, pool: pool, rng: rng, log: log}
}

// Options fetches the full candidate pool and samples count options.
func (s *LiveSource) Options(ctx context.Context, count int) ([]model.PollOption, error) {
	candidates, err := s.catalog.Search(ctx, "")
	if err != nil {
		return nil, err
	}

	if s.pool != nil {
		extra, err := s.pool.LoadPool(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("venue pool unavailable, sampling catalog only")
		} else {
			candidates = mergeVenues(candidates, extra)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return sampling.Sample(candidates, count, s.rng), nil
}

// mergeVenues appends extras not already present by provider ID.
func mergeVenues(candidates, extras []catalog.Venue) []catalog.Venue {
	seen := make(map[string]bool, len(candidates))
	for _, v := range candidates {
		seen[v.ID] = true
	}
	for _, v := range extras {
		if !seen[v.ID] {
			candidates = append(candidates, v)
			seen[v.ID] = true
		}
	}
	return candidates
}

var mockVenues = []catalog.Venue{
	{ID: "mock-1", Name: "Dunder Deli", Address: "1725 Slough Ave"},
	{ID: "mock-2", Name: "Schrute Farms Table", Address: "Rural Route 6"},
	{ID: "mock-3", Name: "Vance Refrigerated Eats", Address: "12 Industrial Pkwy"},
	{ID: "mock-4", Name: "Poor Richard's Pub", Address: "332 Adams St"},
	{ID: "mock-5", Name: "Alfredo's Pizza Cafe", Address: "801 Mulberry St"},
	{ID: "mock-6", Name: "Cugino's", Address: "44 Providence Rd"},
	{ID: "mock-7", Name: "Cooper's Seafood", Address: "701 N Washington Ave"},
	{ID: "mock-8", Name: "Chili's of the Valley", Address: "90 Viewmont Dr"},
}

// MockSource produces canned options without touching any provider, for
// development and tests.
type MockSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockSource builds a canned source over a randomness source.
func NewMockSource(rng *rand.Rand) *MockSource {
	return &MockSource{rng: rng}
}

// Options samples from the canned venue list.
func (s *MockSource) Options(_ context.Context, count int) ([]model.PollOption, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sampling.Sample(mockVenues, count, s.rng), nil
}
