// Package sampling draws poll options from a candidate venue pool.
package sampling

import (
	"math/rand"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/model"
)

// Sample draws up to count options from candidates uniformly at random
// without replacement. A pool smaller than count yields the whole pool;
// candidates are never duplicated and the input slice is not mutated.
//
// The random source is supplied by the caller so selection is
// deterministic under test.
func Sample(candidates []catalog.Venue, count int, rng *rand.Rand) []model.PollOption {
	if count > len(candidates) {
		count = len(candidates)
	}
	if count <= 0 {
		return nil
	}

	pool := make([]catalog.Venue, len(candidates))
	copy(pool, candidates)

	options := make([]model.PollOption, 0, count)
	for range count {
		i := rng.Intn(len(pool))
		v := pool[i]
		options = append(options, model.PollOption{
			ID:          v.ID,
			Name:        v.Name,
			Description: v.Address,
		})
		pool[i] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}

	return options
}
