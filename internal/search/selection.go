package search

import (
	"fmt"
	"math/rand"

	"vrp-search-service/internal/config"
)

// A selection picks the index of the next operator among n.
type selection func(n int) int

func newSelection(policy string, rng *rand.Rand) (selection, error) {
	switch policy {
	case config.SelectionRandom, "":
		return func(n int) int { return rng.Intn(n) }, nil
	case config.SelectionFirst:
		return func(int) int { return 0 }, nil
	case config.SelectionRoundRobin:
		next := 0
		return func(n int) int {
			i := next % n
			next++
			return i
		}, nil
	default:
		return nil, fmt.Errorf("selection policy %q: %w", policy, config.ErrInvalidConfig)
	}
}
