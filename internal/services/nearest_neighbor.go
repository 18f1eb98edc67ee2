package services

import (
	"math"
	"math/rand"
	"vrp-search-service/internal/solution"
)

// Builds an initial solution with a capacity-aware nearest-neighbor sweep.
//
// Every route is seeded with a random customer, then routes take turns
// appending the nearest unassigned customer that still fits. When no route
// can take any customer a new route is opened. The result is feasible
// whenever the route slots allow it.
type NearestNeighborConstruction struct {
	rng *rand.Rand
}

func NewNearestNeighborConstruction(rng *rand.Rand) *NearestNeighborConstruction {
	return &NearestNeighborConstruction{rng: rng}
}

func (c *NearestNeighborConstruction) Construct(s *solution.Solution) {
	numRoutes := s.NumRoutes
	if lb := s.Inst.MinNumberRoutes(); numRoutes < lb {
		numRoutes = lb
	}
	if numRoutes > s.Size() {
		numRoutes = s.Size()
	}

	s.Reset()
	s.NumRoutes = 0

	order := c.rng.Perm(s.Size())
	assigned := make([]bool, s.Size()+1)
	remaining := s.Size()

	for i := 0; i < numRoutes; i++ {
		r := s.OpenRoute()
		n := s.Node(order[i] + 1)
		r.AddNodeEndRoute(n)
		assigned[n.ID] = true
		remaining--
	}

	cursor := numRoutes
	for remaining > 0 {
		progressed := false
		for _, r := range s.Active() {
			next := c.nearestFitting(s, r.First.Prev.ID, r.AvailableCapacity(), assigned)
			if next == nil {
				continue
			}
			r.AddNodeEndRoute(next)
			assigned[next.ID] = true
			remaining--
			progressed = true
			if remaining == 0 {
				break
			}
		}
		if progressed {
			continue
		}

		// Nobody fits: start a new route from the next unassigned customer
		// in the random order, or overload the emptiest route when out of slots.
		for assigned[order[cursor]+1] {
			cursor++
		}
		n := s.Node(order[cursor] + 1)
		r := s.OpenRoute()
		if r == nil {
			r = emptiestRoute(s)
		}
		r.AddNodeEndRoute(n)
		assigned[n.ID] = true
		remaining--
	}

	s.RecomputeF()
}

// Return the closest unassigned customer to from with demand <= capacity.
// The neighbor list is tried first; a full scan covers customers beyond it.
func (c *NearestNeighborConstruction) nearestFitting(s *solution.Solution, from, capacity int, assigned []bool) *solution.Node {
	for _, id := range s.Inst.KNN[from] {
		if id == s.Inst.Depot() || assigned[id] {
			continue
		}
		if n := s.Node(id); n.Demand <= capacity {
			return n
		}
	}

	var best *solution.Node
	bestDist := math.Inf(1)
	for _, n := range s.Nodes {
		if assigned[n.ID] || n.Demand > capacity {
			continue
		}
		// Tie-breaker keeps the scan deterministic.
		if d := s.Inst.Dist(from, n.ID); d < bestDist || (d == bestDist && best != nil && n.ID < best.ID) {
			best = n
			bestDist = d
		}
	}
	return best
}

func emptiestRoute(s *solution.Solution) *solution.Route {
	var best *solution.Route
	for _, r := range s.Active() {
		if best == nil || r.AvailableCapacity() > best.AvailableCapacity() {
			best = r
		}
	}
	return best
}
