package services

import (
	"math"
	"vrp-search-service/internal/solution"
)

// Repairs capacity violations by relocating customers out of overloaded routes.
//
// Each move takes the most overloaded route and relocates the customer whose
// move to a route with enough spare capacity is cheapest. When no route can
// take any of its customers a new route is opened for the largest one.
// The number of moves is bounded by size*numRoutes, so an instance whose
// route slots are exhausted stays infeasible (best-effort).
type CapacityRepair struct{}

func (CapacityRepair) MakeFeasible(s *solution.Solution) {
	budget := s.Size() * s.NumRoutes
	for moves := 0; moves < budget && !s.Feasible(); moves++ {
		r := mostOverloaded(s)
		if !relocateCheapest(s, r) && !relocateToNewRoute(s, r) {
			return
		}
	}
}

func mostOverloaded(s *solution.Solution) *solution.Route {
	var worst *solution.Route
	for _, r := range s.Active() {
		if worst == nil || r.AvailableCapacity() < worst.AvailableCapacity() {
			worst = r
		}
	}
	return worst
}

func relocateCheapest(s *solution.Solution, from *solution.Route) bool {
	var (
		bestNode *solution.Node
		bestTo   *solution.Route
		bestPrev *solution.Node
	)
	bestCost := math.Inf(1)

	for n := from.First.Next; n != from.First; n = n.Next {
		removal := s.Inst.Dist(n.Prev.ID, n.Next.ID) - s.Inst.Dist(n.Prev.ID, n.ID) - s.Inst.Dist(n.ID, n.Next.ID)
		for _, r := range s.Active() {
			if r == from || r.AvailableCapacity() < n.Demand {
				continue
			}
			prev := r.First
			for {
				if cost := removal + insertCost(s, n, prev); cost < bestCost {
					bestCost = cost
					bestNode, bestTo, bestPrev = n, r, prev
				}
				prev = prev.Next
				if prev == r.First {
					break
				}
			}
		}
	}

	if bestNode == nil {
		return false
	}
	s.F += from.Remove(bestNode)
	s.F += bestTo.AddAfter(bestNode, bestPrev)
	return true
}

func relocateToNewRoute(s *solution.Solution, from *solution.Route) bool {
	if from.NumElements <= 2 {
		return false
	}
	to := s.OpenRoute()
	if to == nil {
		return false
	}

	var largest *solution.Node
	for n := from.First.Next; n != from.First; n = n.Next {
		if largest == nil || n.Demand > largest.Demand {
			largest = n
		}
	}
	s.F += from.Remove(largest)
	s.F += to.AddNodeEndRoute(largest)
	return true
}
