package services

import (
	"math"
	"vrp-search-service/internal/solution"
)

// Reinserts detached nodes at their cheapest position.
//
// Candidate positions are the slots next to the node's varphi nearest
// customers that are currently routed. Capacity-feasible slots win over
// cheaper infeasible ones; when no candidate slot fits, every active route
// is scanned, then a fresh route is opened. Only when the slots are
// exhausted does a node land in an infeasible position.
type CheapestInsertion struct {
	Varphi int
}

type insertPos struct {
	route *solution.Route
	prev  *solution.Node
	cost  float64
}

func (p insertPos) valid() bool { return p.route != nil }

func (ci *CheapestInsertion) Insert(s *solution.Solution, nodes []*solution.Node) float64 {
	total := 0.0
	for _, n := range nodes {
		if n.InRoute {
			continue
		}
		pos := ci.bestPosition(s, n)
		d := pos.route.AddAfter(n, pos.prev)
		s.F += d
		total += d
	}
	return total
}

func (ci *CheapestInsertion) bestPosition(s *solution.Solution, n *solution.Node) insertPos {
	feasible, cheapest := insertPos{cost: math.Inf(1)}, insertPos{cost: math.Inf(1)}

	consider := func(r *solution.Route, prev *solution.Node) {
		cost := insertCost(s, n, prev)
		if cost < cheapest.cost {
			cheapest = insertPos{route: r, prev: prev, cost: cost}
		}
		if r.AvailableCapacity() >= n.Demand && cost < feasible.cost {
			feasible = insertPos{route: r, prev: prev, cost: cost}
		}
	}

	limit := neighborLimit(n.KNN, ci.Varphi)
	for _, id := range n.KNN[:limit] {
		if id == s.Inst.Depot() {
			continue
		}
		nb := s.Node(id)
		if !nb.InRoute {
			continue
		}
		consider(nb.Route, nb)
		consider(nb.Route, nb.Prev)
	}
	if feasible.valid() {
		return feasible
	}

	for _, r := range s.Active() {
		prev := r.First
		for {
			consider(r, prev)
			prev = prev.Next
			if prev == r.First {
				break
			}
		}
	}
	if feasible.valid() {
		return feasible
	}

	if r := s.OpenRoute(); r != nil {
		return insertPos{route: r, prev: r.First}
	}
	return cheapest
}

// Marginal cost of linking n right after prev.
func insertCost(s *solution.Solution, n, prev *solution.Node) float64 {
	next := prev.Next
	return s.Inst.Dist(prev.ID, n.ID) + s.Inst.Dist(n.ID, next.ID) - s.Inst.Dist(prev.ID, next.ID)
}

func neighborLimit(knn []int, varphi int) int {
	if varphi <= 0 || varphi > len(knn) {
		return len(knn)
	}
	return varphi
}
