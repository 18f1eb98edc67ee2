package services

import (
	"vrp-search-service/internal/solution"
)

// Moves must gain at least this much to be applied; keeps the descent finite
// under floating point noise.
const minGain = 1e-6

// First-improvement descent over 2-opt, relocate and swap.
//
// 2-opt runs inside every modified route. With interRoute set, each customer
// also tries relocate and swap moves towards the routes of its varphi nearest
// neighbors. Inter-route moves never increase the overload of the two routes
// involved. At the local optimum every active route's Modified flag is cleared
// and, after inter-route moves, emptied routes are dropped.
type NeighborhoodDescent struct {
	Varphi int
}

func (d *NeighborhoodDescent) LocalSearch(s *solution.Solution, interRoute bool) {
	for improved := true; improved; {
		improved = false
		for _, r := range s.Active() {
			if r.Modified && d.twoOpt(s, r) {
				improved = true
			}
		}
		// 2-opt is exhausted on every route it visited.
		for _, r := range s.Active() {
			r.Modified = false
		}
		if !interRoute {
			break
		}
		for _, n := range s.Nodes {
			if !n.InRoute {
				continue
			}
			if d.relocate(s, n) || d.swap(s, n) {
				improved = true
			}
		}
	}
	for _, r := range s.Active() {
		r.Modified = false
	}
	if interRoute {
		s.RemoveEmptyRoutes()
	}
}

// Apply improving 2-opt reversals to r until none is left.
func (d *NeighborhoodDescent) twoOpt(s *solution.Solution, r *solution.Route) bool {
	seq := make([]*solution.Node, 0, r.NumElements)
	seq = append(seq, r.First)
	for n := r.First.Next; n != r.First; n = n.Next {
		seq = append(seq, n)
	}
	m := len(seq)
	if m < 4 {
		return false
	}

	dist := s.Inst.Dist
	reversed := false
	for changed := true; changed; {
		changed = false
		for i := 0; i < m-2 && !changed; i++ {
			a, b := seq[i], seq[i+1]
			for j := i + 2; j < m; j++ {
				c, e := seq[j], seq[(j+1)%m]
				if e == a {
					continue
				}
				gain := dist(a.ID, c.ID) + dist(b.ID, e.ID) - dist(a.ID, b.ID) - dist(c.ID, e.ID)
				if gain < -minGain {
					for lo, hi := i+1, j; lo < hi; lo, hi = lo+1, hi-1 {
						seq[lo], seq[hi] = seq[hi], seq[lo]
					}
					changed = true
					reversed = true
					break
				}
			}
		}
	}
	if !reversed {
		return false
	}

	before := r.FRoute
	r.Clean()
	for _, n := range seq[1:] {
		r.AddNodeEndRoute(n)
	}
	s.F += r.FRoute - before
	return true
}

// Move n next to one of its neighbors in another route when that is cheaper.
func (d *NeighborhoodDescent) relocate(s *solution.Solution, n *solution.Node) bool {
	from := n.Route
	dist := s.Inst.Dist
	removal := dist(n.Prev.ID, n.Next.ID) - dist(n.Prev.ID, n.ID) - dist(n.ID, n.Next.ID)

	for _, id := range n.KNN[:neighborLimit(n.KNN, d.Varphi)] {
		if id == s.Inst.Depot() {
			continue
		}
		nb := s.Node(id)
		if !nb.InRoute || nb.Route == from {
			continue
		}
		to := nb.Route
		if to.AvailableCapacity() < n.Demand {
			continue
		}
		for _, prev := range [2]*solution.Node{nb, nb.Prev} {
			if removal+insertCost(s, n, prev) < -minGain {
				s.F += from.Remove(n)
				s.F += to.AddAfter(n, prev)
				return true
			}
		}
	}
	return false
}

// Exchange n with one of its neighbors in another route when that is cheaper.
func (d *NeighborhoodDescent) swap(s *solution.Solution, n *solution.Node) bool {
	ra := n.Route
	dist := s.Inst.Dist

	for _, id := range n.KNN[:neighborLimit(n.KNN, d.Varphi)] {
		if id == s.Inst.Depot() {
			continue
		}
		m := s.Node(id)
		if !m.InRoute || m.Route == ra {
			continue
		}
		rb := m.Route

		availA := ra.AvailableCapacity() + n.Demand - m.Demand
		availB := rb.AvailableCapacity() + m.Demand - n.Demand
		if overload(availA)+overload(availB) > overload(ra.AvailableCapacity())+overload(rb.AvailableCapacity()) {
			continue
		}

		pn, nn := n.Prev, n.Next
		pm, nm := m.Prev, m.Next
		gain := dist(pn.ID, m.ID) + dist(m.ID, nn.ID) - dist(pn.ID, n.ID) - dist(n.ID, nn.ID) +
			dist(pm.ID, n.ID) + dist(n.ID, nm.ID) - dist(pm.ID, m.ID) - dist(m.ID, nm.ID)
		if gain >= -minGain {
			continue
		}

		s.F += ra.Remove(n)
		s.F += rb.Remove(m)
		s.F += ra.AddAfter(m, pn)
		s.F += rb.AddAfter(n, pm)
		return true
	}
	return false
}

func overload(avail int) int {
	if avail < 0 {
		return -avail
	}
	return 0
}
