package perturbation

import (
	"math/rand"

	"vrp-search-service/internal/diversity"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/solution"
)

// A selector picks up to omega distinct routed customers to remove.
type selector func(s *solution.Solution, rng *rand.Rand, omega int) []*solution.Node

// ruin removes a neighborhood chosen by its selector and reinserts it in
// random order.
type ruin struct {
	kind     Type
	omegas   *diversity.OmegaRegistry
	inserter ports.Inserter
	rng      *rand.Rand
	pick     selector
	chosen   *diversity.OmegaAdjustment
}

func newRuin(kind Type, d Deps, pick selector) *ruin {
	return &ruin{kind: kind, omegas: d.Omegas, inserter: d.Toolkit, rng: d.Rng, pick: pick}
}

func (r *ruin) Type() Type { return r.kind }

func (r *ruin) ChosenOmega() *diversity.OmegaAdjustment { return r.chosen }

func (r *ruin) Apply(s *solution.Solution) error {
	r.chosen = r.omegas.Get(r.kind.String(), 0)
	omega := r.chosen.ActualOmega()
	if omega > s.Size() {
		omega = s.Size()
	}

	removed := r.pick(s, r.rng, omega)
	for _, n := range removed {
		s.F += n.Route.Remove(n)
	}
	r.rng.Shuffle(len(removed), func(i, j int) { removed[i], removed[j] = removed[j], removed[i] })
	r.inserter.Insert(s, removed)
	s.RecomputeF()
	return nil
}

func randomCustomer(s *solution.Solution, rng *rand.Rand) *solution.Node {
	return s.Nodes[rng.Intn(s.Size())]
}

// Walk the reference's neighbor list, skipping the depot, up to omega nodes.
func selectNeighbors(s *solution.Solution, rng *rand.Rand, omega int) []*solution.Node {
	ref := randomCustomer(s, rng)
	out := make([]*solution.Node, 0, omega)
	for _, id := range ref.KNN {
		if len(out) == omega {
			break
		}
		if id == s.Inst.Depot() {
			continue
		}
		if n := s.Node(id); n.InRoute {
			out = append(out, n)
		}
	}
	return out
}

// The reference itself plus its nearest neighbors, omega nodes in total.
func selectConcentric(s *solution.Solution, rng *rand.Rand, omega int) []*solution.Node {
	ref := randomCustomer(s, rng)
	out := make([]*solution.Node, 0, omega)
	if ref.InRoute && omega > 0 {
		out = append(out, ref)
	}
	for _, id := range ref.KNN {
		if len(out) >= omega {
			break
		}
		if id == s.Inst.Depot() {
			continue
		}
		if n := s.Node(id); n.InRoute {
			out = append(out, n)
		}
	}
	return out
}

// Strings of consecutive customers cut from the routes met while walking the
// reference's neighbor list, at most one string per route.
func selectSequential(s *solution.Solution, rng *rand.Rand, omega int) []*solution.Node {
	ref := randomCustomer(s, rng)
	out := make([]*solution.Node, 0, omega)
	taken := make(map[*solution.Node]bool, omega)
	visited := make(map[*solution.Route]bool)

	candidates := append([]int{ref.ID}, ref.KNN...)
	for _, id := range candidates {
		if len(out) >= omega {
			break
		}
		if id == s.Inst.Depot() {
			continue
		}
		start := s.Node(id)
		if !start.InRoute || visited[start.Route] {
			continue
		}
		r := start.Route
		visited[r] = true

		remaining := omega - len(out)
		length := r.NumElements - 1
		if length > remaining {
			length = remaining
		}
		length = 1 + rng.Intn(length)

		n := start
		for i := 0; i < length; i++ {
			if !taken[n] {
				taken[n] = true
				out = append(out, n)
			}
			n = n.Next
			if n == r.First {
				n = n.Next
			}
		}
	}
	return out
}
