package solution

import (
	"errors"
	"fmt"
	"math"

	"vrp-search-service/internal/domain"
)

// ErrInconsistent marks a structural invariant violation found by Checking or FindError.
var ErrInconsistent = errors.New("solution: inconsistent state")

// Solution owns a fixed array of routes (the first NumRoutes are active) and
// one Node per customer. Nodes[id-1] is customer id.
type Solution struct {
	Inst      *domain.Instance
	Routes    []*Route
	NumRoutes int
	Nodes     []*Node
	F         float64
	Epsilon   float64
}

// New allocates every route slot and customer node for inst. All customers
// start detached; NumRoutes is set to the instance lower bound.
func New(inst *domain.Instance, epsilon float64) *Solution {
	s := &Solution{
		Inst:      inst,
		Routes:    make([]*Route, inst.MaxNumberRoutes()),
		Nodes:     make([]*Node, inst.Size()-1),
		NumRoutes: inst.MinNumberRoutes(),
		Epsilon:   epsilon,
	}
	for i := range s.Routes {
		s.Routes[i] = newRoute(inst, i, epsilon)
	}
	for i := range s.Nodes {
		id := i + 1
		s.Nodes[i] = &Node{ID: id, Demand: inst.Points[id].Demand, KNN: inst.KNN[id]}
	}
	return s
}

// Size is the number of customers.
func (s *Solution) Size() int { return len(s.Nodes) }

// Node returns the node of customer id.
func (s *Solution) Node(id int) *Node { return s.Nodes[id-1] }

// Active returns the slice of active routes.
func (s *Solution) Active() []*Route { return s.Routes[:s.NumRoutes] }

// mirror maps a node of another solution over the same instance onto the
// matching node of s.
func (s *Solution) mirror(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.ID == 0 {
		return s.Routes[n.Route.Index].First
	}
	return s.Nodes[n.ID-1]
}

// Clone makes s a structural copy of ref without allocating: the same Node
// and Route objects of s are rewired to mirror ref's link topology.
// Both solutions must be built on the same instance.
func (s *Solution) Clone(ref *Solution) {
	s.NumRoutes = ref.NumRoutes
	s.F = ref.F

	for i, rr := range ref.Routes {
		r := s.Routes[i]
		r.NumElements = rr.NumElements
		r.TotalDemand = rr.TotalDemand
		r.FRoute = rr.FRoute
		r.Modified = rr.Modified
		r.First.Prev = s.mirror(rr.First.Prev)
		r.First.Next = s.mirror(rr.First.Next)
	}

	for i, rn := range ref.Nodes {
		n := s.Nodes[i]
		n.Modified = rn.Modified
		if rn.Route == nil {
			n.detach()
			continue
		}
		n.Route = s.Routes[rn.Route.Index]
		n.InRoute = rn.InRoute
		n.Prev = s.mirror(rn.Prev)
		n.Next = s.mirror(rn.Next)
	}
}

// Feasible reports whether no active route exceeds the capacity.
func (s *Solution) Feasible() bool {
	for _, r := range s.Active() {
		if r.AvailableCapacity() < 0 {
			return false
		}
	}
	return true
}

// Infeasibility is the total overload over active routes.
func (s *Solution) Infeasibility() int {
	over := 0
	for _, r := range s.Active() {
		if a := r.AvailableCapacity(); a < 0 {
			over -= a
		}
	}
	return over
}

func (s *Solution) swapRoutes(i, j int) {
	s.Routes[i], s.Routes[j] = s.Routes[j], s.Routes[i]
	s.Routes[i].Index = i
	s.Routes[j].Index = j
}

// RemoveEmptyRoutes swaps empty active routes to the tail and shrinks NumRoutes.
func (s *Solution) RemoveEmptyRoutes() {
	for i := 0; i < s.NumRoutes; {
		if s.Routes[i].IsEmpty() {
			s.swapRoutes(i, s.NumRoutes-1)
			s.NumRoutes--
			continue
		}
		i++
	}
}

// OpenRoute activates the next route slot and returns it, or nil when every
// slot is already active.
func (s *Solution) OpenRoute() *Route {
	if s.NumRoutes >= len(s.Routes) {
		return nil
	}
	r := s.Routes[s.NumRoutes]
	r.Clean()
	s.NumRoutes++
	return r
}

// Reset cleans every route and detaches every customer. NumRoutes is kept so
// a constructor can read the requested route count.
func (s *Solution) Reset() {
	for _, r := range s.Routes {
		r.Clean()
	}
	for _, n := range s.Nodes {
		n.detach()
		n.Modified = false
	}
	s.F = 0
}

// RecomputeF refreshes every active FRoute from traversal and sets F to their sum.
func (s *Solution) RecomputeF() float64 {
	f := 0.0
	for _, r := range s.Active() {
		r.FRoute = r.F()
		f += r.FRoute
	}
	s.F = f
	return f
}

// Checking runs the full consistency oracle: per-route structure, cost sum,
// customer coverage and optionally capacity feasibility and absence of empty
// routes. local names the caller for the error message.
func (s *Solution) Checking(local string, feasibility, emptyRoute bool) error {
	var errs []error
	f := 0.0
	covered := 0
	for _, r := range s.Active() {
		if r.First.ID != s.Inst.Depot() || r.First.Route != r {
			errs = append(errs, fmt.Errorf("route %d does not start at the depot: %w", r.Index, ErrInconsistent))
			continue
		}
		if err := r.FindError(); err != nil {
			errs = append(errs, err)
			continue
		}
		f += r.FRoute
		covered += r.NumElements - 1
		if feasibility && r.AvailableCapacity() < 0 {
			errs = append(errs, fmt.Errorf("route %d over capacity by %d: %w", r.Index, -r.AvailableCapacity(), ErrInconsistent))
		}
		if emptyRoute && r.IsEmpty() {
			errs = append(errs, fmt.Errorf("route %d is empty: %w", r.Index, ErrInconsistent))
		}
	}

	if math.Abs(f-s.F) > s.Epsilon {
		errs = append(errs, fmt.Errorf("route costs sum to %.4f, cached f %.4f: %w", f, s.F, ErrInconsistent))
	}
	if covered != s.Size() {
		errs = append(errs, fmt.Errorf("routes hold %d customers, want %d: %w", covered, s.Size(), ErrInconsistent))
	}
	for _, n := range s.Nodes {
		if !n.InRoute || n.Route == nil || n.Route.Index >= s.NumRoutes || s.Routes[n.Route.Index] != n.Route {
			errs = append(errs, fmt.Errorf("customer %d not in an active route: %w", n.ID, ErrInconsistent))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("checking %s: %w", local, errors.Join(errs...))
	}
	return nil
}

// Plan exports the active non-empty routes and the cost.
func (s *Solution) Plan() domain.RoutePlan {
	plan := domain.RoutePlan{Cost: s.F}
	for _, r := range s.Active() {
		if r.IsEmpty() {
			continue
		}
		plan.Routes = append(plan.Routes, r.Customers())
	}
	return plan
}

// LoadPlan replaces the content of s with plan. Every customer must appear
// exactly once. F is recomputed; plan.Cost is ignored.
func (s *Solution) LoadPlan(plan domain.RoutePlan) error {
	if len(plan.Routes) > len(s.Routes) {
		return fmt.Errorf("load plan: %d routes exceed %d slots: %w", len(plan.Routes), len(s.Routes), ErrInconsistent)
	}
	seen := make([]bool, s.Size()+1)
	for _, route := range plan.Routes {
		for _, id := range route {
			if id <= 0 || id > s.Size() {
				return fmt.Errorf("load plan: customer id %d out of range: %w", id, ErrInconsistent)
			}
			if seen[id] {
				return fmt.Errorf("load plan: customer %d repeated: %w", id, ErrInconsistent)
			}
			seen[id] = true
		}
	}
	for id := 1; id <= s.Size(); id++ {
		if !seen[id] {
			return fmt.Errorf("load plan: customer %d missing: %w", id, ErrInconsistent)
		}
	}

	s.Reset()
	s.NumRoutes = len(plan.Routes)
	for i, route := range plan.Routes {
		r := s.Routes[i]
		for _, id := range route {
			r.AddNodeEndRoute(s.Node(id))
		}
	}
	s.RecomputeF()
	return nil
}

func (s *Solution) String() string {
	out := ""
	for _, r := range s.Active() {
		if r.IsEmpty() {
			continue
		}
		out += r.String() + "\n"
	}
	return out + fmt.Sprintf("Cost %.2f\n", s.F)
}
