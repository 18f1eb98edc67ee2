package perturbation

import (
	"fmt"
	"log"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"vrp-search-service/internal/diversity"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/solution"
)

const (
	DefaultTargetMaxSpCustomers = 200
	DefaultDecompositionRounds  = 5000
)

// Report describes the outcome of one Decomposition call.
type Report struct {
	K int
	// Main-problem customer ids of every non-empty cluster.
	Clusters  [][]int
	Baseline  []float64
	Optimized []float64
	Accepted  []bool
	// Set when the call left the solution untouched without solving anything.
	NoOp   bool
	Reason string
}

func (r Report) AcceptedCount() int {
	n := 0
	for _, a := range r.Accepted {
		if a {
			n++
		}
	}
	return n
}

// subproblem pairs a cluster's synthesized instance and solution with the
// mapping from local ids back to main ids (ids[local-1]).
type subproblem struct {
	ids  []int
	inst *domain.Instance
	sol  *solution.Solution
}

// DecompositionOperator splits the solution geographically by clustering
// route barycentres, solves every cluster as an independent instance and
// merges back only the clusters whose routes got strictly cheaper.
type DecompositionOperator struct {
	deps   Deps
	chosen *diversity.OmegaAdjustment
	last   Report
}

func NewDecomposition(d Deps) *DecompositionOperator {
	if d.TargetMaxSpCustomers <= 0 {
		d.TargetMaxSpCustomers = DefaultTargetMaxSpCustomers
	}
	if d.Rounds <= 0 {
		d.Rounds = DefaultDecompositionRounds
	}
	return &DecompositionOperator{deps: d}
}

func (d *DecompositionOperator) Type() Type { return Decomposition }

func (d *DecompositionOperator) ChosenOmega() *diversity.OmegaAdjustment { return d.chosen }

// LastReport returns the report of the most recent Apply.
func (d *DecompositionOperator) LastReport() Report { return d.last }

func (d *DecompositionOperator) noop(k int, reason string) error {
	d.last = Report{K: k, NoOp: true, Reason: reason}
	return nil
}

func (d *DecompositionOperator) Apply(s *solution.Solution) error {
	d.chosen = d.deps.Omegas.Get(Decomposition.String(), s.NumRoutes)

	var routes []*solution.Route
	numCustomers := 0
	for _, r := range s.Active() {
		if !r.IsEmpty() {
			routes = append(routes, r)
			numCustomers += r.NumElements - 1
		}
	}
	if numCustomers == 0 {
		return d.noop(0, "no customers")
	}

	k := (numCustomers + d.deps.TargetMaxSpCustomers - 1) / d.deps.TargetMaxSpCustomers
	k = max(2, min(k, numCustomers))
	// Clusters are unions of whole routes.
	if len(routes) > 0 && k > len(routes) {
		k = len(routes)
	}
	if k < 2 {
		return d.noop(k, "fewer than two sub-problems")
	}

	clusters := d.cluster(s, routes, k)
	if len(clusters) == 0 {
		return d.noop(k, "all clusters empty")
	}

	report := Report{
		K:         k,
		Clusters:  clusters,
		Baseline:  make([]float64, len(clusters)),
		Optimized: make([]float64, len(clusters)),
		Accepted:  make([]bool, len(clusters)),
	}

	subs := make([]*subproblem, len(clusters))
	for c, ids := range clusters {
		sp, err := d.solve(s, c, ids)
		if err != nil {
			log.Printf("op=decomposition instance=%s cluster=%d err=%v", s.Inst.Name, c, err)
			d.last = Report{K: k, NoOp: true, Reason: err.Error()}
			return nil
		}
		subs[c] = sp

		inCluster := make(map[int]bool, len(ids))
		for _, id := range ids {
			inCluster[id] = true
		}
		baseline, baseOverload := wholeRoutesCost(s, routes, inCluster)
		optimized := mappedCost(s.Inst, sp)

		report.Baseline[c] = baseline
		report.Optimized[c] = optimized
		report.Accepted[c] = optimized+d.deps.Epsilon < baseline && sp.sol.Infeasibility() <= baseOverload
	}

	d.last = report
	if report.AcceptedCount() == 0 {
		return nil
	}
	merge(s, routes, subs, report.Accepted)
	return nil
}

// cluster groups customers by k-means over route barycentres, or at random
// when no route holds customers. Empty clusters are dropped.
func (d *DecompositionOperator) cluster(s *solution.Solution, routes []*solution.Route, k int) [][]int {
	buckets := make([][]int, k)

	if len(routes) == 0 {
		for _, n := range s.Nodes {
			if n.InRoute {
				c := d.deps.Rng.Intn(k)
				buckets[c] = append(buckets[c], n.ID)
			}
		}
	} else {
		centres := make([]point2, len(routes))
		for i, r := range routes {
			var xs, ys []float64
			for n := r.First.Next; n != r.First; n = n.Next {
				p := s.Inst.Points[n.ID]
				xs = append(xs, p.X)
				ys = append(ys, p.Y)
			}
			centres[i] = barycentre(xs, ys)
		}
		for i, label := range kmeans(centres, k, d.deps.Rng) {
			buckets[label] = append(buckets[label], routes[i].Customers()...)
		}
	}

	out := buckets[:0]
	for _, b := range buckets {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// solve builds and optimizes the sub-problem of one cluster.
func (d *DecompositionOperator) solve(s *solution.Solution, c int, ids []int) (*subproblem, error) {
	name := fmt.Sprintf("%s-sp%d", s.Inst.Name, c)
	inst, err := s.Inst.SubInstance(name, ids, d.deps.KNNLimit)
	if err != nil {
		return nil, fmt.Errorf("decomposition: synthesize %s: %w", name, err)
	}

	tk := d.deps.Factory.NewToolkit(inst, rand.New(rand.NewSource(d.deps.Rng.Int63())))
	sol := solution.New(inst, d.deps.Epsilon)
	tk.Construct(sol)
	tk.MakeFeasible(sol)

	// LocalSearch leaves every route unmodified, so a round after the first
	// only runs when the repair that opens it has moved customers.
	prev := sol.F
	for round := 0; round < d.deps.Rounds; round++ {
		if !sol.Feasible() {
			tk.MakeFeasible(sol)
		}
		if round > 0 && !anyModified(sol) {
			break
		}
		tk.LocalSearch(sol, true)
		if sol.Feasible() && math.Abs(sol.F-prev) < d.deps.Epsilon {
			break
		}
		prev = sol.F
	}

	if err := sol.Checking(name, false, false); err != nil {
		return nil, fmt.Errorf("decomposition: solve %s: %w", name, err)
	}
	return &subproblem{ids: ids, inst: inst, sol: sol}, nil
}

func anyModified(s *solution.Solution) bool {
	for _, r := range s.Active() {
		if r.Modified {
			return true
		}
	}
	return false
}

// wholeRoutesCost sums the main-metric cost and overload of the routes lying
// entirely inside the cluster.
func wholeRoutesCost(s *solution.Solution, routes []*solution.Route, inCluster map[int]bool) (float64, int) {
	var costs []float64
	overload := 0
	for _, r := range routes {
		whole := true
		for n := r.First.Next; n != r.First; n = n.Next {
			if !inCluster[n.ID] {
				whole = false
				break
			}
		}
		if !whole {
			continue
		}
		costs = append(costs, r.F())
		if a := r.AvailableCapacity(); a < 0 {
			overload -= a
		}
	}
	return floats.Sum(costs), overload
}

// mappedCost is the sub-solution's cost measured with the main instance's
// distances on main ids.
func mappedCost(main *domain.Instance, sp *subproblem) float64 {
	depot := main.Depot()
	var costs []float64
	for _, r := range sp.sol.Active() {
		if r.IsEmpty() {
			continue
		}
		prev := depot
		for n := r.First.Next; n != r.First; n = n.Next {
			id := sp.ids[n.ID-1]
			costs = append(costs, main.Dist(prev, id))
			prev = id
		}
		costs = append(costs, main.Dist(prev, depot))
	}
	return floats.Sum(costs)
}

// merge rebuilds s from the accepted sub-solutions followed by the original
// routes restricted to the customers no accepted cluster covers.
func merge(s *solution.Solution, routes []*solution.Route, subs []*subproblem, accepted []bool) {
	original := make([][]int, len(routes))
	for i, r := range routes {
		original[i] = r.Customers()
	}

	covered := make([]bool, s.Size()+1)
	for c, sp := range subs {
		if !accepted[c] {
			continue
		}
		for _, id := range sp.ids {
			covered[id] = true
		}
	}

	s.Reset()
	s.NumRoutes = 0
	for c, sp := range subs {
		if !accepted[c] {
			continue
		}
		for _, sr := range sp.sol.Active() {
			if sr.IsEmpty() {
				continue
			}
			r := s.OpenRoute()
			for n := sr.First.Next; n != sr.First; n = n.Next {
				r.AddNodeEndRoute(s.Node(sp.ids[n.ID-1]))
			}
		}
	}
	for _, ids := range original {
		var r *solution.Route
		for _, id := range ids {
			if covered[id] {
				continue
			}
			if r == nil {
				r = s.OpenRoute()
			}
			r.AddNodeEndRoute(s.Node(id))
		}
	}

	s.RecomputeF()
	s.RemoveEmptyRoutes()
}
