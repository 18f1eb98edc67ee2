package solution

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-search-service/internal/domain"
)

const eps = 0.01

func gridInstance(t *testing.T) *domain.Instance {
	t.Helper()
	pts := []domain.Point{{X: 0, Y: 0}}
	for i := 0; i < 6; i++ {
		pts = append(pts, domain.Point{X: float64(i%3) * 10, Y: float64(i/3)*10 + 5, Demand: 10})
	}
	in, err := domain.NewInstance("grid", pts, 30, domain.InstanceOptions{})
	require.NoError(t, err)
	return in
}

func loaded(t *testing.T, in *domain.Instance, routes ...[]int) *Solution {
	t.Helper()
	s := New(in, eps)
	require.NoError(t, s.LoadPlan(domain.RoutePlan{Routes: routes}))
	return s
}

func TestRouteIncrementalCostMatchesTraversal(t *testing.T) {
	in := gridInstance(t)
	s := New(in, eps)
	s.Reset()
	r := s.OpenRoute()
	require.NotNil(t, r)

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 200; step++ {
		n := s.Node(1 + rng.Intn(s.Size()))
		if n.InRoute {
			r.Remove(n)
		} else if rng.Intn(2) == 0 || r.IsEmpty() {
			r.AddNodeEndRoute(n)
		} else {
			members := r.Customers()
			r.AddAfter(n, s.Node(members[rng.Intn(len(members))]))
		}
		require.NoError(t, r.FindError(), "step %d", step)
		assert.Less(t, math.Abs(r.F()-r.FRoute), eps)
	}
}

func TestRouteDeltas(t *testing.T) {
	in := gridInstance(t)
	s := New(in, eps)
	r := s.Routes[0]

	d := r.AddNodeEndRoute(s.Node(1))
	assert.InDelta(t, 2*in.Dist(0, 1), d, 1e-9)
	assert.Equal(t, 2, r.NumElements)
	assert.Equal(t, 10, r.TotalDemand)

	r.AddNodeEndRoute(s.Node(2))
	before := r.FRoute
	d = r.Remove(s.Node(1))
	assert.Less(t, d, 0.0)
	assert.InDelta(t, before+d, r.FRoute, 1e-9)
	assert.False(t, s.Node(1).InRoute)
	assert.Nil(t, s.Node(1).Route)

	r.TotalDemand = 99
	r.SetAccumulatedDemand()
	assert.Equal(t, 10, r.TotalDemand)
	assert.Equal(t, 20, r.AvailableCapacity())
}

func TestCloneRewiresOwnNodes(t *testing.T) {
	in := gridInstance(t)
	ref := loaded(t, in, []int{1, 2, 3}, []int{6, 5, 4})
	s := New(in, eps)
	node3 := s.Node(3)

	s.Clone(ref)

	require.NoError(t, s.Checking("clone", true, true))
	assert.Equal(t, ref.Plan(), s.Plan())
	assert.Same(t, node3, s.Node(3))
	assert.Same(t, s.Routes[0], s.Node(3).Route)
	assert.NotSame(t, ref.Node(3), s.Node(3).Next)

	// Mutating the copy leaves the reference intact.
	s.Routes[0].Remove(s.Node(2))
	s.Routes[1].AddNodeEndRoute(s.Node(2))
	s.RecomputeF()
	require.NoError(t, ref.Checking("reference", true, true))
	assert.Equal(t, []int{1, 2, 3}, ref.Routes[0].Customers())
}

func TestCloneAfterRouteCompaction(t *testing.T) {
	in := gridInstance(t)
	ref := loaded(t, in, []int{1}, []int{}, []int{2, 3, 4, 5, 6})
	ref.RemoveEmptyRoutes()
	require.Equal(t, 2, ref.NumRoutes)
	for i, r := range ref.Routes {
		assert.Equal(t, i, r.Index)
	}

	s := New(in, eps)
	s.Clone(ref)
	require.NoError(t, s.Checking("compacted clone", false, true))
	assert.InDelta(t, ref.F, s.F, 1e-9)
}

func TestCheckingReportsCorruption(t *testing.T) {
	in := gridInstance(t)

	s := loaded(t, in, []int{1, 2, 3}, []int{4, 5, 6})
	s.F += 1
	assert.ErrorIs(t, s.Checking("cost", false, false), ErrInconsistent)

	s = loaded(t, in, []int{1, 2, 3}, []int{4, 5, 6})
	s.Routes[1].FRoute += 1
	assert.ErrorIs(t, s.Checking("route cost", false, false), ErrInconsistent)

	s = loaded(t, in, []int{1, 2, 3}, []int{4, 5, 6})
	s.Routes[0].Remove(s.Node(2))
	s.RecomputeF()
	assert.ErrorIs(t, s.Checking("coverage", false, false), ErrInconsistent)

	s = loaded(t, in, []int{1, 2, 3, 4}, []int{5, 6})
	assert.NoError(t, s.Checking("overload ignored", false, false))
	assert.ErrorIs(t, s.Checking("overload", true, false), ErrInconsistent)
	assert.False(t, s.Feasible())
	assert.Equal(t, 10, s.Infeasibility())
}

func TestLoadPlanRejectsBadCoverage(t *testing.T) {
	in := gridInstance(t)
	s := New(in, eps)

	assert.ErrorIs(t, s.LoadPlan(domain.RoutePlan{Routes: [][]int{{1, 2, 3}, {4, 5}}}), ErrInconsistent)
	assert.ErrorIs(t, s.LoadPlan(domain.RoutePlan{Routes: [][]int{{1, 2, 3}, {4, 5, 6, 1}}}), ErrInconsistent)
	assert.ErrorIs(t, s.LoadPlan(domain.RoutePlan{Routes: [][]int{{1, 2, 3}, {4, 5, 6, 7}}}), ErrInconsistent)
}

func TestPairwiseDistance(t *testing.T) {
	in := gridInstance(t)
	a := loaded(t, in, []int{1, 2, 3}, []int{4, 5, 6})
	b := New(in, eps)
	b.Clone(a)
	assert.Equal(t, 0, PairwiseDistance(a, b))

	// Reversing a route keeps every edge.
	c := loaded(t, in, []int{3, 2, 1}, []int{4, 5, 6})
	assert.Equal(t, 0, PairwiseDistance(a, c))

	d := loaded(t, in, []int{1, 3, 2}, []int{4, 5, 6})
	assert.Equal(t, 2, PairwiseDistance(a, d))
}
