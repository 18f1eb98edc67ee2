package domain

// Represents a finished routing plan.
// Each route lists customer ids in visiting order; the depot (id 0) is implicit
// at both ends. A RoutePlan is immutable output data produced from a Solution
// and consumed by writers, repositories and the API.
type RoutePlan struct {
	Routes [][]int
	Cost   float64
}

// Number of customers served by the plan.
func (p RoutePlan) Customers() int {
	n := 0
	for _, r := range p.Routes {
		n += len(r)
	}
	return n
}

// Best known cost for a named instance, used as the search's optimal target.
type BestKnown struct {
	Instance string
	Cost     float64
}
