package solution

import (
	"fmt"
	"math"
	"strings"

	"vrp-search-service/internal/domain"
)

// Route is a circular doubly linked list anchored by its own depot sentinel.
// Traversal starts at First (id 0), visits the customers in order and wraps
// back to First. FRoute caches the cycle cost and is maintained by the
// marginal deltas returned from every mutating operation.
type Route struct {
	Index int
	First *Node

	// NumElements counts the sentinel, so an empty route has NumElements == 1.
	NumElements int
	TotalDemand int
	FRoute      float64
	Modified    bool

	inst     *domain.Instance
	capacity int
	epsilon  float64
}

func newRoute(inst *domain.Instance, index int, epsilon float64) *Route {
	r := &Route{
		Index:    index,
		inst:     inst,
		capacity: inst.Capacity,
		epsilon:  epsilon,
	}
	depot := &Node{ID: inst.Depot(), KNN: inst.KNN[inst.Depot()], InRoute: true}
	depot.Route = r
	r.First = depot
	r.Clean()
	return r
}

func (r *Route) dist(a, b *Node) float64 { return r.inst.Dist(a.ID, b.ID) }

// AddNodeEndRoute appends n just before the depot and returns the cost delta.
func (r *Route) AddNodeEndRoute(n *Node) float64 {
	return r.AddAfter(n, r.First.Prev)
}

// AddAfter links n right after prev (a member of r) and returns the cost delta.
func (r *Route) AddAfter(n, prev *Node) float64 {
	next := prev.Next
	delta := r.dist(prev, n) + r.dist(n, next) - r.dist(prev, next)

	n.Prev = prev
	n.Next = next
	prev.Next = n
	next.Prev = n
	n.Route = r
	n.InRoute = true
	n.Modified = true

	r.NumElements++
	r.TotalDemand += n.Demand
	r.FRoute += delta
	r.Modified = true
	return delta
}

// Remove unlinks n from r and returns the (usually negative) cost delta.
// The node is left detached.
func (r *Route) Remove(n *Node) float64 {
	prev, next := n.Prev, n.Next
	delta := r.dist(prev, next) - r.dist(prev, n) - r.dist(n, next)

	prev.Next = next
	next.Prev = prev
	n.detach()
	n.Modified = true

	r.NumElements--
	r.TotalDemand -= n.Demand
	r.FRoute += delta
	r.Modified = true
	return delta
}

// SetAccumulatedDemand recomputes TotalDemand by traversal.
func (r *Route) SetAccumulatedDemand() {
	total := 0
	for n := r.First.Next; n != r.First; n = n.Next {
		total += n.Demand
	}
	r.TotalDemand = total
}

// F recomputes the cycle cost from scratch.
func (r *Route) F() float64 {
	f := 0.0
	n := r.First
	for {
		f += r.dist(n, n.Next)
		n = n.Next
		if n == r.First {
			break
		}
	}
	return f
}

// AvailableCapacity is negative when the route is overloaded.
func (r *Route) AvailableCapacity() int { return r.capacity - r.TotalDemand }

func (r *Route) IsFeasible() bool { return r.AvailableCapacity() >= 0 }

func (r *Route) IsEmpty() bool { return r.NumElements <= 1 }

// Clean resets r to the depot-only state. Former members keep stale links;
// callers detach or relink them.
func (r *Route) Clean() {
	r.First.Prev = r.First
	r.First.Next = r.First
	r.NumElements = 1
	r.TotalDemand = 0
	r.FRoute = 0
	r.Modified = false
}

// Customers lists the customer ids in visiting order.
func (r *Route) Customers() []int {
	ids := make([]int, 0, r.NumElements-1)
	for n := r.First.Next; n != r.First; n = n.Next {
		ids = append(ids, n.ID)
	}
	return ids
}

// FindError walks the cycle and reports broken links, counters or cost cache.
func (r *Route) FindError() error {
	count := 1
	demand := 0
	prev := r.First
	for n := r.First.Next; n != r.First; n = n.Next {
		if n == nil {
			return fmt.Errorf("route %d: nil link after node %d: %w", r.Index, prev.ID, ErrInconsistent)
		}
		if n.Prev != prev {
			return fmt.Errorf("route %d: node %d prev is not %d: %w", r.Index, n.ID, prev.ID, ErrInconsistent)
		}
		if n.Route != r || !n.InRoute {
			return fmt.Errorf("route %d: node %d not owned by route: %w", r.Index, n.ID, ErrInconsistent)
		}
		if n.ID == r.First.ID {
			return fmt.Errorf("route %d: depot found inside cycle: %w", r.Index, ErrInconsistent)
		}
		count++
		demand += n.Demand
		if count > r.NumElements {
			return fmt.Errorf("route %d: cycle longer than %d elements: %w", r.Index, r.NumElements, ErrInconsistent)
		}
		prev = n
	}
	if r.First.Prev != prev {
		return fmt.Errorf("route %d: depot prev is not the last customer: %w", r.Index, ErrInconsistent)
	}
	if count != r.NumElements {
		return fmt.Errorf("route %d: counted %d elements, cached %d: %w", r.Index, count, r.NumElements, ErrInconsistent)
	}
	if demand != r.TotalDemand {
		return fmt.Errorf("route %d: counted demand %d, cached %d: %w", r.Index, demand, r.TotalDemand, ErrInconsistent)
	}
	if f := r.F(); math.Abs(f-r.FRoute) > r.epsilon {
		return fmt.Errorf("route %d: cost %.4f, cached %.4f: %w", r.Index, f, r.FRoute, ErrInconsistent)
	}
	return nil
}

func (r *Route) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Route #%d:", r.Index+1)
	for n := r.First.Next; n != r.First; n = n.Next {
		fmt.Fprintf(&b, " %d", n.ID)
	}
	return b.String()
}
