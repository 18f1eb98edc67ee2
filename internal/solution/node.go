package solution

// Node is one customer occurrence inside a route cycle, or a route's depot
// sentinel when ID == 0. A Node does not own its Route; the Route's link
// structure owns Prev/Next.
type Node struct {
	ID     int
	Demand int

	Prev  *Node
	Next  *Node
	Route *Route

	// InRoute is false only while a perturbation holds the node detached.
	InRoute  bool
	Modified bool

	// KNN is the instance's neighbour list for this id (shared, read-only).
	KNN []int
}

func (n *Node) detach() {
	n.Prev = nil
	n.Next = nil
	n.Route = nil
	n.InRoute = false
}
