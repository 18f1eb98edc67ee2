package solution

// PairwiseDistance counts the customer successor edges of a that b does not
// contain in either direction. Both solutions must share an instance.
// Edges are compared by endpoint id, so every depot sentinel counts as the
// same endpoint.
func PairwiseDistance(a, b *Solution) int {
	dist := 0
	for i, na := range a.Nodes {
		if na.Next == nil {
			continue
		}
		nb := b.Nodes[i]
		if nb.Next == nil {
			dist++
			continue
		}
		succ := na.Next.ID
		if nb.Next.ID != succ && nb.Prev.ID != succ {
			dist++
		}
	}
	return dist
}
