package perturbation

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

const kmeansPasses = 20

type point2 struct{ x, y float64 }

// barycentre of the given coordinates.
func barycentre(xs, ys []float64) point2 {
	return point2{x: stat.Mean(xs, nil), y: stat.Mean(ys, nil)}
}

// kmeans labels every point with one of k clusters. Initial centres are k
// distinct points drawn at random; a centre left without points keeps its
// position. Ties go to the lower cluster index.
func kmeans(points []point2, k int, rng *rand.Rand) []int {
	centres := make([]point2, k)
	for i, idx := range rng.Perm(len(points))[:k] {
		centres[i] = points[idx]
	}

	labels := make([]int, len(points))
	xs := make([][]float64, k)
	ys := make([][]float64, k)
	for pass := 0; pass < kmeansPasses; pass++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for c, ctr := range centres {
				if d := sqDist(p, ctr); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				changed = true
			}
			labels[i] = best
		}

		for c := range centres {
			xs[c], ys[c] = xs[c][:0], ys[c][:0]
		}
		for i, p := range points {
			xs[labels[i]] = append(xs[labels[i]], p.x)
			ys[labels[i]] = append(ys[labels[i]], p.y)
		}
		for c := range centres {
			if len(xs[c]) > 0 {
				centres[c] = barycentre(xs[c], ys[c])
			}
		}
		if pass > 0 && !changed {
			break
		}
	}
	return labels
}

func sqDist(a, b point2) float64 {
	dx, dy := a.x-b.x, a.y-b.y
	return dx*dx + dy*dy
}
