package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ErrInvalidInstance is returned when instance data cannot describe a CVRP.
var ErrInvalidInstance = errors.New("domain: invalid instance")

// Distances are precomputed into a dense matrix up to this many points.
const matrixLimit = 2500

// Default length of the per-point nearest neighbour lists.
const DefaultKNNLimit = 100

type InstanceOptions struct {
	// Round distances to the nearest integer (CVRPLIB EUC_2D convention).
	Rounded bool
	// Maximum length of each nearest neighbour list; <=0 uses DefaultKNNLimit.
	KNNLimit int
}

// Instance is an immutable CVRP instance: a depot at index 0 followed by the
// customers, a homogeneous vehicle capacity and the precomputed neighbour lists.
// It is safe for concurrent use once built.
type Instance struct {
	Name     string
	Points   []Point
	Capacity int
	Rounded  bool

	// KNN[i] lists point ids ordered by increasing distance from i, excluding i.
	KNN [][]int

	totalDemand int
	matrix      []float64
	n           int
}

// NewInstance validates the points and builds distance and neighbour data.
// points[0] is the depot; ids are reassigned to their slice position.
func NewInstance(name string, points []Point, capacity int, opts InstanceOptions) (*Instance, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("new instance %q: need a depot and at least one customer, got %d points: %w", name, len(points), ErrInvalidInstance)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("new instance %q: capacity must be positive, got %d: %w", name, capacity, ErrInvalidInstance)
	}
	if points[0].Demand != 0 {
		return nil, fmt.Errorf("new instance %q: depot demand must be 0, got %d: %w", name, points[0].Demand, ErrInvalidInstance)
	}

	in := &Instance{
		Name:     name,
		Points:   make([]Point, len(points)),
		Capacity: capacity,
		Rounded:  opts.Rounded,
		n:        len(points),
	}

	for i, p := range points {
		if p.Demand < 0 || p.Demand > capacity {
			return nil, fmt.Errorf("new instance %q: point %d demand %d outside [0, %d]: %w", name, i, p.Demand, capacity, ErrInvalidInstance)
		}
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("new instance %q: point %d has non-finite coordinates: %w", name, i, ErrInvalidInstance)
		}
		p.ID = i
		in.Points[i] = p
		in.totalDemand += p.Demand
	}

	if in.n <= matrixLimit {
		in.matrix = make([]float64, in.n*in.n)
		for i := 0; i < in.n; i++ {
			for j := i + 1; j < in.n; j++ {
				d := in.euclid(i, j)
				in.matrix[i*in.n+j] = d
				in.matrix[j*in.n+i] = d
			}
		}
	}

	limit := opts.KNNLimit
	if limit <= 0 {
		limit = DefaultKNNLimit
	}
	in.KNN = in.buildKNN(limit)

	return in, nil
}

func (in *Instance) euclid(a, b int) float64 {
	pa, pb := in.Points[a], in.Points[b]
	d := math.Hypot(pa.X-pb.X, pa.Y-pb.Y)
	if in.Rounded {
		return math.Floor(d + 0.5)
	}
	return d
}

// Dist returns the travel cost between two point ids.
func (in *Instance) Dist(a, b int) float64 {
	if in.matrix != nil {
		return in.matrix[a*in.n+b]
	}
	return in.euclid(a, b)
}

func (in *Instance) buildKNN(limit int) [][]int {
	if limit > in.n-1 {
		limit = in.n - 1
	}

	knn := make([][]int, in.n)
	ids := make([]int, 0, in.n-1)
	for i := 0; i < in.n; i++ {
		ids = ids[:0]
		for j := 0; j < in.n; j++ {
			if j != i {
				ids = append(ids, j)
			}
		}

		// Ties break on id to keep neighbour lists deterministic.
		sort.Slice(ids, func(a, b int) bool {
			da, db := in.Dist(i, ids[a]), in.Dist(i, ids[b])
			if da != db {
				return da < db
			}
			return ids[a] < ids[b]
		})

		row := make([]int, limit)
		copy(row, ids[:limit])
		knn[i] = row
	}
	return knn
}

// Size is the number of points including the depot.
func (in *Instance) Size() int { return in.n }

// Depot is the id of the depot point.
func (in *Instance) Depot() int { return 0 }

func (in *Instance) TotalDemand() int { return in.totalDemand }

// MinNumberRoutes is the capacity lower bound ceil(totalDemand / capacity), at least 1.
func (in *Instance) MinNumberRoutes() int {
	m := (in.totalDemand + in.Capacity - 1) / in.Capacity
	if m < 1 {
		m = 1
	}
	return m
}

// MaxNumberRoutes bounds the route array of every Solution: one route per customer.
func (in *Instance) MaxNumberRoutes() int {
	m := in.n - 1
	if lb := in.MinNumberRoutes(); m < lb {
		m = lb
	}
	return m
}

// SubInstance synthesizes an independent instance made of the depot and the
// given customers, in order. Customer ids[i] becomes id i+1 in the result.
func (in *Instance) SubInstance(name string, ids []int, knnLimit int) (*Instance, error) {
	points := make([]Point, 0, len(ids)+1)
	points = append(points, in.Points[in.Depot()])
	for _, id := range ids {
		if id <= 0 || id >= in.n {
			return nil, fmt.Errorf("sub instance %q: customer id %d out of range: %w", name, id, ErrInvalidInstance)
		}
		points = append(points, in.Points[id])
	}

	return NewInstance(name, points, in.Capacity, InstanceOptions{Rounded: in.Rounded, KNNLimit: knnLimit})
}

// Fingerprint identifies the instance data independently of its name.
func (in *Instance) Fingerprint() string {
	h := xxhash.New()
	buf := make([]byte, 8)

	binary.LittleEndian.PutUint64(buf, uint64(in.Capacity))
	_, _ = h.Write(buf)
	for _, p := range in.Points {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(p.X))
		_, _ = h.Write(buf)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(p.Y))
		_, _ = h.Write(buf)
		binary.LittleEndian.PutUint64(buf, uint64(p.Demand))
		_, _ = h.Write(buf)
	}
	if in.Rounded {
		_, _ = h.Write([]byte{1})
	}

	return fmt.Sprintf("%016x", h.Sum64())
}
