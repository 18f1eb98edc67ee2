package services

import (
	"math/rand"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/solution"
)

// Toolkit bundles the collaborators owned by one search thread.
type Toolkit struct {
	construction *NearestNeighborConstruction
	insertion    *CheapestInsertion
	repair       CapacityRepair
	descent      *NeighborhoodDescent
}

func (t *Toolkit) Construct(s *solution.Solution) { t.construction.Construct(s) }

func (t *Toolkit) Insert(s *solution.Solution, nodes []*solution.Node) float64 {
	return t.insertion.Insert(s, nodes)
}

func (t *Toolkit) MakeFeasible(s *solution.Solution) { t.repair.MakeFeasible(s) }

func (t *Toolkit) LocalSearch(s *solution.Solution, interRoute bool) {
	t.descent.LocalSearch(s, interRoute)
}

// Toolkits creates a Toolkit per instance; Varphi caps the neighbor lists
// scanned by insertion and local search.
type Toolkits struct {
	Varphi int
}

func (f Toolkits) NewToolkit(inst *domain.Instance, rng *rand.Rand) ports.Toolkit {
	return &Toolkit{
		construction: NewNearestNeighborConstruction(rng),
		insertion:    &CheapestInsertion{Varphi: f.Varphi},
		descent:      &NeighborhoodDescent{Varphi: f.Varphi},
	}
}

var _ ports.ToolkitFactory = Toolkits{}
