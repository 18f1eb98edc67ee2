package ports

import (
	"math/rand"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/solution"
)

// Port: builds an initial assignment of every customer into at least
// s.NumRoutes routes.
type Constructor interface {
	Construct(s *solution.Solution)
}

// Port: reinserts detached nodes into s.
type Inserter interface {
	// Insert every node and return the achieved marginal cost, already added to s.F.
	Insert(s *solution.Solution, nodes []*solution.Node) float64
}

// Port: capacity repair, best-effort when its own move budget runs out.
type FeasibilityRepairer interface {
	MakeFeasible(s *solution.Solution)
}

// Port: improvement until a local optimum of the move catalog.
// Implementations keep s.F and every FRoute consistent.
type LocalSearcher interface {
	LocalSearch(s *solution.Solution, interRoute bool)
}

// The collaborators one search thread owns.
type Toolkit interface {
	Constructor
	Inserter
	FeasibilityRepairer
	LocalSearcher
}

// Creates an independent Toolkit bound to one instance. The engine asks for
// one per branch and Decomposition one per sub-instance.
type ToolkitFactory interface {
	NewToolkit(inst *domain.Instance, rng *rand.Rand) Toolkit
}
