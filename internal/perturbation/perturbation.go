package perturbation

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"vrp-search-service/internal/diversity"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/solution"
)

var ErrUnknownOperator = errors.New("perturbation: unknown operator")

type Type int

const (
	Sequential Type = iota
	Concentric
	Ruinnew
	Decomposition
)

var typeNames = [...]string{"Sequential", "Concentric", "Ruinnew", "Decomposition"}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType resolves an operator name, ignoring case.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("parse operator %q: %w", name, ErrUnknownOperator)
}

// Operator mutates a solution in place. After Apply every customer is routed
// and s.F equals the recomputed cost.
type Operator interface {
	Type() Type
	Apply(s *solution.Solution) error
	// The OmegaAdjustment read by the last Apply; the engine feeds it the
	// displacement that call produced.
	ChosenOmega() *diversity.OmegaAdjustment
}

// Deps are the collaborators one operator instance is bound to. Operators
// of different search branches never share Toolkit or Rng.
type Deps struct {
	Inst    *domain.Instance
	Omegas  *diversity.OmegaRegistry
	Toolkit ports.Toolkit
	Rng     *rand.Rand
	Epsilon float64

	// Decomposition only.
	Factory              ports.ToolkitFactory
	TargetMaxSpCustomers int
	Rounds               int
	KNNLimit             int
}

type Factory func(deps Deps) Operator

// Registry maps every operator type to its constructor.
var Registry = map[Type]Factory{
	Sequential:    func(d Deps) Operator { return newRuin(Sequential, d, selectSequential) },
	Concentric:    func(d Deps) Operator { return newRuin(Concentric, d, selectConcentric) },
	Ruinnew:       func(d Deps) Operator { return newRuin(Ruinnew, d, selectNeighbors) },
	Decomposition: func(d Deps) Operator { return NewDecomposition(d) },
}

// New builds one operator per configured name, in order.
func New(names []string, deps Deps) ([]Operator, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("new operators: empty operator list: %w", ErrUnknownOperator)
	}
	ops := make([]Operator, 0, len(names))
	for _, name := range names {
		t, err := ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("new operators: %w", err)
		}
		factory, ok := Registry[t]
		if !ok {
			return nil, fmt.Errorf("new operators: no factory for %s: %w", t, ErrUnknownOperator)
		}
		ops = append(ops, factory(deps))
	}
	return ops, nil
}
